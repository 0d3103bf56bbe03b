package render

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/benz9527/xbst/internal/stress"
	"github.com/benz9527/xbst/lib/tree"
)

type engineSummary struct {
	trials   int
	failed   int
	ops      int
	inserted int
	deleted  int
}

// StressReport prints one row per engine followed by the failed trials.
func StressReport(p *Printer, report *stress.Report) error {
	if report == nil {
		return p.Println("(no report)")
	}
	order := make([]tree.Engine, 0, 2)
	sums := make(map[tree.Engine]*engineSummary, 2)
	for _, res := range report.Results {
		sum, ok := sums[res.Engine]
		if !ok {
			sum = &engineSummary{}
			sums[res.Engine] = sum
			order = append(order, res.Engine)
		}
		sum.trials++
		sum.ops += res.Ops
		sum.inserted += res.Inserted
		sum.deleted += res.Deleted
		if res.Err != nil {
			sum.failed++
		}
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Engine", "Trials", "Failed", "Ops", "Inserted", "Deleted"})
	for _, engine := range order {
		sum := sums[engine]
		failed := fmt.Sprint(sum.failed)
		if sum.failed > 0 {
			failed = p.red.Sprint(failed)
		}
		tbl.AppendRow(table.Row{engine.String(), sum.trials, failed, sum.ops, sum.inserted, sum.deleted})
	}
	footer := fmt.Sprintf("seed %d, %s", report.Seed, report.Elapsed.Round(time.Millisecond))
	if report.Canceled {
		footer += ", canceled"
	}
	tbl.AppendFooter(table.Row{footer})
	if _, err := fmt.Fprintln(p.w, tbl.Render()); err != nil {
		return err
	}

	for _, res := range report.Results {
		if res.Err == nil {
			continue
		}
		line := fmt.Sprintf("%s trial %d (seed %d): %v", res.Engine, res.ID, res.Seed, res.Err)
		if err := p.Println(p.red.Sprint(line)); err != nil {
			return err
		}
	}
	return nil
}
