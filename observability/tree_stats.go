package observability

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/benz9527/xbst/lib/infra"
	"github.com/benz9527/xbst/lib/tree"
)

const TreeStatsName = "xbst/tree"

var _ tree.Observer[int] = (*TreeStats[int])(nil)

// TreeStats turns tree events into otel instruments. Every data point
// carries the engine attribute, so one instance may observe several trees.
type TreeStats[K infra.OrderedKey] struct {
	operations    metric.Int64Counter
	rotations     metric.Int64Counter
	recolors      metric.Int64Counter
	rebalances    metric.Int64Counter
	heightUpdates metric.Int64Counter
	nodes         metric.Int64UpDownCounter
}

// NewTreeStats registers the instruments on mp, or on the global otel
// meter provider when mp is nil.
func NewTreeStats[K infra.OrderedKey](mp metric.MeterProvider, name string) *TreeStats[K] {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meterName := TreeStatsName
	if len(name) > 0 {
		meterName = fmt.Sprintf("%s/%s", TreeStatsName, name)
	}
	meter := mp.Meter(meterName)
	return &TreeStats[K]{
		operations: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xbst.tree.operations",
			metric.WithDescription("The number of insert and delete calls by outcome."),
		)),
		rotations: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xbst.tree.rotations",
			metric.WithDescription("The number of single rotations by direction."),
		)),
		recolors: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xbst.tree.recolors",
			metric.WithDescription("The number of red-black color changes by new color."),
		)),
		rebalances: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xbst.tree.rebalances",
			metric.WithDescription("The number of rebalancing steps by case."),
		)),
		heightUpdates: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xbst.tree.height.updates",
			metric.WithDescription("The number of AVL height changes."),
		)),
		nodes: lo.Must[metric.Int64UpDownCounter](meter.Int64UpDownCounter(
			"xbst.tree.nodes",
			metric.WithDescription("The number of live nodes."),
		)),
	}
}

func (stats *TreeStats[K]) OnEvent(ev tree.Event[K]) {
	if stats == nil {
		return
	}
	ctx := context.Background()
	engine := attribute.String("engine", ev.Engine.String())
	switch ev.Kind {
	case tree.EventInserted:
		stats.nodes.Add(ctx, 1, metric.WithAttributes(engine))
		fallthrough
	case tree.EventDuplicate, tree.EventDeleted, tree.EventNotFound:
		stats.operations.Add(ctx, 1, metric.WithAttributes(engine, attribute.String("outcome", ev.Kind.String())))
	case tree.EventReleased:
		stats.nodes.Add(ctx, -1, metric.WithAttributes(engine))
	case tree.EventRotated:
		stats.rotations.Add(ctx, 1, metric.WithAttributes(engine, attribute.String("direction", ev.Direction.String())))
	case tree.EventRecolored:
		stats.recolors.Add(ctx, 1, metric.WithAttributes(engine, attribute.String("color", ev.Color.String())))
	case tree.EventRebalanced:
		stats.rebalances.Add(ctx, 1, metric.WithAttributes(engine, attribute.String("case", string(ev.Case))))
	case tree.EventHeightUpdated:
		stats.heightUpdates.Add(ctx, 1, metric.WithAttributes(engine))
	default:
	}
}
