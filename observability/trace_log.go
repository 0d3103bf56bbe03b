package observability

import (
	"go.uber.org/zap"

	"github.com/benz9527/xbst/lib/infra"
	"github.com/benz9527/xbst/lib/tree"
	"github.com/benz9527/xbst/xlog"
)

var _ tree.Observer[int] = (*TraceObserver[int])(nil)

// TraceObserver writes every tree event as a log line. Operation outcomes
// are logged at INFO, the rebalancing steps at DEBUG.
type TraceObserver[K infra.OrderedKey] struct {
	logger xlog.XLogger
}

func NewTraceObserver[K infra.OrderedKey](logger xlog.XLogger) *TraceObserver[K] {
	if logger == nil {
		return nil
	}
	return &TraceObserver[K]{logger: logger.Named("tree")}
}

func (o *TraceObserver[K]) OnEvent(ev tree.Event[K]) {
	if o == nil {
		return
	}
	fields := make([]zap.Field, 0, 8)
	fields = append(fields,
		zap.String("engine", ev.Engine.String()),
		zap.Any("key", ev.Key),
	)
	if ev.HasPeer {
		fields = append(fields, zap.Any("peer", ev.Peer))
	}
	if ev.Case != tree.CaseNone {
		fields = append(fields, zap.String("case", string(ev.Case)))
	}

	switch ev.Kind {
	case tree.EventInserted, tree.EventDeleted:
		if ev.Engine == tree.RedBlack {
			fields = append(fields, zap.Stringer("color", ev.Color))
		}
		o.logger.Info(ev.Kind.String(), append(fields, zap.Stringer("dir", ev.Direction))...)
	case tree.EventDuplicate, tree.EventNotFound:
		o.logger.Info(ev.Kind.String(), fields...)
	case tree.EventRotated, tree.EventRotationSkipped:
		o.logger.Debug(ev.Kind.String(), append(fields, zap.Stringer("dir", ev.Direction))...)
	case tree.EventRecolored:
		o.logger.Debug(ev.Kind.String(), append(fields, zap.Stringer("color", ev.Color))...)
	case tree.EventHeightUpdated:
		o.logger.Debug(ev.Kind.String(), append(fields, zap.Int("from", ev.Before), zap.Int("to", ev.After))...)
	case tree.EventImbalanceFound:
		o.logger.Debug(ev.Kind.String(), append(fields,
			zap.Stringer("heavy", ev.Direction),
			zap.Int("balance", ev.Before),
			zap.Int("childBalance", ev.After),
		)...)
	default:
		o.logger.Debug(ev.Kind.String(), fields...)
	}
}
