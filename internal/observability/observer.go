package observability

import "go.uber.org/zap"

// Observer records errors the registry recovered from: it logs them and
// counts them. It implements registry.Observer.
type Observer struct {
	logger  *Logger
	metrics *Metrics
}

func NewObserver(logger *Logger, metrics *Metrics) *Observer {
	return &Observer{logger: logger, metrics: metrics}
}

func (o *Observer) Observe(err error, handled bool) {
	if o.logger != nil {
		if handled {
			o.logger.Desugar().Info("recovered resource error", zap.Error(err), zap.Bool("handled", handled))
		} else {
			o.logger.Desugar().Error("resource error", zap.Error(err), zap.Bool("handled", handled))
		}
	}
	if o.metrics != nil {
		o.metrics.incRecovered(handled)
	}
}
