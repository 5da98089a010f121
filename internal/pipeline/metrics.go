package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/internal/config"
	"github.com/sophie2chance2/foster-care-analysis/internal/metrics"
	"github.com/sophie2chance2/foster-care-analysis/internal/metrics/datadog"
	"github.com/sophie2chance2/foster-care-analysis/internal/metrics/prompush"
)

// DefaultDatadogAddr is used when the datadog backend has no address.
const DefaultDatadogAddr = "127.0.0.1:8125"

// SetupMetrics installs the backend selected by m and returns the function
// that flushes it at the end of a run. "" and "none" keep the no-op backend.
func SetupMetrics(m config.Metrics, job string, logger *zap.Logger) (func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var b metrics.Backend
	switch m.Backend {
	case "", "none":
		logger.Debug("metrics: disabled", zap.String("backend", m.Backend))
		return func() {}, nil

	case "pushgateway":
		pb, err := prompush.NewBackend(job, m.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		logger.Info("metrics: pushgateway", zap.String("url", m.PushgatewayURL), zap.String("job", job))
		b = pb

	case "datadog":
		addr := m.DatadogAddr
		if addr == "" {
			addr = DefaultDatadogAddr
		}
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: []string{"service:fcclean"},
		})
		if err != nil {
			return nil, err
		}
		logger.Info("metrics: datadog", zap.String("addr", addr))
		b = db

	default:
		return nil, fmt.Errorf("unknown metrics backend %q", m.Backend)
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics: flush", zap.Error(err))
		}
	}, nil
}
