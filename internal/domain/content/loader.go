package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"go.uber.org/zap"
)

// Loader loads targets into windows under a timeout and circuit breaker
type Loader struct {
	prober  *Prober
	breaker *resilience.Breaker
	timeout time.Duration
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// LoaderConfig configures a Loader. A nil Prober skips probing.
type LoaderConfig struct {
	Prober  *Prober
	Timeout time.Duration
	Breaker *resilience.Breaker
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// IsWindowGone reports whether a load ended because its window closed.
// That says nothing about the content, so the breaker ignores it.
func IsWindowGone(err error) bool {
	return errors.Is(err, types.ErrHandleClosed) || errors.Is(err, context.Canceled)
}

// NewLoader creates a content loader
func NewLoader(cfg LoaderConfig) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("content")

	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.New("content", resilience.Settings{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsIgnored: IsWindowGone,
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Warn("Content breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		})
	}

	return &Loader{
		prober:  cfg.Prober,
		breaker: breaker,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Load probes target and loads it into h. It blocks until the window
// finished loading, the timeout elapsed or ctx ended.
func (l *Loader) Load(ctx context.Context, h types.WindowHandle, target types.Target) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	timer := monitoring.NewTimer(l.metrics, kindLabel(target.Kind))
	err := l.breaker.Do(ctx, func(ctx context.Context) error {
		if l.prober != nil {
			if err := l.prober.Probe(ctx, target); err != nil {
				return err
			}
		}
		return h.LoadContent(ctx, target)
	})
	outcome := err
	if IsWindowGone(err) {
		outcome = nil
	}
	elapsed := timer.Stop(outcome)

	if err != nil {
		if resilience.IsRejection(err) && l.metrics != nil {
			l.metrics.IncBreakerRejects()
		}
		return fmt.Errorf("failed to load %s: %w", target, err)
	}

	l.logger.Debug("Content loaded",
		zap.String("window", h.ID()),
		zap.Stringer("target", target),
		zap.Duration("elapsed", elapsed))
	return nil
}

func kindLabel(kind types.TargetKind) string {
	if kind == types.TargetFile {
		return "file"
	}
	return "url"
}
