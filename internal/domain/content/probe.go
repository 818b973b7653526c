package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var (
	ErrUnreachable = errors.New("content endpoint unreachable")
	ErrNotFound    = errors.New("content not found")
	ErrNotHTML     = errors.New("content is not an html page")
)

// Prober checks that a target can be loaded before a window is pointed at it
type Prober struct {
	client *retryablehttp.Client
}

// ProbeConfig defines probe retry behavior
type ProbeConfig struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// NewProber creates a prober. Dev-server requests retry with backoff.
func NewProber(cfg ProbeConfig, logger *zap.Logger) *Prober {
	if cfg.MinWait == 0 {
		cfg.MinWait = 100 * time.Millisecond
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 2 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = cfg.MinWait
	client.RetryWaitMax = cfg.MaxWait
	client.Logger = nil
	if logger != nil {
		client.Logger = leveledLogger{logger.Named("probe").Sugar()}
	}

	return &Prober{client: client}
}

// Probe verifies target is reachable (URL) or present as an html file (file)
func (p *Prober) Probe(ctx context.Context, target types.Target) error {
	switch target.Kind {
	case types.TargetURL:
		return p.probeURL(ctx, target.Location)
	case types.TargetFile:
		return probeFile(target.Location)
	default:
		return fmt.Errorf("unknown target kind %d", target.Kind)
	}
}

func (p *Prober) probeURL(ctx context.Context, location string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s: status %d", ErrUnreachable, location, resp.StatusCode)
	}
	return nil
}

func probeFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to detect content type: %w", err)
	}
	if !mtype.Is("text/html") {
		return fmt.Errorf("%w: %s is %s", ErrNotHTML, path, mtype.String())
	}
	return nil
}

// leveledLogger routes retryablehttp logging through zap
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
