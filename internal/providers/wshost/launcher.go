package wshost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// URLPlaceholder in a launch command is replaced with the launch URL
const URLPlaceholder = "{url}"

// Launcher opens a renderer at a launch URL. Launch returns once the
// renderer was started, not when it attaches.
type Launcher interface {
	Launch(ctx context.Context, windowID, url string) error
}

// NewLauncher runs command when set and otherwise logs launch URLs
func NewLauncher(command string, logger *zap.Logger) Launcher {
	if strings.TrimSpace(command) == "" {
		return NewLogLauncher(logger)
	}
	return NewExecLauncher(command, logger)
}

// ExecLauncher starts an external renderer process per window
type ExecLauncher struct {
	args   []string
	logger *zap.Logger
}

// NewExecLauncher creates a launcher for a command line such as
// "chromium --app={url}". Without a placeholder the URL is appended.
func NewExecLauncher(command string, logger *zap.Logger) *ExecLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecLauncher{
		args:   strings.Fields(command),
		logger: logger.Named("launcher"),
	}
}

// Launch starts the process and reaps it in the background
func (l *ExecLauncher) Launch(ctx context.Context, windowID, url string) error {
	if len(l.args) == 0 {
		return errors.New("empty launch command")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	args := l.Args(url)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), "WINDOWSYNC_WINDOW_ID="+windowID)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", args[0], err)
	}

	l.logger.Info("Renderer started",
		zap.String("window", windowID),
		zap.Int("pid", cmd.Process.Pid),
	)

	go func() {
		err := cmd.Wait()
		l.logger.Debug("Renderer exited", zap.String("window", windowID), zap.Error(err))
	}()
	return nil
}

// Args expands the command line for url
func (l *ExecLauncher) Args(url string) []string {
	out := make([]string, 0, len(l.args)+1)
	replaced := false
	for _, arg := range l.args {
		if strings.Contains(arg, URLPlaceholder) {
			arg = strings.ReplaceAll(arg, URLPlaceholder, url)
			replaced = true
		}
		out = append(out, arg)
	}
	if !replaced {
		out = append(out, url)
	}
	return out
}

// LogLauncher only logs launch URLs, for renderers started by hand
// (windowctl attach, a browser tab)
type LogLauncher struct {
	logger *zap.Logger
}

// NewLogLauncher creates a logging launcher
func NewLogLauncher(logger *zap.Logger) *LogLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogLauncher{logger: logger.Named("launcher")}
}

// Launch logs url
func (l *LogLauncher) Launch(_ context.Context, windowID, url string) error {
	l.logger.Info("Waiting for renderer", zap.String("window", windowID), zap.String("url", url))
	return nil
}
