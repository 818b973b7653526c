package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/GriffinCanCode/windowsync/backend/internal/bridge"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/chzyer/readline"
)

// Sender posts messages over a bridge connection
type Sender interface {
	Post(msg types.Message) error
	OnAny(fn func(types.Frame)) func()
	Done() <-chan struct{}
}

var _ Sender = (*bridge.Client)(nil)

// ShellConfig configures the interactive shell
type ShellConfig struct {
	HistoryFile string
	Prompt      string
}

// Shell is a readline prompt attached to one window's bridge
type Shell struct {
	sender Sender
	rl     *readline.Instance
}

var errQuit = errors.New("quit")

// NewShell creates a shell that sends through sender
func NewShell(sender Sender, cfg ShellConfig) (*Shell, error) {
	if cfg.Prompt == "" {
		cfg.Prompt = "\033[32mwindow>\033[0m "
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(Commands)+2)
	for _, name := range Commands {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("quit"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete:    readline.NewPrefixCompleter(items...),
	})
	if err != nil {
		return nil, err
	}
	return &Shell{sender: sender, rl: rl}, nil
}

// Run reads commands until quit, EOF, ctx ends, or the host drops the
// connection. Inbound frames are printed as they arrive.
func (s *Shell) Run(ctx context.Context) error {
	defer s.rl.Close()

	out := s.rl.Stdout()
	off := s.sender.OnAny(func(f types.Frame) {
		fmt.Fprintf(out, "<- %s %s\n", f.Channel, f.Payload)
	})
	defer off()

	go func() {
		select {
		case <-s.sender.Done():
			fmt.Fprintln(out, "Window closed by host.")
			_ = s.rl.Close()
		case <-ctx.Done():
			_ = s.rl.Close()
		}
	}()

	fmt.Fprintln(out, "Type help for commands, quit to leave.")

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := s.Exec(out, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// Exec runs one line
func (s *Shell) Exec(out io.Writer, line string) error {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "help", "h":
		for _, name := range Commands {
			fmt.Fprintf(out, "  %s\n", Usage(name))
		}
		return nil
	}

	msg, err := ParseLine(line)
	if err != nil {
		return err
	}
	if err := s.sender.Post(msg); err != nil {
		return err
	}
	fmt.Fprintf(out, "-> %s\n", msg.Channel())
	return nil
}
