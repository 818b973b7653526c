package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/bridge"
	"github.com/GriffinCanCode/windowsync/backend/internal/ctl"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/bytedance/sonic"
)

func main() {
	server := flag.String("server", envOr("WINDOWSYNC_URL", "http://127.0.0.1:8000"), "Host base URL")
	trace := flag.Bool("trace", false, "Send an X-Trace-ID with every request")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: windowctl [flags] <command> [args]")
		fmt.Fprintln(os.Stderr, "commands: health sessions session open update close windows create closewin broadcast pages attach")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if flag.Arg(0) == "attach" {
		err = attach(ctx, flag.Args()[1:])
	} else {
		client := ctl.NewClient(ctl.ClientConfig{BaseURL: *server, Timeout: *timeout, Retries: 1, Trace: *trace})
		err = run(ctx, client, flag.Arg(0), flag.Args()[1:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, c *ctl.Client, cmd string, args []string) error {
	var (
		out any
		err error
	)

	switch cmd {
	case "health":
		out, err = c.Health(ctx)
	case "sessions":
		out, err = c.Sessions(ctx)
	case "session":
		if len(args) != 1 {
			return fmt.Errorf("usage: session <id>")
		}
		out, err = c.Session(ctx, args[0])
	case "open":
		if len(args) < 1 {
			return fmt.Errorf("usage: open <id> [value]")
		}
		out, err = c.Open(ctx, args[0], strings.Join(args[1:], " "))
	case "update":
		if len(args) < 2 {
			return fmt.Errorf("usage: update <id> <value>")
		}
		out, err = c.Update(ctx, args[0], strings.Join(args[1:], " "))
	case "close":
		if len(args) != 1 {
			return fmt.Errorf("usage: close <id>")
		}
		out, err = c.Close(ctx, args[0])
	case "windows":
		out, err = c.Windows(ctx)
	case "create":
		var cfg types.WindowConfig
		if err := sonic.UnmarshalString(strings.Join(args, " "), &cfg); err != nil {
			return fmt.Errorf("invalid window config: %w", err)
		}
		out, err = c.CreateWindow(ctx, cfg)
	case "closewin":
		if len(args) != 1 {
			return fmt.Errorf("usage: closewin <id>")
		}
		out, err = c.CloseWindow(ctx, args[0])
	case "broadcast":
		req, perr := broadcastRequest(args)
		if perr != nil {
			return perr
		}
		out, err = c.Broadcast(ctx, req)
	case "pages":
		out, err = c.Pages(ctx)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		return err
	}
	return printJSON(out)
}

// broadcastRequest reuses the shell's stream syntax
func broadcastRequest(args []string) (types.BroadcastRequest, error) {
	msg, err := ctl.ParseLine("stream " + strings.Join(args, " "))
	if err != nil {
		return types.BroadcastRequest{}, err
	}
	env := msg.(types.Envelope)

	req := types.BroadcastRequest{Channel: env.Topic, TargetID: env.TargetID}
	if len(env.Payload) > 0 {
		req.Payload = env.Payload
	}
	return req, nil
}

func attach(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: attach <bridge or launch url>")
	}

	client, err := bridge.Dial(ctx, args[0], nil)
	if err != nil {
		return err
	}
	defer client.Close()

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".windowctl_history")
	}

	shell, err := ctl.NewShell(client, ctl.ShellConfig{HistoryFile: history})
	if err != nil {
		return err
	}
	return shell.Run(ctx)
}

func printJSON(v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		var decoded any
		if err := sonic.Unmarshal(raw, &decoded); err != nil {
			fmt.Println(string(raw))
			return nil
		}
		v = decoded
	}
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
