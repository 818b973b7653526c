package ctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/bytedance/sonic"
)

var (
	// ErrUnknownCommand is returned for a line that names no command
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command has the wrong arguments
	ErrUsage = errors.New("usage")
)

// Commands lists the shell commands that map to bridge messages
var Commands = []string{"open", "update", "request", "close", "editing", "edit", "stream", "create", "closewin"}

var usage = map[string]string{
	"open":     "open <id> [value]",
	"update":   "update <id> <value>",
	"request":  "request",
	"close":    "close <id>",
	"editing":  "editing <id> on|off [value]",
	"edit":     "edit start|sync|save|cancel <id> [value]",
	"stream":   "stream <topic> [json] [@target]",
	"create":   "create <json window config>",
	"closewin": "closewin [id]",
}

// Usage returns the usage line for a command
func Usage(name string) string {
	return usage[name]
}

// ParseLine turns one shell line into the message it sends
func ParseLine(line string) (types.Message, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}
	name, args := fields[0], fields[1:]

	msg, err := parse(name, args)
	if errors.Is(err, ErrUsage) {
		return nil, fmt.Errorf("%w: %s", ErrUsage, usage[name])
	}
	if err != nil {
		return nil, err
	}
	if err := types.Validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func parse(name string, args []string) (types.Message, error) {
	switch name {
	case "open":
		if len(args) < 1 {
			return nil, ErrUsage
		}
		return types.OpenOrFocus{ID: args[0], Value: rest(args, 1)}, nil

	case "update":
		if len(args) < 2 {
			return nil, ErrUsage
		}
		return types.UpdateValue{ID: args[0], Value: rest(args, 1)}, nil

	case "request":
		return types.RequestCurrentValue{}, nil

	case "close":
		if len(args) != 1 {
			return nil, ErrUsage
		}
		return types.Close{ID: args[0]}, nil

	case "editing":
		if len(args) < 2 {
			return nil, ErrUsage
		}
		var on bool
		switch args[1] {
		case "on", "true":
			on = true
		case "off", "false":
		default:
			return nil, ErrUsage
		}
		return types.NotifyEditingState{ID: args[0], IsEditing: on, Value: rest(args, 2)}, nil

	case "edit":
		if len(args) < 2 {
			return nil, ErrUsage
		}
		action := types.EditingAction(args[0])
		switch action {
		case types.EditStart, types.EditSync, types.EditSave, types.EditCancel:
		default:
			return nil, ErrUsage
		}
		return types.EditingRequest{Action: action, ID: args[1], Value: rest(args, 2)}, nil

	case "stream":
		return parseStream(args)

	case "create":
		if len(args) == 0 {
			return nil, ErrUsage
		}
		var cfg types.WindowConfig
		if err := sonic.UnmarshalString(rest(args, 0), &cfg); err != nil {
			return nil, fmt.Errorf("invalid window config: %w", err)
		}
		return types.CreateWindow{WindowConfig: cfg}, nil

	case "closewin":
		if len(args) > 1 {
			return nil, ErrUsage
		}
		return types.CloseWindow{ID: rest(args, 0)}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

func parseStream(args []string) (types.Message, error) {
	if len(args) == 0 {
		return nil, ErrUsage
	}
	env := types.Envelope{Topic: args[0]}
	args = args[1:]

	if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "@") {
		env.TargetID = strings.TrimPrefix(args[n-1], "@")
		args = args[:n-1]
	}
	if payload := rest(args, 0); payload != "" {
		if !sonic.Valid([]byte(payload)) {
			return nil, fmt.Errorf("invalid json payload: %s", payload)
		}
		env.Payload = json.RawMessage(payload)
	}
	return env, nil
}

func rest(args []string, from int) string {
	if from >= len(args) {
		return ""
	}
	return strings.Join(args[from:], " ")
}
