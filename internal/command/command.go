// Package command defines the structured messages sent to devices over the
// command channel.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

var (
	ErrChannelUnavailable = errors.New("command_channel_unavailable")
	ErrUnknownAction      = errors.New("unknown_action")
	ErrInvalidDeviceID    = errors.New("invalid_device_id")
)

func (a Action) Valid() bool {
	return a == ActionStart || a == ActionStop
}

type Command struct {
	Action Action `json:"action"`
}

func Start() Command { return Command{Action: ActionStart} }
func Stop() Command  { return Command{Action: ActionStop} }

func Encode(cmd Command) ([]byte, error) {
	if !cmd.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return json.Marshal(cmd)
}

// Decode parses a command payload. The action must match exactly, ignoring
// case and surrounding space.
func Decode(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	cmd.Action = Action(strings.ToLower(strings.TrimSpace(string(cmd.Action))))
	if !cmd.Action.Valid() {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return cmd, nil
}

// Sender delivers a command to a single device.
type Sender interface {
	Send(ctx context.Context, deviceID string, cmd Command) error
}

// Unavailable wraps a transport fault as a channel fault.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrChannelUnavailable, err)
}
