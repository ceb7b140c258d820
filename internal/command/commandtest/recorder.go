// Package commandtest provides an in-memory command.Sender for tests.
package commandtest

import (
	"context"
	"sync"

	"github.com/smallbiznis/chargeplan/internal/command"
)

type Sent struct {
	DeviceID string
	Command  command.Command
}

// Recorder records every successful send. Devices listed in Fail get that error back.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Fail map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{Fail: map[string]error{}}
}

func (r *Recorder) Send(ctx context.Context, deviceID string, cmd command.Command) error {
	if err := ctx.Err(); err != nil {
		return command.Unavailable(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Fail[deviceID]; err != nil {
		return err
	}
	r.sent = append(r.sent, Sent{DeviceID: deviceID, Command: cmd})
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *Recorder) Devices() []string {
	sent := r.Sent()
	out := make([]string, 0, len(sent))
	for _, s := range sent {
		out = append(out, s.DeviceID)
	}
	return out
}

var _ command.Sender = (*Recorder)(nil)
