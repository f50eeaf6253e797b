package notify

import (
	"context"
	"sync/atomic"

	"botherd/internal/settings"
	"botherd/pkg/logging"
)

// Messenger is an armed notification transport.
type Messenger interface {
	// Arm validates credentials and prepares the transport.
	Arm(ctx context.Context) error
	// Send delivers one message.
	Send(ctx context.Context, text string) error
	// Close releases the transport. The messenger is not reused afterwards.
	Close() error
}

// Factory builds a fresh messenger from the settings document.
type Factory func(m settings.MessengerSettings) Messenger

// Relay is the stable notifier handed to workers. It forwards to whichever
// messenger is active and drops messages while the channel is disabled.
type Relay struct {
	current atomic.Pointer[messengerRef]
}

type messengerRef struct {
	m Messenger
}

// Notify sends message through the active messenger, if any.
func (r *Relay) Notify(ctx context.Context, message string) error {
	ref := r.current.Load()
	if ref == nil {
		logging.Debug("Notify", "Messenger disabled, dropping message: %s", message)
		return nil
	}
	return ref.m.Send(ctx, message)
}

// Active reports whether a messenger is attached.
func (r *Relay) Active() bool {
	return r.current.Load() != nil
}

func (r *Relay) set(m Messenger) {
	if m == nil {
		r.current.Store(nil)
		return
	}
	r.current.Store(&messengerRef{m: m})
}
