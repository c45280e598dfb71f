// Package notify provides notification functionality for the simulator.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind is the category of an engine event.
type Kind string

const (
	KindOrderFilled    Kind = "order_filled"
	KindOrderRejected  Kind = "order_rejected"
	KindOrderExpired   Kind = "order_expired"
	KindAlertTriggered Kind = "alert_triggered"
)

// Notification represents a single event delivered to a user.
type Notification struct {
	UserID    string
	Kind      Kind
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// Notifier delivers notifications. Delivery is fire-and-forget: a failed
// delivery never rolls back the ledger mutation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Channel is one delivery mechanism behind a MultiNotifier.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// MultiNotifier fans a notification out to every enabled channel.
type MultiNotifier struct {
	mu       sync.RWMutex
	channels []Channel
	logger   zerolog.Logger
}

// NewMultiNotifier creates a notifier over the given channels.
func NewMultiNotifier(logger zerolog.Logger, channels ...Channel) *MultiNotifier {
	return &MultiNotifier{channels: channels, logger: logger}
}

// AddChannel registers an additional delivery channel.
func (m *MultiNotifier) AddChannel(c Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, c)
}

// Notify sends to all enabled channels, logging failures and moving on.
func (m *MultiNotifier) Notify(ctx context.Context, n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	m.mu.RLock()
	channels := make([]Channel, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	for _, c := range channels {
		if !c.IsEnabled() {
			continue
		}
		if err := c.Send(ctx, n); err != nil {
			m.logger.Warn().
				Err(err).
				Str("channel", c.Name()).
				Str("kind", string(n.Kind)).
				Msg("Notification delivery failed")
		}
	}
}

// Nop is a Notifier that discards everything.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) {}

var (
	_ Notifier = (*MultiNotifier)(nil)
	_ Notifier = Nop{}
)
