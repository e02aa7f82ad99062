// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for trading events.
package notification

import (
	"context"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Event kinds carried on alerts, so structured consumers can route
// without parsing the human-readable text.
const (
	EventSignal       = "signal"
	EventExit         = "exit"
	EventDeadlineMiss = "square_off_missed"
)

// Alert represents a notification to be sent. Title and Message are the
// human-readable rendering; Event, Symbol and Fields carry the trade data
// for backends that forward structured payloads.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Event   string            `json:"event"`
	Symbol  string            `json:"symbol,omitempty"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// MultiNotifier fans an alert out to several backends. Delivery is
// best-effort per backend; one failing channel never blocks another.
type MultiNotifier struct {
	backends []Notifier
}

func NewMultiNotifier(backends ...Notifier) *MultiNotifier {
	return &MultiNotifier{backends: backends}
}

func (m *MultiNotifier) Send(ctx context.Context, alert Alert) error {
	var lastErr error
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend delivery failed: %v", err)
			lastErr = err
		}
	}
	return lastErr
}
