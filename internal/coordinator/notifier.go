package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"etoken-wallet/internal/domain"
)

// Notification is the user-facing message for a successful action.
type Notification struct {
	Action  domain.ActionType
	Title   string
	Message string
	TxID    string
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ShortTxID shortens a transaction id for display: ids of up to 12 characters are
// returned unchanged, longer ones become the first 6 and last 6 characters joined by an ellipsis.
func ShortTxID(txid string) string {
	if len(txid) <= 12 {
		return txid
	}
	return txid[:6] + "…" + txid[len(txid)-6:]
}

// Format builds the notification for p.
func Format(p Params) Notification {
	label := p.Action.Label()
	parts := []string{label, p.Amount}
	if p.Ticker != "" {
		parts = append(parts, p.Ticker)
	}
	return Notification{
		Action:  p.Action,
		Title:   fmt.Sprintf("%s successfully", label),
		Message: fmt.Sprintf("%s (tx %s)", strings.Join(parts, " "), ShortTxID(p.TxID)),
		TxID:    p.TxID,
	}
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n at info level.
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info(n.Title, zap.String("message", n.Message), zap.String("txid", n.TxID))
	return nil
}

// RecordingNotifier keeps every notification in memory.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify records n.
func (r *RecordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns the recorded notifications.
func (r *RecordingNotifier) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
