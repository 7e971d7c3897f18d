// Package notify hands fired notifications to the user: desktop popups over
// the session bus, the log, or nowhere.
package notify

import (
	"context"
	"errors"
	"log"

	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/sandeepkv93/taskremind/internal/platform"
)

var ErrNoSink = errors.New("notify: no notifier configured")

type Notifier interface {
	Send(ctx context.Context, d platform.Delivery) error
}

type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, platform.Delivery) error { return nil }

// LogNotifier writes deliveries to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Send(_ context.Context, d platform.Delivery) error {
	logging.OrDiscard(n.Logger).Printf("[INFO] Notification %s for task %d (%s): %s | %s\n",
		d.ID, d.Data.TaskID, d.Data.Type, d.Title, d.Body)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, d platform.Delivery) error {
	if len(m) == 0 {
		return ErrNoSink
	}
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
