package notify

import (
	"context"
	"log"
	"time"

	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/sandeepkv93/taskremind/internal/platform"
	"github.com/sandeepkv93/taskremind/internal/storage"
)

const DefaultSendTimeout = 5 * time.Second

// Listener is called for every delivery after the notifier ran, whether or
// not it succeeded.
type Listener func(d platform.Delivery)

// DeliveryLog records what the pump delivered.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, in storage.DeliveryRecord) error
}

type Pump struct {
	Notifier    Notifier
	Log         DeliveryLog
	Listeners   []Listener
	SendTimeout time.Duration
	Logger      *log.Logger
}

// Run drains src until it is closed or ctx is done and returns the number of
// deliveries the notifier accepted.
func (p *Pump) Run(ctx context.Context, src <-chan platform.Delivery) int {
	lg := logging.OrDiscard(p.Logger)
	defer lg.Println("[TRACE] Quitting notification pump")

	sent := 0
	for {
		select {
		case <-ctx.Done():
			return sent
		case d, ok := <-src:
			if !ok {
				return sent
			}
			if p.deliver(ctx, lg, d) {
				sent++
			}
		}
	}
}

func (p *Pump) deliver(ctx context.Context, lg *log.Logger, d platform.Delivery) bool {
	lg.Printf("[DEBUG] Received notification %s (%s) for task %d\n", d.ID, d.Data.Type, d.Data.TaskID)

	timeout := p.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	notifier := p.Notifier
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	err := notifier.Send(sendCtx, d)
	if err != nil {
		lg.Printf("[ERROR] Failed to post notification %q: %s\n", d.Title, err.Error())
	}

	if p.Log != nil {
		rec := storage.DeliveryRecord{
			NotificationID: d.ID,
			TaskID:         d.Data.TaskID,
			Type:           d.Data.Type,
			Title:          d.Title,
			TriggerAt:      d.TriggerTime,
			FiredAt:        d.FiredAt,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if logErr := p.Log.RecordDelivery(ctx, rec); logErr != nil {
			lg.Printf("[ERROR] Cannot record delivery of %s: %s\n", d.ID, logErr.Error())
		}
	}

	for _, l := range p.Listeners {
		l(d)
	}
	return err == nil
}
