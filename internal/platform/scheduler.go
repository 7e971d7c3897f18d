// Package platform is the local notification scheduler: a heap of pending
// notifications ordered by trigger time, drained by a single timer loop.
// It implements store.Store, so the scheduling engine treats it as the
// platform's notification primitive.
package platform

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/sandeepkv93/taskremind/internal/model"
	"github.com/sandeepkv93/taskremind/internal/store"
)

// Journal persists pending notifications across restarts.
type Journal interface {
	Save(ctx context.Context, item store.Scheduled) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Pending(ctx context.Context) ([]store.Scheduled, error)
}

// Delivery is a notification whose trigger time was reached.
type Delivery struct {
	store.Scheduled
	FiredAt time.Time
}

type Options struct {
	Buffer         int
	Journal        Journal
	DenyPermission bool
	Now            func() time.Time
	Logger         *log.Logger
}

type queueItem struct {
	item  store.Scheduled
	index int
}

type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].item.TriggerTime.Equal(pq[j].item.TriggerTime) {
		return pq[i].item.ID < pq[j].item.ID
	}
	return pq[i].item.TriggerTime.Before(pq[j].item.TriggerTime)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	qi := x.(*queueItem)
	qi.index = len(*pq)
	*pq = append(*pq, qi)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	qi := old[n-1]
	old[n-1] = nil
	qi.index = -1
	*pq = old[0 : n-1]
	return qi
}

type Scheduler struct {
	mu      sync.Mutex
	queue   priorityQueue
	byID    map[string]*queueItem
	out     chan Delivery
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64

	journal Journal
	deny    bool
	now     func() time.Time
	log     *log.Logger
}

func New(opts Options) *Scheduler {
	if opts.Buffer <= 0 {
		opts.Buffer = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		queue:   make(priorityQueue, 0),
		byID:    make(map[string]*queueItem),
		out:     make(chan Delivery, opts.Buffer),
		wakeup:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		journal: opts.Journal,
		deny:    opts.DenyPermission,
		now:     opts.Now,
		log:     logging.OrDiscard(opts.Logger),
	}
}

// C delivers fired notifications. It is closed after Stop.
func (s *Scheduler) C() <-chan Delivery {
	return s.out
}

// Start reloads the journal, if any, and starts the timer loop. Entries
// whose trigger time passed while the process was down fire right away.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.stopped {
		return store.ErrClosed
	}

	if s.journal != nil {
		pending, err := s.journal.Pending(ctx)
		if err != nil {
			return fmt.Errorf("platform: load journal: %w", err)
		}
		for _, item := range pending {
			if _, ok := s.byID[item.ID]; ok {
				continue
			}
			if err := reminderOf(item).Validate(); err != nil {
				s.log.Printf("[WARN] Discarding journal entry %s: %s\n", item.ID, err.Error())
				if err := s.journal.Delete(ctx, item.ID); err != nil {
					s.log.Printf("[ERROR] Cannot discard journal entry %s: %s\n", item.ID, err.Error())
				}
				continue
			}
			qi := &queueItem{item: item}
			s.byID[item.ID] = qi
			s.queue = append(s.queue, qi)
		}
		s.log.Printf("[INFO] Restored %d pending notifications from journal\n", len(s.byID))
	}

	for i, qi := range s.queue {
		qi.index = i
	}
	heap.Init(&s.queue)
	s.started = true
	go s.loop()
	return nil
}

func reminderOf(item store.Scheduled) model.ScheduledReminder {
	return model.ScheduledReminder{
		ID:          item.ID,
		TaskID:      item.Data.TaskID,
		Kind:        item.Data.Type,
		TriggerTime: item.TriggerTime,
		Title:       item.Title,
		Body:        item.Body,
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if !s.started {
		close(s.out)
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()
	<-s.doneCh
}

func (s *Scheduler) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !s.deny, nil
}

// Schedule queues a notification to fire after req.Delay and returns its id.
func (s *Scheduler) Schedule(ctx context.Context, req store.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.deny {
		return "", store.ErrPermissionDenied
	}
	if req.Delay <= 0 {
		return "", store.ErrInvalidDelay
	}

	item := store.Scheduled{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		TriggerTime: s.now().Add(req.Delay),
		Priority:    req.Priority,
	}
	if err := s.add(ctx, item); err != nil {
		return "", err
	}
	return item.ID, nil
}

func (s *Scheduler) add(ctx context.Context, item store.Scheduled) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return store.ErrClosed
	}
	if s.journal != nil {
		if err := s.journal.Save(ctx, item); err != nil {
			return fmt.Errorf("platform: persist %s: %w", item.ID, err)
		}
	}

	qi := &queueItem{item: item}
	heap.Push(&s.queue, qi)
	s.byID[item.ID] = qi
	s.signalWakeup()
	return nil
}

// Cancel removes a pending notification. Unknown ids are not an error.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	qi, ok := s.byID[id]
	if !ok {
		return nil
	}
	heap.Remove(&s.queue, qi.index)
	delete(s.byID, id)
	s.signalWakeup()

	if s.journal != nil {
		if err := s.journal.Delete(ctx, id); err != nil {
			return fmt.Errorf("platform: unpersist %s: %w", id, err)
		}
	}
	return nil
}

func (s *Scheduler) CancelAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = make(priorityQueue, 0)
	s.byID = make(map[string]*queueItem)
	s.signalWakeup()

	if s.journal != nil {
		if err := s.journal.DeleteAll(ctx); err != nil {
			return fmt.Errorf("platform: clear journal: %w", err)
		}
	}
	return nil
}

// List returns pending notifications ordered by trigger time.
func (s *Scheduler) List(ctx context.Context) ([]store.Scheduled, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Scheduled, 0, len(s.queue))
	for _, qi := range s.queue {
		out = append(out, qi.item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggerTime.Equal(out[j].TriggerTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].TriggerTime.Before(out[j].TriggerTime)
	})
	return out, nil
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Dropped counts deliveries discarded because the consumer fell behind.
func (s *Scheduler) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	defer close(s.out)

	var timer *time.Timer
	for {
		next, hasNext := s.peek()
		if !hasNext {
			select {
			case <-s.wakeup:
				continue
			case <-s.stopCh:
				return
			}
		}

		wait := next.TriggerTime.Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			now := s.now()
			for _, item := range s.popDue(now) {
				s.forget(item.ID)
				select {
				case s.out <- Delivery{Scheduled: item, FiredAt: now}:
				default:
					atomic.AddUint64(&s.dropped, 1)
					s.log.Printf("[WARN] Delivery of %s dropped, consumer is behind\n", item.ID)
				}
			}
		case <-s.wakeup:
			continue
		case <-s.stopCh:
			stopTimer(timer)
			return
		}
	}
}

// forget removes a fired entry from the journal.
func (s *Scheduler) forget(id string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Delete(context.Background(), id); err != nil {
		s.log.Printf("[ERROR] Cannot remove fired notification %s from journal: %s\n", id, err.Error())
	}
}

func (s *Scheduler) signalWakeup() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

func (s *Scheduler) peek() (store.Scheduled, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return store.Scheduled{}, false
	}
	return s.queue[0].item, true
}

func (s *Scheduler) popDue(now time.Time) []store.Scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Scheduled, 0)
	for len(s.queue) > 0 {
		next := s.queue[0].item
		if next.TriggerTime.After(now) {
			break
		}
		qi := heap.Pop(&s.queue).(*queueItem)
		delete(s.byID, qi.item.ID)
		out = append(out, qi.item)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

var _ store.Store = (*Scheduler)(nil)
