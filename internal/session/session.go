// Package session keeps reminders in step with the task backend: it polls
// the task list, runs the differential reconciler on every change and
// clears everything on logout.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/sandeepkv93/taskremind/internal/model"
	"github.com/sandeepkv93/taskremind/internal/reconcile"
	"github.com/sandeepkv93/taskremind/internal/taskapi"
)

const DefaultPollInterval = time.Minute

type TaskSource interface {
	Tasks(ctx context.Context) ([]model.Task, error)
}

type Engine interface {
	ScheduleRemindersForTaskList(ctx context.Context, tasks []model.Task) int
	CancelAllReminders(ctx context.Context) bool
}

type Differ interface {
	Reconcile(ctx context.Context, tasks []model.Task) reconcile.Result
	Seed(tasks []model.Task)
	Reset()
}

// Outcome describes one refresh. Initial refreshes run the full task-list
// pass and report Scheduled; later ones report the reconcile Result.
type Outcome struct {
	At        time.Time
	Tasks     []model.Task
	Initial   bool
	Scheduled int
	Result    reconcile.Result
}

type Options struct {
	PollInterval time.Duration
	Now          func() time.Time
	Logger       *log.Logger
	// OnRefresh, when set, observes every refresh made by Run.
	OnRefresh func(Outcome, error)
}

type Session struct {
	src      TaskSource
	engine   Engine
	differ   Differ
	interval time.Duration
	now      func() time.Time
	log      *log.Logger
	onResult func(Outcome, error)

	refreshMu sync.Mutex

	mu      sync.RWMutex
	loaded  bool
	last    Outcome
	lastErr error
}

func New(src TaskSource, engine Engine, differ Differ, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		src:      src,
		engine:   engine,
		differ:   differ,
		interval: opts.PollInterval,
		now:      opts.Now,
		log:      logging.OrDiscard(opts.Logger),
		onResult: opts.OnRefresh,
	}
}

// Refresh fetches the task list and brings reminders in line with it. The
// first successful refresh after start or logout starts from a clean
// platform schedule and runs the full task-list pass. An unauthorized
// response logs the session out.
func (s *Session) Refresh(ctx context.Context) (Outcome, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	tasks, err := s.src.Tasks(ctx)
	if err != nil {
		s.log.Printf("[ERROR] Cannot load tasks: %s\n", err.Error())
		if errors.Is(err, taskapi.ErrUnauthorized) {
			s.logout(ctx)
		}
		s.setError(err)
		return Outcome{}, err
	}

	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()

	out := Outcome{At: s.now(), Tasks: tasks}
	if !loaded {
		out.Initial = true
		s.engine.CancelAllReminders(ctx)
		out.Scheduled = s.engine.ScheduleRemindersForTaskList(ctx, tasks)
		s.differ.Seed(tasks)
		s.log.Printf("[INFO] Initial load: %d tasks, %d notifications scheduled\n", len(tasks), out.Scheduled)
	} else {
		out.Result = s.differ.Reconcile(ctx, tasks)
	}

	s.mu.Lock()
	s.loaded = len(tasks) > 0 || loaded
	s.last = out
	s.lastErr = nil
	s.mu.Unlock()
	return out, nil
}

// Run refreshes immediately and then every poll interval until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.log.Printf("[INFO] Polling tasks every %s\n", s.interval)
	s.refreshAndReport(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Println("[TRACE] Quitting session loop")
			return nil
		case <-ticker.C:
			s.refreshAndReport(ctx)
		}
	}
}

// Logout cancels every reminder and forgets the task snapshot.
func (s *Session) Logout(ctx context.Context) bool {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.logout(ctx)
}

func (s *Session) logout(ctx context.Context) bool {
	ok := s.engine.CancelAllReminders(ctx)
	s.differ.Reset()
	s.mu.Lock()
	s.loaded = false
	s.last = Outcome{}
	s.mu.Unlock()
	s.log.Println("[INFO] Logged out, all reminders cancelled")
	return ok
}

// Last returns the latest successful outcome and the latest error.
func (s *Session) Last() (Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr
}

func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Session) refreshAndReport(ctx context.Context) {
	out, err := s.Refresh(ctx)
	if s.onResult != nil {
		s.onResult(out, err)
	}
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}
