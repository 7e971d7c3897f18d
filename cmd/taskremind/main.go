package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/taskremind/internal/config"
	"github.com/sandeepkv93/taskremind/internal/locale"
	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/sandeepkv93/taskremind/internal/notify"
	"github.com/sandeepkv93/taskremind/internal/platform"
	"github.com/sandeepkv93/taskremind/internal/reconcile"
	"github.com/sandeepkv93/taskremind/internal/reminders"
	"github.com/sandeepkv93/taskremind/internal/rules"
	"github.com/sandeepkv93/taskremind/internal/session"
	"github.com/sandeepkv93/taskremind/internal/storage"
	"github.com/sandeepkv93/taskremind/internal/taskapi"
	"github.com/sandeepkv93/taskremind/internal/update"
)

const appName = "taskremind"

func main() {
	mode := flag.String("mode", "daemon", "run mode: daemon or tui")
	cfgPath := flag.String("config", "", "path to a config file (json, yaml or toml)")
	logPath := flag.String("log", "", "log file; defaults to stderr in daemon mode and taskremind.log in tui mode")
	flag.Parse()

	if err := run(*mode, *cfgPath, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", appName, err)
		os.Exit(1)
	}
}

type app struct {
	cfg      config.Config
	log      *log.Logger
	repo     *storage.SQLiteRepository
	platform *platform.Scheduler
	svc      *reminders.Service
	session  *session.Session
	client   *taskapi.Client
	notifier notify.Notifier
	closers  []io.Closer

	// onRefresh observes session refreshes; set before the session runs.
	onRefresh func(session.Outcome, error)
}

func run(mode, cfgPath, logPath string) error {
	if mode != "daemon" && mode != "tui" {
		return fmt.Errorf("unknown mode %q", mode)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if logPath == "" && mode == "tui" {
		logPath = appName + ".log"
	}
	var out io.Writer = os.Stderr
	if logPath != "" {
		fh, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer fh.Close()
		out = fh
	}
	logger, err := logging.New(out, appName, cfg.LogLevel)
	if err != nil {
		return err
	}

	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.platform.Start(ctx); err != nil {
		return err
	}
	defer a.platform.Stop()
	if !a.svc.RequestPermission(ctx) {
		logger.Println("[WARN] Notification permission not granted, reminders will not be scheduled")
	}
	if a.client.Health(ctx) {
		logger.Printf("[INFO] Task API at %s is reachable\n", cfg.APIBaseURL)
	}

	if mode == "tui" {
		return a.runTUI(ctx)
	}
	return a.runDaemon(ctx)
}

func build(cfg config.Config, logger *log.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}

	repo, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.repo = repo
	a.closers = append(a.closers, repo)

	a.platform = platform.New(platform.Options{
		Buffer:  cfg.SchedulerBuffer,
		Journal: repo,
		Logger:  logger,
	})

	loc, err := cfg.Location()
	if err != nil {
		a.close()
		return nil, err
	}
	eval := rules.NewEvaluator(locale.MustLookup(cfg.Locale))
	eval.ReminderHour = cfg.ReminderHour
	eval.Location = loc
	eval.ImmediateDelay = cfg.ImmediateDelay
	eval.OverdueDelay = cfg.OverdueDelay

	a.svc = reminders.NewService(a.platform, reminders.Options{
		Evaluator: eval,
		BatchSize: cfg.BatchSize,
		Logger:    logger,
	})

	client, err := taskapi.New(cfg.APIBaseURL, taskapi.Options{
		Token:   cfg.APIToken,
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client

	a.session = session.New(client, a.svc, reconcile.New(a.svc, logger), session.Options{
		PollInterval: cfg.PollInterval,
		Logger:       logger,
		OnRefresh: func(out session.Outcome, err error) {
			if a.onRefresh != nil {
				a.onRefresh(out, err)
			}
		},
	})

	a.notifier = notify.LogNotifier{Logger: logger}
	if cfg.DesktopNotifications {
		desktop, err := notify.NewDBusNotifier(appName)
		if err != nil {
			logger.Printf("[WARN] Desktop notifications unavailable: %s\n", err.Error())
		} else {
			a.notifier = notify.Multi{desktop, a.notifier}
			a.closers = append(a.closers, desktop)
		}
	}
	return a, nil
}

func (a *app) pump(extra ...notify.Listener) *notify.Pump {
	listeners := []notify.Listener{
		// A fired notification is gone from the platform schedule.
		func(d platform.Delivery) { a.svc.Cache().RemoveID(d.ID) },
	}
	return &notify.Pump{
		Notifier:  a.notifier,
		Log:       a.repo,
		Listeners: append(listeners, extra...),
		Logger:    a.log,
	}
}

func (a *app) runDaemon(ctx context.Context) error {
	a.log.Printf("[INFO] Starting daemon, backend %s\n", a.cfg.APIBaseURL)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sent := a.pump().Run(ctx, a.platform.C())
		a.log.Printf("[INFO] Delivered %d notifications\n", sent)
	}()

	err := a.session.Run(ctx)
	wg.Wait()
	return err
}

func (a *app) runTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := update.NewModel(a.session, a.svc, update.Options{ActionTimeout: a.cfg.APITimeout})
	program := tea.NewProgram(model, tea.WithContext(ctx))
	a.onRefresh = func(out session.Outcome, err error) {
		program.Send(update.RefreshedMsg{Outcome: out, Err: err, Scheduled: a.svc.ScheduledNotifications(ctx)})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.pump(func(d platform.Delivery) {
			program.Send(update.DeliveryMsg{Delivery: d})
		}).Run(ctx, a.platform.C())
	}()
	go func() {
		defer wg.Done()
		_ = a.session.Run(ctx)
	}()

	_, err := program.Run()
	cancel()
	wg.Wait()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Printf("[WARN] Close: %s\n", err.Error())
		}
	}
	a.closers = nil
}
