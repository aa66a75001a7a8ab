// Package orchestrator runs the periodic batch-processing loop: it
// pulls a bounded batch of new messages, drives each one through the
// classifier, the store's idempotency checks, the action router and the
// retry policy, and commits the outcome so that re-running a cycle
// never re-processes a message.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"smartmailer/internal/action"
	"smartmailer/internal/classifier"
	"smartmailer/internal/config"
	"smartmailer/internal/metrics"
	"smartmailer/internal/retry"
	"smartmailer/internal/store"
	"smartmailer/internal/transport"
)

// mailboxKey identifies the single watched mailbox in cursor storage.
const mailboxKey = "INBOX"

// Orchestrator schedules and executes processing cycles. A single
// instance owns the store (single-writer); within a cycle, per-message
// work fans out over a bounded worker pool.
type Orchestrator struct {
	cron    *cron.Cron
	entryID cron.EntryID
	config  *config.SchedulerConfig

	fetcher    transport.MailboxFetcher
	store      *store.Store
	classifier *classifier.Classifier
	router     *action.Router
	replies    transport.ReplySender
	alerts     transport.AlertNotifier
	policy     retry.Policy
	metrics    *metrics.Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

// New creates an orchestrator wired to its collaborators.
func New(cfg *config.SchedulerConfig, policy retry.Policy, fetcher transport.MailboxFetcher,
	st *store.Store, cls *classifier.Classifier, router *action.Router,
	replies transport.ReplySender, alerts transport.AlertNotifier, m *metrics.Metrics) *Orchestrator {

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		cron:       cron.New(cron.WithSeconds()),
		config:     cfg,
		fetcher:    fetcher,
		store:      st,
		classifier: cls,
		router:     router,
		replies:    replies,
		alerts:     alerts,
		policy:     policy,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the interval schedule.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.isRunning {
		return fmt.Errorf("orchestrator is already running")
	}

	schedule := fmt.Sprintf("0 */%d * * * *", o.config.IntervalMinutes)

	entryID, err := o.cron.AddFunc(schedule, o.processCycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	if o.ctx.Err() != nil {
		o.ctx, o.cancel = context.WithCancel(context.Background())
	}

	o.entryID = entryID
	o.cron.Start()
	o.isRunning = true

	logrus.Infof("Orchestrator started with interval: %d minutes", o.config.IntervalMinutes)
	return nil
}

// Stop stops the schedule and stops accepting new messages. In-flight
// per-message work runs to a terminal status; callers use Wait to drain.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.isRunning {
		return nil
	}

	o.cancel()

	ctx := o.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Orchestrator stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Orchestrator stop timeout, forcing shutdown")
	}

	o.isRunning = false
	return nil
}

// IsRunning returns whether the schedule is active.
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.isRunning
}

// RunOnce runs one processing cycle immediately (manual trigger). It
// fails when the orchestrator is stopped instead of silently skipping.
func (o *Orchestrator) RunOnce() error {
	if !o.IsRunning() {
		return fmt.Errorf("orchestrator is not running")
	}
	logrus.Info("Running processing cycle once")
	o.processCycle()
	return nil
}

// NextRun returns the time of the next scheduled cycle.
func (o *Orchestrator) NextRun() time.Time {
	if !o.IsRunning() {
		return time.Time{}
	}
	return o.cron.Entry(o.entryID).Next
}

// LastRun returns the time of the last scheduled cycle.
func (o *Orchestrator) LastRun() time.Time {
	if !o.IsRunning() {
		return time.Time{}
	}
	return o.cron.Entry(o.entryID).Prev
}

// Wait blocks until in-flight cycle work has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
