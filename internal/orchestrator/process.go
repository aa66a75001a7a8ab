package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"smartmailer/internal/action"
	"smartmailer/internal/model"
	"smartmailer/internal/store"
)

// processCycle is the main processing function that runs periodically.
// A fetch failure aborts only the current cycle; the next interval
// retries. One message's failure never aborts the batch.
func (o *Orchestrator) processCycle() {
	o.wg.Add(1)
	defer o.wg.Done()

	log := logrus.WithField("cycle_id", uuid.New().String())
	log.Info("Starting processing cycle")

	o.mu.RLock()
	if !o.isRunning {
		o.mu.RUnlock()
		log.Info("Orchestrator not running, skipping cycle")
		return
	}
	o.mu.RUnlock()

	startTime := time.Now()
	o.metrics.CycleCount.Inc()

	cursor, err := o.store.LoadCursor(mailboxKey)
	if err != nil {
		log.Errorf("Failed to load mailbox cursor: %v", err)
		return
	}

	messages, nextCursor, err := o.fetcher.FetchNew(o.ctx, cursor, o.config.BatchSize)
	if err != nil {
		log.Errorf("Failed to fetch messages: %v", err)
		return
	}

	log.Infof("Fetched %d new messages", len(messages))
	o.metrics.FetchedCount.Add(float64(len(messages)))

	// Bounded worker pool. The dedup-check-then-create race is resolved
	// by the store's unique index, not by client-side locking.
	sem := make(chan struct{}, o.config.Workers)
	var batch sync.WaitGroup
	var recordless atomic.Bool

	for _, msg := range messages {
		if o.ctx.Err() != nil {
			log.Info("Shutdown requested, not starting further messages this cycle")
			break
		}

		sem <- struct{}{}
		batch.Add(1)
		go func(msg model.Message) {
			defer batch.Done()
			defer func() { <-sem }()
			if !o.processMessage(log, msg) {
				recordless.Store(true)
			}
		}(msg)
	}

	batch.Wait()

	// The cursor advances only after every pulled message has a durable
	// record, so a crash, shutdown or store failure mid-cycle leaves the
	// cursor behind and the next fetch re-observes the batch; the dedup
	// check then resumes whatever was interrupted. A message that exited
	// without any record would otherwise be lost for good.
	if o.ctx.Err() == nil && !recordless.Load() && nextCursor != cursor {
		if err := o.store.SaveCursor(mailboxKey, nextCursor); err != nil {
			log.Errorf("Failed to save mailbox cursor: %v", err)
		}
	}

	duration := time.Since(startTime)
	o.metrics.CycleDuration.Observe(duration.Seconds())
	log.Infof("Processing cycle completed in %v", duration)
}

// processMessage drives a single message to a terminal status. Dispatch
// runs under a background context so that shutdown stops new messages
// without stranding this one in a non-terminal state. It reports
// whether the message is backed by a durable record; on false the
// caller must not advance the cursor past it.
func (o *Orchestrator) processMessage(log *logrus.Entry, msg model.Message) bool {
	log = log.WithField("message_id", msg.MessageID)

	rec, err := o.store.GetRecord(msg.MessageID)
	switch {
	case err == nil:
		if rec.Status.Terminal() {
			log.Debugf("Message already processed, skipping")
			o.metrics.DedupSkips.Inc()
			return true
		}
		log.Infof("Resuming interrupted message from status %s", rec.Status)
	case errors.Is(err, store.ErrRecordNotFound):
		rec, err = o.store.CreatePending(msg)
		if errors.Is(err, store.ErrDuplicateMessage) {
			log.Debugf("Lost create race, skipping")
			return true
		}
		if err != nil {
			log.Errorf("Failed to create pending record: %v", err)
			return false
		}
	default:
		log.Errorf("Failed to probe record: %v", err)
		return false
	}

	o.advance(context.Background(), log, rec, msg)
	return true
}

// advance runs the remaining pipeline stages for a record, starting
// from its stored status. Classification is cheap and idempotent, so a
// record interrupted before dispatch is re-entered at the stage its
// status implies; a record already in action_dispatched re-attempts
// dispatch only.
func (o *Orchestrator) advance(ctx context.Context, log *logrus.Entry, rec *model.ProcessingRecord, msg model.Message) {
	status := rec.Status
	category := rec.Category
	matchedRule := rec.MatchedRule

	if status == model.StatusPending {
		cl := o.classifier.Classify(msg)
		category, matchedRule = cl.Category, cl.MatchedRule

		if err := o.store.UpdateStatus(msg.MessageID, model.StatusClassified, store.StatusUpdate{
			Category:    category,
			MatchedRule: matchedRule,
		}); err != nil {
			o.fail(log, msg.MessageID, 0, err)
			return
		}
		o.metrics.ClassifiedCount.WithLabelValues(string(category)).Inc()
		log.Infof("Classified as %s (rule: %s)", category, matchedRule)
		status = model.StatusClassified
	}

	act, err := o.router.Route(msg, category)
	if err != nil {
		// Rendering failures are permanent dispatch failures.
		o.fail(log, msg.MessageID, 0, err)
		return
	}

	if status == model.StatusClassified {
		if err := o.store.UpdateStatus(msg.MessageID, model.StatusActionDispatched, store.StatusUpdate{}); err != nil {
			o.fail(log, msg.MessageID, 0, err)
			return
		}
	}

	attempts, err := o.dispatch(ctx, act)
	if err != nil {
		o.fail(log, msg.MessageID, attempts, err)
		return
	}

	if err := o.store.UpdateStatus(msg.MessageID, model.StatusCompleted, store.StatusUpdate{
		ActionTaken: act.Taken(),
		Attempts:    attempts,
	}); err != nil {
		log.Errorf("Failed to commit completion: %v", err)
		return
	}

	switch act.Kind {
	case action.KindAutoReply:
		o.metrics.RepliesSent.Inc()
	case action.KindNotify:
		o.metrics.NotificationsSent.Inc()
	}
	log.Infof("Message completed with action %s", act.Taken())
}

// dispatch executes the routed action through the retry policy.
func (o *Orchestrator) dispatch(ctx context.Context, act action.Action) (int, error) {
	switch act.Kind {
	case action.KindAutoReply:
		return o.policy.Do(ctx, func(ctx context.Context) error {
			return o.replies.Send(ctx, act.To, act.Subject, act.HTMLBody)
		})
	case action.KindNotify:
		return o.policy.Do(ctx, func(ctx context.Context) error {
			return o.alerts.SendAlert(ctx, act.AlertText)
		})
	default:
		return 0, nil
	}
}

// fail marks a record as permanently failed. Failed is terminal; the
// message is never retried in a future cycle and surfaces through the
// monitoring API for operator remediation.
func (o *Orchestrator) fail(log *logrus.Entry, messageID string, attempts int, cause error) {
	log.Errorf("Message failed permanently: %v", cause)
	o.metrics.Failures.Inc()

	if err := o.store.UpdateStatus(messageID, model.StatusFailed, store.StatusUpdate{
		Attempts:  attempts,
		LastError: cause.Error(),
	}); err != nil {
		log.Errorf("Failed to record failure: %v", err)
	}
}
