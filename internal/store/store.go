// Package store owns all persisted processing state: messages, their
// processing records, and the mailbox cursor. The unique index on
// message_id is the storage-level idempotency guarantee; status updates
// follow a forward-only graph and terminal records are immutable.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"smartmailer/internal/model"
)

var (
	// ErrDuplicateMessage is returned when a processing record already
	// exists for a message id. Benign under races; callers skip.
	ErrDuplicateMessage = errors.New("processing record already exists for message")

	// ErrRecordNotFound is returned when no record exists for a message id.
	ErrRecordNotFound = errors.New("processing record not found")

	// ErrInvalidTransition is returned when a status update does not
	// follow the forward-only transition graph.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the durable message store backed by GORM.
type Store struct {
	db *gorm.DB
}

// New creates a Store on an initialized database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema for all owned models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Message{}, &model.ProcessingRecord{}, &model.MailboxCursor{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping() error {
	return s.db.Exec("SELECT 1").Error
}

// HasRecord reports whether any processing record exists for the id.
func (s *Store) HasRecord(messageID string) (bool, error) {
	var count int64
	if err := s.db.Model(&model.ProcessingRecord{}).Where("message_id = ?", messageID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to probe record: %w", err)
	}
	return count > 0, nil
}

// GetRecord returns the processing record for a message id, or
// ErrRecordNotFound.
func (s *Store) GetRecord(messageID string) (*model.ProcessingRecord, error) {
	var rec model.ProcessingRecord
	err := s.db.Where("message_id = ?", messageID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return &rec, nil
}

// GetMessage returns the stored message content for a message id.
func (s *Store) GetMessage(messageID string) (*model.Message, error) {
	var msg model.Message
	err := s.db.Where("message_id = ?", messageID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return &msg, nil
}

// CreatePending stores the message content and a pending processing
// record in one transaction. The unique index on message_id rejects a
// second create with ErrDuplicateMessage, which protects against races
// independently of any orchestrator-side checks.
func (s *Store) CreatePending(msg model.Message) (*model.ProcessingRecord, error) {
	rec := model.ProcessingRecord{
		MessageID:   msg.MessageID,
		Status:      model.StatusPending,
		ActionTaken: model.ActionNone,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.Message
		err := tx.Where("message_id = ?", msg.MessageID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(&msg).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		return tx.Create(&rec).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateMessage
		}
		return nil, fmt.Errorf("failed to create pending record: %w", err)
	}

	return &rec, nil
}

// StatusUpdate carries the optional fields written alongside a status
// transition. Zero values are not written.
type StatusUpdate struct {
	Category    model.Category
	MatchedRule string
	ActionTaken model.Action
	Attempts    int
	LastError   string
}

// UpdateStatus moves a record to next. It fails with ErrRecordNotFound
// if the record is absent and ErrInvalidTransition if next does not
// follow the forward-only graph from the stored status. The write is a
// single atomic update guarded by the current status, so a concurrent
// transition loses cleanly instead of regressing state.
func (s *Store) UpdateStatus(messageID string, next model.Status, update StatusUpdate) error {
	rec, err := s.GetRecord(messageID)
	if err != nil {
		return err
	}

	if !rec.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s for message %s", ErrInvalidTransition, rec.Status, next, messageID)
	}

	fields := map[string]interface{}{"status": next}
	if update.Category != "" {
		fields["category"] = update.Category
	}
	if update.MatchedRule != "" {
		fields["matched_rule"] = update.MatchedRule
	}
	if update.ActionTaken != "" {
		fields["action_taken"] = update.ActionTaken
	}
	if update.Attempts > 0 {
		fields["attempts"] = update.Attempts
	}
	if update.LastError != "" {
		fields["last_error"] = update.LastError
	}

	result := s.db.Model(&model.ProcessingRecord{}).
		Where("message_id = ? AND status = ?", messageID, rec.Status).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: record for message %s changed concurrently", ErrInvalidTransition, messageID)
	}
	return nil
}

// QueryFilter narrows a record query. Zero fields are ignored.
type QueryFilter struct {
	Status   model.Status
	Category model.Category
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Query returns processing records joined with their message content,
// newest first. Read-only; used by the monitoring surface.
func (s *Store) Query(filter QueryFilter) ([]model.RecordResponse, error) {
	q := s.db.Table("processing_records").
		Select(`processing_records.message_id, messages.sender, messages.subject,
			messages.received_at, processing_records.category, processing_records.matched_rule,
			processing_records.status, processing_records.action_taken, processing_records.attempts,
			processing_records.last_error, processing_records.created_at, processing_records.updated_at`).
		Joins("LEFT JOIN messages ON messages.message_id = processing_records.message_id")

	if filter.Status != "" {
		q = q.Where("processing_records.status = ?", filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("processing_records.category = ?", filter.Category)
	}
	if !filter.Since.IsZero() {
		q = q.Where("processing_records.created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("processing_records.created_at <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var records []model.RecordResponse
	if err := q.Order("processing_records.created_at DESC").Limit(limit).Scan(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return records, nil
}

// Stats aggregates processing counts for the monitoring surface.
func (s *Store) Stats() (model.StatsResponse, error) {
	var stats model.StatsResponse

	counts := []struct {
		dest  *int64
		where []interface{}
	}{
		{&stats.TotalMessages, nil},
		{&stats.NormalMessages, []interface{}{"category = ?", model.CategoryNormal}},
		{&stats.ImportantMessages, []interface{}{"category = ?", model.CategoryImportant}},
		{&stats.AutoRepliesSent, []interface{}{"action_taken = ?", model.ActionAutoReplySent}},
		{&stats.NotificationsSent, []interface{}{"action_taken = ?", model.ActionNotificationSent}},
		{&stats.FailedMessages, []interface{}{"status = ?", model.StatusFailed}},
	}

	for _, c := range counts {
		q := s.db.Model(&model.ProcessingRecord{})
		if c.where != nil {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return stats, fmt.Errorf("failed to compute stats: %w", err)
		}
	}

	total := stats.TotalMessages
	if total == 0 {
		total = 1
	}
	stats.ProcessingRate = float64(stats.AutoRepliesSent+stats.NotificationsSent) / float64(total) * 100

	return stats, nil
}

// LoadCursor returns the persisted cursor for a mailbox, empty when the
// mailbox has never been fetched.
func (s *Store) LoadCursor(mailbox string) (string, error) {
	var cursor model.MailboxCursor
	err := s.db.Where("mailbox = ?", mailbox).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cursor: %w", err)
	}
	return cursor.Value, nil
}

// SaveCursor durably advances the cursor for a mailbox. Called only
// after a cycle's records are committed.
func (s *Store) SaveCursor(mailbox, value string) error {
	var cursor model.MailboxCursor
	err := s.db.Where("mailbox = ?", mailbox).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cursor = model.MailboxCursor{Mailbox: mailbox, Value: value}
		if err := s.db.Create(&cursor).Error; err != nil {
			return fmt.Errorf("failed to create cursor: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}

	if err := s.db.Model(&cursor).Update("value", value).Error; err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// CleanupOlderThan removes messages received before the cutoff together
// with their processing records. Maintenance only.
func (s *Store) CleanupOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	var ids []string
	if err := s.db.Model(&model.Message{}).Where("received_at < ?", cutoff).Pluck("message_id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find old messages: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id IN ?", ids).Delete(&model.ProcessingRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("message_id IN ?", ids).Delete(&model.Message{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old messages: %w", err)
	}

	return int64(len(ids)), nil
}

// isDuplicateKey detects unique-index violations across drivers.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate entry") || strings.Contains(s, "unique constraint")
}
