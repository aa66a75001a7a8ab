package model

import (
	"time"
)

// Category is the classifier verdict for a message.
type Category string

const (
	CategoryNormal    Category = "normal"
	CategoryImportant Category = "important"
)

// MatchedRuleNone is recorded when no configured rule matched and the
// default category applied.
const MatchedRuleNone = "none"

// Status is the processing state of a message. Transitions are
// forward-only; completed and failed are terminal.
type Status string

const (
	StatusPending          Status = "pending"
	StatusClassified       Status = "classified"
	StatusActionDispatched Status = "action_dispatched"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Action records which downstream side effect was taken for a message.
type Action string

const (
	ActionNone             Action = "none"
	ActionAutoReplySent    Action = "auto_reply_sent"
	ActionNotificationSent Action = "notification_sent"
)

// ProcessingRecord is the durable outcome for one message and the unit
// of idempotency: the unique index on MessageID guarantees at most one
// record, and therefore at most one action dispatch, per message.
type ProcessingRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID   string    `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Category    Category  `json:"category" gorm:"type:varchar(32)"`
	MatchedRule string    `json:"matched_rule" gorm:"type:varchar(255)"`
	Status      Status    `json:"status" gorm:"type:varchar(32);not null;index"`
	ActionTaken Action    `json:"action_taken" gorm:"type:varchar(32)"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for ProcessingRecord
func (ProcessingRecord) TableName() string {
	return "processing_records"
}

// Terminal reports whether s permits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions holds the allowed forward edges of the status graph.
var transitions = map[Status][]Status{
	StatusPending:          {StatusClassified, StatusFailed},
	StatusClassified:       {StatusActionDispatched, StatusFailed},
	StatusActionDispatched: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a record may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}
