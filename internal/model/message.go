package model

import (
	"time"
)

// Message represents one inbound email captured at fetch time.
// Content fields are immutable after creation; MessageID is the
// idempotency key (unique per mailbox).
type Message struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID  string    `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Sender     string    `json:"sender" gorm:"type:varchar(255);not null"`
	Recipient  string    `json:"recipient" gorm:"type:varchar(255)"`
	Subject    string    `json:"subject" gorm:"type:varchar(998)"`
	BodyText   string    `json:"body_text" gorm:"type:text"`
	ReceivedAt time.Time `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "messages"
}

// MailboxCursor persists the opaque fetch cursor so restarts resume
// from the last committed position instead of a side file.
type MailboxCursor struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Mailbox   string    `json:"mailbox" gorm:"type:varchar(255);not null;uniqueIndex"`
	Value     string    `json:"value" gorm:"type:varchar(255)"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for MailboxCursor
func (MailboxCursor) TableName() string {
	return "mailbox_cursors"
}
