package model

import "time"

// RecordResponse is the API representation of a ProcessingRecord joined
// with its message content.
type RecordResponse struct {
	MessageID   string    `json:"message_id"`
	Sender      string    `json:"sender"`
	Subject     string    `json:"subject"`
	ReceivedAt  time.Time `json:"received_at"`
	Category    Category  `json:"category"`
	MatchedRule string    `json:"matched_rule"`
	Status      Status    `json:"status"`
	ActionTaken Action    `json:"action_taken"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StatsResponse aggregates processing counts for the monitoring surface.
type StatsResponse struct {
	TotalMessages     int64   `json:"total_messages"`
	NormalMessages    int64   `json:"normal_messages"`
	ImportantMessages int64   `json:"important_messages"`
	AutoRepliesSent   int64   `json:"auto_replies_sent"`
	NotificationsSent int64   `json:"notifications_sent"`
	FailedMessages    int64   `json:"failed_messages"`
	ProcessingRate    float64 `json:"processing_rate"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Scheduler map[string]string `json:"scheduler,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
