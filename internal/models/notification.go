// internal/models/notification.go
package models

import "time"

const (
	SeverityDefault     = "default"
	SeverityDestructive = "destructive"
)

// Notification is a transient toast shown once to the session that caused it.
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (n Notification) IsDestructive() bool {
	return n.Severity == SeverityDestructive
}
