package database

import "time"

// Session is a shell session as stored in the database.
type Session struct {
	ID        string
	Username  string
	Hostname  string
	TokenHash []byte // bcrypt hash of the session token
	CreatedAt time.Time
	ClosedAt  *time.Time // nil while the session is open
}

// Stats holds aggregate server statistics.
type Stats struct {
	TotalSessions int64
	OpenSessions  int64
	TotalEvents   int64
	FailedEvents  int64
}
