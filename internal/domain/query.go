package domain

import "time"

// Query is a candidate support request: the first top-level message posted
// in the monitored channel, before triage.
type Query struct {
	ID        string
	ChannelID string
	MessageTS string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// NaturalKey returns the dedup key for a query.
func (q *Query) NaturalKey() string {
	return q.ChannelID + ":" + q.MessageTS
}
