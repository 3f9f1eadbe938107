package session

import "time"

// SummaryBlock is an append-only compression record covering a contiguous,
// non-overlapping range of the non-system message list. Invariant:
// summary[k].To+1 == summary[k+1].From, and the last block's To+1 never
// exceeds the session's CompressedCount.
type SummaryBlock struct {
	Timestamp time.Time `json:"ts"`
	From      int       `json:"from"`
	To        int       `json:"to"`
	Content   string    `json:"content"`
}
