package storage

import (
	"strconv"

	"github.com/google/uuid"
)

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// parseCursor decodes an event cursor, the sequence number of the last event
// on the previous page.
func parseCursor(cursor string) (uint64, error) {
	if cursor == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return 0, ErrInvalidCursor
	}
	return seq, nil
}

// pageEvents trims a limit+1 result set to a page.
func pageEvents(events []EventRecord, limit int) *PaginatedResult[EventRecord] {
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	var nextCursor string
	if hasMore && len(events) > 0 {
		nextCursor = strconv.FormatUint(events[len(events)-1].Seq, 10)
	}
	return &PaginatedResult[EventRecord]{Data: events, HasMore: hasMore, NextCursor: nextCursor}
}
