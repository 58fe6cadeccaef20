package ops

import (
	"sort"
	"strings"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/record"
)

// Pagination limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// clampPage applies limit defaults and bounds and keeps offset non-negative.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// page slices records[offset:offset+limit] without panicking on short input.
func page(records []record.Record, limit, offset int) []record.Record {
	if offset >= len(records) {
		return []record.Record{}
	}
	end := min(offset+limit, len(records))
	return records[offset:end]
}

// sortNewestFirst orders records by receivedAt, newest first. Ties keep
// insertion order.
func sortNewestFirst(records []record.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ReceivedTime().After(records[j].ReceivedTime())
	})
}

// requireID trims and checks an id parameter.
func requireID(id, field string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest(field + " is required")
	}
	return id, nil
}
