package ops

import (
	"context"
	"strings"

	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/signing"
	"github.com/sisilabsai/thesignal/internal/store"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Query  string // case-insensitive substring over title, excerpt and url
	Limit  int    // default: 50, max: 200
	Offset int    // default: 0
}

// ListItem is the public summary of a record. Key material and the
// canonical message are left out.
type ListItem struct {
	ID          string                `json:"id"`
	URL         string                `json:"url"`
	Title       string                `json:"title"`
	Excerpt     string                `json:"excerpt"`
	CreatedAt   string                `json:"createdAt"`
	ReceivedAt  string                `json:"receivedAt"`
	Fingerprint string                `json:"fingerprint"`
	Author      *record.AuthorProfile `json:"author"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Total      int        `json:"total"`
	Items      []ListItem `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// List searches records, newest first.
func List(ctx context.Context, s store.Store, input ListInput) (*ListOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	snap, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(signing.Normalize(input.Query))
	matched := make([]record.Record, 0, len(snap.Records))
	for _, r := range snap.Records {
		if query == "" || matches(&r, query) {
			matched = append(matched, r)
		}
	}
	sortNewestFirst(matched)

	window := page(matched, limit, offset)
	items := make([]ListItem, 0, len(window))
	for i := range window {
		items = append(items, toListItem(&window[i]))
	}

	return &ListOutput{
		Total: len(matched),
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < len(matched),
			Total:   len(matched),
		},
	}, nil
}

func matches(r *record.Record, query string) bool {
	haystack := strings.ToLower(r.Title + " " + r.Excerpt + " " + r.URL)
	return strings.Contains(haystack, query)
}

func toListItem(r *record.Record) ListItem {
	c := r.Clone()
	return ListItem{
		ID:          c.ID,
		URL:         c.URL,
		Title:       c.Title,
		Excerpt:     c.Excerpt,
		CreatedAt:   c.CreatedAt,
		ReceivedAt:  c.ReceivedAt,
		Fingerprint: c.Fingerprint,
		Author:      c.Author,
	}
}
