package ops

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/store"
)

// AuthorOutput is every record signed by one key.
type AuthorOutput struct {
	Fingerprint string                `json:"fingerprint"`
	Author      *record.AuthorProfile `json:"author"`
	Total       int                   `json:"total"`
	Items       []record.Record       `json:"items"`
}

// Author returns the records of the key with the given fingerprint, newest
// first. Author is the first profile found in insertion order.
func Author(ctx context.Context, s store.Store, fingerprint string) (*AuthorOutput, error) {
	fp, err := requireID(fingerprint, "fingerprint")
	if err != nil {
		return nil, err
	}
	fp = strings.ToLower(fp)

	snap, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	out := &AuthorOutput{Fingerprint: fp, Items: []record.Record{}}
	for _, r := range snap.Records {
		if r.Fingerprint != fp {
			continue
		}
		if out.Author == nil && r.Author != nil {
			a := *r.Author
			out.Author = &a
		}
		out.Items = append(out.Items, r.Clone())
	}
	if len(out.Items) == 0 {
		return nil, errors.NewNotFound("author", fp)
	}

	sortNewestFirst(out.Items)
	out.Total = len(out.Items)
	return out, nil
}

// AuthorSummary aggregates the records of one key.
type AuthorSummary struct {
	Fingerprint string                `json:"fingerprint"`
	Count       int                   `json:"count"`
	Author      *record.AuthorProfile `json:"author"`
	LastSeen    string                `json:"last_seen"`
}

// AuthorsOutput contains the result of the Authors operation.
type AuthorsOutput struct {
	Total int             `json:"total"`
	Items []AuthorSummary `json:"items"`
}

// Authors groups records by fingerprint, most prolific first. Author is the
// most recently inserted profile; LastSeen is the latest receivedAt.
func Authors(ctx context.Context, s store.Store) (*AuthorsOutput, error) {
	snap, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	items := make([]AuthorSummary, 0)
	latest := make([]time.Time, 0)
	for _, r := range snap.Records {
		if r.Fingerprint == "" {
			continue
		}
		i, ok := index[r.Fingerprint]
		if !ok {
			i = len(items)
			index[r.Fingerprint] = i
			items = append(items, AuthorSummary{Fingerprint: r.Fingerprint, LastSeen: r.ReceivedAt})
			latest = append(latest, r.ReceivedTime())
		}
		sum := &items[i]
		sum.Count++
		if r.Author != nil {
			a := *r.Author
			sum.Author = &a
		}
		if t := r.ReceivedTime(); t.After(latest[i]) {
			latest[i] = t
			sum.LastSeen = r.ReceivedAt
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Count > items[j].Count
	})

	return &AuthorsOutput{Total: len(items), Items: items}, nil
}
