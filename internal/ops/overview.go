package ops

import (
	"context"
	"time"

	"github.com/sisilabsai/thesignal/internal/store"
)

// OverviewOutput summarizes the collection.
type OverviewOutput struct {
	Records      int    `json:"records"`
	Authors      int    `json:"authors"`
	WithProfile  int    `json:"with_profile"`
	LastReceived string `json:"last_received,omitempty"`
}

// Overview counts records and distinct signing keys.
func Overview(ctx context.Context, s store.Store) (*OverviewOutput, error) {
	snap, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	out := &OverviewOutput{Records: len(snap.Records)}
	keys := make(map[string]struct{})
	var latest time.Time
	for _, r := range snap.Records {
		if r.Fingerprint != "" {
			keys[r.Fingerprint] = struct{}{}
		}
		if r.Author != nil {
			out.WithProfile++
		}
		if t := r.ReceivedTime(); t.After(latest) {
			latest = t
			out.LastReceived = r.ReceivedAt
		}
	}
	out.Authors = len(keys)
	return out, nil
}
