package ops

import (
	"context"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/store"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID string
}

// Fetch retrieves a single record by ID.
func Fetch(ctx context.Context, s store.Store, input FetchInput) (*record.Record, error) {
	id, err := requireID(input.ID, "id")
	if err != nil {
		return nil, err
	}

	snap, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range snap.Records {
		if snap.Records[i].ID == id {
			r := snap.Records[i].Clone()
			return &r, nil
		}
	}
	return nil, errors.NewNotFound("record", id)
}
