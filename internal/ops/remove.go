package ops

import (
	"context"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/store"
)

// RemoveInput contains parameters for the Remove operation.
type RemoveInput struct {
	ID string
}

// RemoveOutput contains the result of the Remove operation.
type RemoveOutput struct {
	ID      string `json:"id"`
	Removed bool   `json:"removed"`
}

// Remove deletes a record by ID. This is an administrative operation and is
// not exposed over HTTP.
func Remove(ctx context.Context, s store.Store, input RemoveInput) (*RemoveOutput, error) {
	id, err := requireID(input.ID, "id")
	if err != nil {
		return nil, err
	}

	snap, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range snap.Records {
		if snap.Records[i].ID != id {
			continue
		}
		snap.Records = append(snap.Records[:i], snap.Records[i+1:]...)
		if err := s.ReplaceAll(ctx, snap); err != nil {
			return nil, err
		}
		return &RemoveOutput{ID: id, Removed: true}, nil
	}
	return nil, errors.NewNotFound("record", id)
}
