package storage

import (
	"context"
	"errors"

	"dexArb/internal/model"
)

// Storage defines a sink for decision records.
type Storage interface {
	PutDecisions(ctx context.Context, decisions []model.Decision) error
}

// Multi fans a batch out to every sink and joins their errors.
type Multi []Storage

func (m Multi) PutDecisions(ctx context.Context, decisions []model.Decision) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.PutDecisions(ctx, decisions); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every record.
type Nop struct{}

func (Nop) PutDecisions(context.Context, []model.Decision) error { return nil }
