// Package labelmap resolves free-text classifier labels to plant profiles,
// tolerating label drift between provider versions.
package labelmap

import (
	"context"

	"plant-monitor-backend/internal/store"
)

// Resolution is the outcome of mapping one label.
type Resolution struct {
	ProfileID *int64
	Matched   bool
}

// Mapper resolves labels against the alias table and profile names.
type Mapper struct {
	store store.Store
}

// NewMapper creates a label mapper backed by the given store.
func NewMapper(s store.Store) *Mapper {
	return &Mapper{store: s}
}

// Resolve maps a classifier label to a plant profile. The alias table wins
// over direct name matching; an alias with a configured minimum confidence
// leaves the detection unlinked when the classifier is not sure enough, so
// low-confidence noise cannot drive threshold changes downstream.
func (m *Mapper) Resolve(ctx context.Context, label string, confidence float64) (Resolution, error) {
	alias, err := m.store.FindAliasByLabel(ctx, label)
	if err != nil {
		return Resolution{}, err
	}
	if alias != nil {
		if alias.MinConfidence > 0 && confidence < alias.MinConfidence {
			return Resolution{}, nil
		}
		id := alias.PlantProfileID
		return Resolution{ProfileID: &id, Matched: true}, nil
	}

	profile, err := m.store.FindProfileByName(ctx, label)
	if err != nil {
		return Resolution{}, err
	}
	if profile != nil {
		id := profile.ID
		return Resolution{ProfileID: &id, Matched: true}, nil
	}

	return Resolution{}, nil
}
