package dummydb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/teachhub/backend/core/assistant"
)

// Archive keeps assistant generations in memory.
type Archive struct {
	mu   sync.RWMutex
	gens map[string]assistant.Generation
}

var _ assistant.Archive = (*Archive)(nil)

func NewArchive() *Archive {
	return &Archive{gens: make(map[string]assistant.Generation)}
}

func (a *Archive) Save(_ context.Context, g assistant.Generation) (assistant.Generation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	g.ID = uuid.New().String()
	a.gens[g.ID] = g
	return g, nil
}

func (a *Archive) Get(_ context.Context, id string) (assistant.Generation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if g, ok := a.gens[id]; ok {
		return g, nil
	}
	return assistant.Generation{}, assistant.ErrGenerationNotFound
}

func (a *Archive) History(_ context.Context, userID, flow string, limit int) ([]assistant.Generation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	gens := make([]assistant.Generation, 0)
	for _, g := range a.gens {
		if g.UserID == userID && (flow == "" || g.Flow == flow) {
			gens = append(gens, g)
		}
	}
	sort.Slice(gens, func(i, j int) bool {
		if !gens[i].CreatedAt.Equal(gens[j].CreatedAt) {
			return gens[i].CreatedAt.After(gens[j].CreatedAt)
		}
		return gens[i].ID < gens[j].ID
	})
	if limit > 0 && len(gens) > limit {
		gens = gens[:limit]
	}
	return gens, nil
}
