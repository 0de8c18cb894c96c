package story

import (
	"context"
	"fmt"
)

// InMemoryRepository is a test helper that implements Repository.
type InMemoryRepository struct {
	stories map[string]*Structure
}

// NewInMemoryRepository creates a new in-memory story repository for testing.
func NewInMemoryRepository(structures []*Structure) *InMemoryRepository {
	repo := &InMemoryRepository{stories: make(map[string]*Structure)}
	for _, s := range structures {
		repo.stories[s.StoryID] = s
	}
	return repo
}

func (r *InMemoryRepository) Structure(_ context.Context, storyID string) (*Structure, error) {
	if s, ok := r.stories[storyID]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStory, storyID)
}
