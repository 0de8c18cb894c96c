// Package story supplies the externally-defined structure of a story: its
// set of known ending identifiers. The completion evaluator needs this
// because totalEndings is not derivable from the event stream alone.
package story

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownStory is returned when no structure is registered for a story.
var ErrUnknownStory = errors.New("story structure not found")

// Structure describes the branching shape of one published story, as far as
// the analytics engine cares: which terminal nodes exist.
type Structure struct {
	StoryID string   `yaml:"story_id"`
	Title   string   `yaml:"title,omitempty"`
	Endings []string `yaml:"endings"`
}

// TotalEndings returns the count of distinct known ending nodes.
func (s Structure) TotalEndings() int {
	return len(s.Endings)
}

// KnownEnding reports whether endingID is among the story's known endings.
func (s Structure) KnownEnding(endingID string) bool {
	for _, e := range s.Endings {
		if e == endingID {
			return true
		}
	}
	return false
}

// Repository defines the interface for loading story structures.
type Repository interface {
	// Structure returns the structure for storyID, or ErrUnknownStory.
	Structure(ctx context.Context, storyID string) (*Structure, error)
}

// FileSystemRepository loads story structures from *.yaml files in a
// directory. Each file contains exactly one story at the top level.
// Structures are loaded once at startup and cached in memory. Publishing a
// new story means restarting the engine or fronting this with a Catalog
// backed by a hot source.
type FileSystemRepository struct {
	dir     string
	stories map[string]Structure // keyed by StoryID
}

// NewFileSystemRepository creates a new repository and eagerly loads all
// structures from dir. Returns an error if any file is malformed or invalid.
func NewFileSystemRepository(dir string) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		dir:     dir,
		stories: make(map[string]Structure),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no story directory means zero stories configured, valid
	}
	if err != nil {
		return fmt.Errorf("story structure dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("story structure path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading story structure dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading story file %s: %w", path, err)
		}

		var s Structure
		if err := yaml.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("parsing story file %s: %w", path, err)
		}
		if s.StoryID == "" {
			continue // skip empty / comment-only files
		}

		seen := make(map[string]struct{}, len(s.Endings))
		for _, ending := range s.Endings {
			if ending == "" {
				return fmt.Errorf("story %q: ending identifiers must not be empty", s.StoryID)
			}
			if _, dup := seen[ending]; dup {
				return fmt.Errorf("story %q: duplicate ending %q", s.StoryID, ending)
			}
			seen[ending] = struct{}{}
		}

		if _, exists := r.stories[s.StoryID]; exists {
			return fmt.Errorf("story %q: duplicate story ID (check multiple YAML files)", s.StoryID)
		}
		r.stories[s.StoryID] = s
	}
	return nil
}

// Structure returns the structure for storyID, or ErrUnknownStory.
func (r *FileSystemRepository) Structure(_ context.Context, storyID string) (*Structure, error) {
	s, ok := r.stories[storyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStory, storyID)
	}
	return &s, nil
}
