package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	// Ping tests the store connection
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities
type Closer interface {
	// Close closes the store connection
	Close() error
}

// Store is the entity store behind scene generation. Transient backend
// failures are reported as scene.ErrStoreUnavailable.
type Store interface {
	HealthChecker
	Closer

	// FindCharacter returns nil, nil if the character doesn't exist
	FindCharacter(ctx context.Context, id uuid.UUID) (*scene.Character, error)

	// FindLocation returns nil, nil if the location doesn't exist
	FindLocation(ctx context.Context, id uuid.UUID) (*scene.Location, error)

	// PersistCharacter inserts the character keyed by its UUID. If a row with
	// that UUID already exists it is returned untouched.
	PersistCharacter(ctx context.Context, c *scene.Character) (*scene.Character, error)

	// PersistLocation inserts the location keyed by its UUID. If a row with
	// that UUID already exists it is returned untouched.
	PersistLocation(ctx context.Context, l *scene.Location) (*scene.Location, error)

	// PersistScene writes the scene row and its character associations in
	// one atomic step. Persisting an existing scene UUID is a no-op.
	PersistScene(ctx context.Context, s *scene.Scene, characterIDs []uuid.UUID) error

	// UpdateSceneStatus moves a scene along the status DAG
	UpdateSceneStatus(ctx context.Context, id uuid.UUID, status scene.Status) error

	// CompleteScene moves an active scene to completed and, when summary is
	// not empty, attaches it in the same write. A rejected transition leaves
	// the scene untouched.
	CompleteScene(ctx context.Context, id uuid.UUID, summary string) error

	// GetScene returns nil, nil if the scene doesn't exist
	GetScene(ctx context.Context, id uuid.UUID) (*scene.Scene, error)

	// LatestScene returns the story's most recently created scene, or nil
	LatestScene(ctx context.Context, storyID uuid.UUID) (*scene.Scene, error)

	// SaveStory creates or replaces a story
	SaveStory(ctx context.Context, s *scene.Story) error

	// GetStory returns nil, nil if the story doesn't exist
	GetStory(ctx context.Context, id uuid.UUID) (*scene.Story, error)

	// ListCharacters returns every character of the story, player included
	ListCharacters(ctx context.Context, storyID uuid.UUID) ([]scene.Character, error)

	// ListLocations returns every location of the story
	ListLocations(ctx context.Context, storyID uuid.UUID) ([]scene.Location, error)
}

// Open connects the configured backend: "redis" or "sqlite"
func Open(backend, redisURL, sqlitePath string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "redis":
		s, err := NewRedisStore(redisURL, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := OpenSQLite(sqlitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", backend)
	}
}
