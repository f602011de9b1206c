package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// MockStore is an in-memory Store for testing
type MockStore struct {
	mu         sync.RWMutex
	stories    map[uuid.UUID]*scene.Story
	characters map[uuid.UUID]*scene.Character
	locations  map[uuid.UUID]*scene.Location
	scenes     map[uuid.UUID]*scene.Scene

	pingError         error
	findError         error
	persistError      error
	persistSceneError error
	statusErrors      map[scene.Status]error

	// Track writes for testing
	PersistCharacterCalls int
	PersistLocationCalls  int
	PersistSceneCalls     int
	StatusUpdates         []scene.Status
}

// Ensure MockStore implements Store interface
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		stories:      make(map[uuid.UUID]*scene.Story),
		characters:   make(map[uuid.UUID]*scene.Character),
		locations:    make(map[uuid.UUID]*scene.Location),
		scenes:       make(map[uuid.UUID]*scene.Scene),
		statusErrors: make(map[scene.Status]error),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetFindError makes FindCharacter and FindLocation fail
func (m *MockStore) SetFindError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findError = err
}

// SetPersistError makes PersistCharacter and PersistLocation fail
func (m *MockStore) SetPersistError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistError = err
}

// SetPersistSceneError makes PersistScene fail
func (m *MockStore) SetPersistSceneError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistSceneError = err
}

// SetStatusError makes UpdateSceneStatus fail when moving to status
func (m *MockStore) SetStatusError(status scene.Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusErrors[status] = err
}

func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStore) Close() error {
	return nil
}

func cloneCharacter(c *scene.Character) *scene.Character {
	out := *c
	out.PersonalityTraits = append([]string(nil), c.PersonalityTraits...)
	out.Goals = append([]string(nil), c.Goals...)
	out.Relationships = append([]scene.Relationship(nil), c.Relationships...)
	return &out
}

func cloneLocation(l *scene.Location) *scene.Location {
	out := *l
	out.Rules = append([]string(nil), l.Rules...)
	return &out
}

func cloneScene(s *scene.Scene) *scene.Scene {
	out := *s
	out.CharacterIDs = append([]uuid.UUID(nil), s.CharacterIDs...)
	return &out
}

func (m *MockStore) FindCharacter(ctx context.Context, id uuid.UUID) (*scene.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.findError != nil {
		return nil, m.findError
	}
	c, ok := m.characters[id]
	if !ok {
		return nil, nil
	}
	return cloneCharacter(c), nil
}

func (m *MockStore) FindLocation(ctx context.Context, id uuid.UUID) (*scene.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.findError != nil {
		return nil, m.findError
	}
	l, ok := m.locations[id]
	if !ok {
		return nil, nil
	}
	return cloneLocation(l), nil
}

func (m *MockStore) PersistCharacter(ctx context.Context, c *scene.Character) (*scene.Character, error) {
	if c == nil || c.ID == uuid.Nil {
		return nil, errors.New("character with an id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistCharacterCalls++
	if m.persistError != nil {
		return nil, m.persistError
	}
	if existing, ok := m.characters[c.ID]; ok {
		return cloneCharacter(existing), nil
	}
	m.characters[c.ID] = cloneCharacter(c)
	return cloneCharacter(c), nil
}

func (m *MockStore) PersistLocation(ctx context.Context, l *scene.Location) (*scene.Location, error) {
	if l == nil || l.ID == uuid.Nil {
		return nil, errors.New("location with an id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistLocationCalls++
	if m.persistError != nil {
		return nil, m.persistError
	}
	if existing, ok := m.locations[l.ID]; ok {
		return cloneLocation(existing), nil
	}
	m.locations[l.ID] = cloneLocation(l)
	return cloneLocation(l), nil
}

func (m *MockStore) PersistScene(ctx context.Context, s *scene.Scene, characterIDs []uuid.UUID) error {
	if s == nil || s.ID == uuid.Nil {
		return errors.New("scene with an id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistSceneCalls++
	if m.persistSceneError != nil {
		return m.persistSceneError
	}
	if _, ok := m.scenes[s.ID]; ok {
		return nil
	}
	row := cloneScene(s)
	row.CharacterIDs = append([]uuid.UUID(nil), characterIDs...)
	if row.Status == "" {
		row.Status = scene.StatusNotStarted
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	row.UpdatedAt = row.CreatedAt
	m.scenes[s.ID] = row
	return nil
}

func (m *MockStore) UpdateSceneStatus(ctx context.Context, id uuid.UUID, status scene.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.statusErrors[status]; err != nil {
		return err
	}
	s, ok := m.scenes[id]
	if !ok {
		return scene.Errorf(scene.KindSceneNotFound, "scene %s not found", id)
	}
	if !s.Status.CanTransition(status) {
		return scene.Errorf(scene.KindInvalidTransition, "scene %s cannot move from %s to %s", id, s.Status, status)
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	m.StatusUpdates = append(m.StatusUpdates, status)
	return nil
}

func (m *MockStore) CompleteScene(ctx context.Context, id uuid.UUID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.statusErrors[scene.StatusCompleted]; err != nil {
		return err
	}
	s, ok := m.scenes[id]
	if !ok {
		return scene.Errorf(scene.KindSceneNotFound, "scene %s not found", id)
	}
	if !s.Status.CanTransition(scene.StatusCompleted) {
		return scene.Errorf(scene.KindInvalidTransition, "scene %s cannot move from %s to %s", id, s.Status, scene.StatusCompleted)
	}
	s.Status = scene.StatusCompleted
	if summary != "" {
		s.Summary = summary
	}
	s.UpdatedAt = time.Now()
	m.StatusUpdates = append(m.StatusUpdates, scene.StatusCompleted)
	return nil
}

func (m *MockStore) GetScene(ctx context.Context, id uuid.UUID) (*scene.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenes[id]
	if !ok {
		return nil, nil
	}
	return cloneScene(s), nil
}

func (m *MockStore) LatestScene(ctx context.Context, storyID uuid.UUID) (*scene.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *scene.Scene
	for _, s := range m.scenes {
		if s.StoryID != storyID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneScene(latest), nil
}

func (m *MockStore) SaveStory(ctx context.Context, s *scene.Story) error {
	if s == nil {
		return errors.New("story cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *s
	out.Rules = append([]string(nil), s.Rules...)
	m.stories[s.ID] = &out
	return nil
}

func (m *MockStore) GetStory(ctx context.Context, id uuid.UUID) (*scene.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stories[id]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (m *MockStore) ListCharacters(ctx context.Context, storyID uuid.UUID) ([]scene.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []scene.Character
	for _, c := range m.characters {
		if c.StoryID == storyID {
			out = append(out, *cloneCharacter(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockStore) ListLocations(ctx context.Context, storyID uuid.UUID) ([]scene.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []scene.Location
	for _, l := range m.locations {
		if l.StoryID == storyID {
			out = append(out, *cloneLocation(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SceneCount returns the number of persisted scenes
func (m *MockStore) SceneCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scenes)
}

// CharacterCount returns the number of persisted characters
func (m *MockStore) CharacterCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.characters)
}

// LocationCount returns the number of persisted locations
func (m *MockStore) LocationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.locations)
}
