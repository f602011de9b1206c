package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/pkg/scene"
	"github.com/redis/go-redis/v9"
)

const statusUpdateRetries = 3

// persistEntityScript inserts an entity only if its key is free and indexes it
// under its story. When the key is taken the stored JSON is returned instead.
var persistEntityScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing then
	return existing
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
return false
`)

// persistSceneScript writes a scene, its character set and the story index
// together. Returns 0 when the scene already exists.
var persistSceneScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
for i = 4, #ARGV do
	redis.call('SADD', KEYS[2], ARGV[i])
end
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[3])
return 1
`)

// RedisStore implements Store with JSON documents under "kind:uuid" keys and
// per-story index sets.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStore implements Store interface
var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis instance at redisURL
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisStore{
		client: redis.NewClient(opt),
		logger: logger,
	}, nil
}

// keyPrefix namespaces every entity key on a shared Redis
const keyPrefix = "scene-engine:"

func characterKey(id uuid.UUID) string   { return keyPrefix + "character:" + id.String() }
func locationKey(id uuid.UUID) string    { return keyPrefix + "location:" + id.String() }
func sceneKey(id uuid.UUID) string       { return keyPrefix + "scene:" + id.String() }
func storyKey(id uuid.UUID) string       { return keyPrefix + "story:" + id.String() }
func sceneCastKey(id uuid.UUID) string   { return sceneKey(id) + ":characters" }
func storyCastKey(id uuid.UUID) string   { return storyKey(id) + ":characters" }
func storyPlacesKey(id uuid.UUID) string { return storyKey(id) + ":locations" }
func storyScenesKey(id uuid.UUID) string { return storyKey(id) + ":scenes" }

// storeError classifies a backend failure.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return scene.Wrap(scene.KindCancelled, op, err)
	}
	return scene.Wrap(scene.KindStoreUnavailable, op, err)
}

// Health and lifecycle methods

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// getJSON loads key into v. Reports false when the key is absent.
func (r *RedisStore) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, storeError("failed to load "+key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Entity reads

func (r *RedisStore) FindCharacter(ctx context.Context, id uuid.UUID) (*scene.Character, error) {
	var c scene.Character
	found, err := r.getJSON(ctx, characterKey(id), &c)
	if err != nil || !found {
		return nil, err
	}
	return &c, nil
}

func (r *RedisStore) FindLocation(ctx context.Context, id uuid.UUID) (*scene.Location, error) {
	var l scene.Location
	found, err := r.getJSON(ctx, locationKey(id), &l)
	if err != nil || !found {
		return nil, err
	}
	return &l, nil
}

// Entity writes

func (r *RedisStore) persistEntity(ctx context.Context, key, indexKey string, id uuid.UUID, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	existing, err := persistEntityScript.Run(ctx, r.client, []string{key, indexKey}, string(data), id.String()).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to persist entity", "key", key, "error", err)
		return nil, storeError("failed to persist "+key, err)
	}
	return []byte(existing), nil
}

func (r *RedisStore) PersistCharacter(ctx context.Context, c *scene.Character) (*scene.Character, error) {
	if c == nil || c.ID == uuid.Nil {
		return nil, errors.New("character with an id is required")
	}
	existing, err := r.persistEntity(ctx, characterKey(c.ID), storyCastKey(c.StoryID), c.ID, c)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		out := *c
		return &out, nil
	}

	var stored scene.Character
	if err := json.Unmarshal(existing, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing character: %w", err)
	}
	r.logger.Debug("Character already persisted", "uuid", c.ID)
	return &stored, nil
}

func (r *RedisStore) PersistLocation(ctx context.Context, l *scene.Location) (*scene.Location, error) {
	if l == nil || l.ID == uuid.Nil {
		return nil, errors.New("location with an id is required")
	}
	existing, err := r.persistEntity(ctx, locationKey(l.ID), storyPlacesKey(l.StoryID), l.ID, l)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		out := *l
		return &out, nil
	}

	var stored scene.Location
	if err := json.Unmarshal(existing, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing location: %w", err)
	}
	r.logger.Debug("Location already persisted", "uuid", l.ID)
	return &stored, nil
}

// Scene operations

func (r *RedisStore) PersistScene(ctx context.Context, s *scene.Scene, characterIDs []uuid.UUID) error {
	if s == nil || s.ID == uuid.Nil {
		return errors.New("scene with an id is required")
	}

	row := *s
	row.CharacterIDs = append([]uuid.UUID(nil), characterIDs...)
	if row.Status == "" {
		row.Status = scene.StatusNotStarted
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	row.UpdatedAt = row.CreatedAt

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal scene: %w", err)
	}

	args := []interface{}{string(data), row.CreatedAt.UnixMilli(), row.ID.String()}
	for _, id := range characterIDs {
		args = append(args, id.String())
	}
	keys := []string{sceneKey(row.ID), sceneCastKey(row.ID), storyScenesKey(row.StoryID)}

	created, err := persistSceneScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		r.logger.Error("Failed to persist scene", "uuid", row.ID, "error", err)
		return storeError("failed to persist scene", err)
	}
	if created == 0 {
		r.logger.Debug("Scene already persisted", "uuid", row.ID)
	}
	return nil
}

// updateScene applies fn to the stored scene inside an optimistic transaction.
func (r *RedisStore) updateScene(ctx context.Context, id uuid.UUID, fn func(*scene.Scene) error) error {
	key := sceneKey(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return scene.Errorf(scene.KindSceneNotFound, "scene %s not found", id)
			}
			return storeError("failed to load scene", err)
		}

		var s scene.Scene
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to unmarshal scene: %w", err)
		}
		if err := fn(&s); err != nil {
			return err
		}
		s.UpdatedAt = time.Now()

		out, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal scene: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < statusUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var se *scene.Error
		if err != nil && !errors.As(err, &se) {
			return storeError("failed to update scene", err)
		}
		return err
	}
	return scene.Errorf(scene.KindStoreUnavailable, "scene %s update kept conflicting", id)
}

func (r *RedisStore) UpdateSceneStatus(ctx context.Context, id uuid.UUID, status scene.Status) error {
	return r.updateScene(ctx, id, func(s *scene.Scene) error {
		if !s.Status.CanTransition(status) {
			return scene.Errorf(scene.KindInvalidTransition, "scene %s cannot move from %s to %s", id, s.Status, status)
		}
		s.Status = status
		return nil
	})
}

func (r *RedisStore) CompleteScene(ctx context.Context, id uuid.UUID, summary string) error {
	return r.updateScene(ctx, id, func(s *scene.Scene) error {
		if !s.Status.CanTransition(scene.StatusCompleted) {
			return scene.Errorf(scene.KindInvalidTransition, "scene %s cannot move from %s to %s", id, s.Status, scene.StatusCompleted)
		}
		s.Status = scene.StatusCompleted
		if summary != "" {
			s.Summary = summary
		}
		return nil
	})
}

func (r *RedisStore) GetScene(ctx context.Context, id uuid.UUID) (*scene.Scene, error) {
	var s scene.Scene
	found, err := r.getJSON(ctx, sceneKey(id), &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) LatestScene(ctx context.Context, storyID uuid.UUID) (*scene.Scene, error) {
	ids, err := r.client.ZRevRange(ctx, storyScenesKey(storyID), 0, 0).Result()
	if err != nil {
		return nil, storeError("failed to read story scenes", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	id, err := uuid.Parse(ids[0])
	if err != nil {
		return nil, fmt.Errorf("invalid scene id in story index: %w", err)
	}
	return r.GetScene(ctx, id)
}

// Story operations

func (r *RedisStore) SaveStory(ctx context.Context, s *scene.Story) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal story: %w", err)
	}
	if err := r.client.Set(ctx, storyKey(s.ID), data, 0).Err(); err != nil {
		r.logger.Error("Failed to save story", "uuid", s.ID, "error", err)
		return storeError("failed to save story", err)
	}
	return nil
}

func (r *RedisStore) GetStory(ctx context.Context, id uuid.UUID) (*scene.Story, error) {
	var s scene.Story
	found, err := r.getJSON(ctx, storyKey(id), &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// loadIndexed reads every document named by an index set.
func (r *RedisStore) loadIndexed(ctx context.Context, indexKey string, keyOf func(uuid.UUID) string) ([]string, error) {
	members, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, storeError("failed to read "+indexKey, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			r.logger.Warn("Skipping invalid id in index", "index", indexKey, "member", m)
			continue
		}
		keys = append(keys, keyOf(id))
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeError("failed to load "+indexKey, err)
	}
	docs := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			docs = append(docs, s)
		}
	}
	return docs, nil
}

func (r *RedisStore) ListCharacters(ctx context.Context, storyID uuid.UUID) ([]scene.Character, error) {
	docs, err := r.loadIndexed(ctx, storyCastKey(storyID), characterKey)
	if err != nil {
		return nil, err
	}
	out := make([]scene.Character, 0, len(docs))
	for _, d := range docs {
		var c scene.Character
		if err := json.Unmarshal([]byte(d), &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal character: %w", err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *RedisStore) ListLocations(ctx context.Context, storyID uuid.UUID) ([]scene.Location, error) {
	docs, err := r.loadIndexed(ctx, storyPlacesKey(storyID), locationKey)
	if err != nil {
		return nil, err
	}
	out := make([]scene.Location, 0, len(docs))
	for _, d := range docs {
		var l scene.Location
		if err := json.Unmarshal([]byte(d), &l); err != nil {
			return nil, fmt.Errorf("failed to unmarshal location: %w", err)
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
