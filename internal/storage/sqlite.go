package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jwebster45206/scene-engine/pkg/scene"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)

type storyRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	RulesJSON   string `db:"rules_json"`
}

type characterRow struct {
	ID                string `db:"id"`
	StoryID           string `db:"story_id"`
	Name              string `db:"name"`
	Role              string `db:"role"`
	Description       string `db:"description"`
	TraitsJSON        string `db:"traits_json"`
	Backstory         string `db:"backstory"`
	GoalsJSON         string `db:"goals_json"`
	RelationshipsJSON string `db:"relationships_json"`
	ImageURL          string `db:"image_url"`
}

type locationRow struct {
	ID          string `db:"id"`
	StoryID     string `db:"story_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	RulesJSON   string `db:"rules_json"`
	ImageURL    string `db:"image_url"`
}

type sceneRow struct {
	ID          string `db:"id"`
	StoryID     string `db:"story_id"`
	LocationID  string `db:"location_id"`
	Description string `db:"description"`
	Summary     string `db:"summary"`
	Status      string `db:"status"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		conn.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{conn: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		rules_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS characters (
		id TEXT PRIMARY KEY,
		story_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		description TEXT NOT NULL,
		traits_json TEXT NOT NULL,
		backstory TEXT NOT NULL,
		goals_json TEXT NOT NULL,
		relationships_json TEXT NOT NULL,
		image_url TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		story_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		rules_json TEXT NOT NULL,
		image_url TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scenes (
		id TEXT PRIMARY KEY,
		story_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		description TEXT NOT NULL,
		summary TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scene_characters (
		scene_id TEXT NOT NULL,
		character_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (scene_id, character_id)
	);

	CREATE INDEX IF NOT EXISTS idx_characters_story ON characters(story_id);
	CREATE INDEX IF NOT EXISTS idx_locations_story ON locations(story_id);
	CREATE INDEX IF NOT EXISTS idx_scenes_story ON scenes(story_id, created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func marshalList(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func unmarshalList(data string, v interface{}) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

func (r characterRow) toCharacter() (*scene.Character, error) {
	c := &scene.Character{
		Name:        r.Name,
		Role:        scene.Role(r.Role),
		Description: r.Description,
		Backstory:   r.Backstory,
		ImageURL:    r.ImageURL,
	}
	var err error
	if c.ID, err = uuid.Parse(r.ID); err != nil {
		return nil, fmt.Errorf("invalid character id: %w", err)
	}
	if c.StoryID, err = uuid.Parse(r.StoryID); err != nil {
		return nil, fmt.Errorf("invalid character story id: %w", err)
	}
	if err := unmarshalList(r.TraitsJSON, &c.PersonalityTraits); err != nil {
		return nil, fmt.Errorf("decode traits: %w", err)
	}
	if err := unmarshalList(r.GoalsJSON, &c.Goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	if err := unmarshalList(r.RelationshipsJSON, &c.Relationships); err != nil {
		return nil, fmt.Errorf("decode relationships: %w", err)
	}
	return c, nil
}

func (r locationRow) toLocation() (*scene.Location, error) {
	l := &scene.Location{
		Name:        r.Name,
		Description: r.Description,
		ImageURL:    r.ImageURL,
	}
	var err error
	if l.ID, err = uuid.Parse(r.ID); err != nil {
		return nil, fmt.Errorf("invalid location id: %w", err)
	}
	if l.StoryID, err = uuid.Parse(r.StoryID); err != nil {
		return nil, fmt.Errorf("invalid location story id: %w", err)
	}
	if err := unmarshalList(r.RulesJSON, &l.Rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return l, nil
}

// Entity reads

func (s *SQLiteStore) FindCharacter(ctx context.Context, id uuid.UUID) (*scene.Character, error) {
	var row characterRow
	err := s.conn.GetContext(ctx, &row, "SELECT * FROM characters WHERE id = ?", id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("failed to load character", err)
	}
	return row.toCharacter()
}

func (s *SQLiteStore) FindLocation(ctx context.Context, id uuid.UUID) (*scene.Location, error) {
	var row locationRow
	err := s.conn.GetContext(ctx, &row, "SELECT * FROM locations WHERE id = ?", id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("failed to load location", err)
	}
	return row.toLocation()
}

// Entity writes

func (s *SQLiteStore) PersistCharacter(ctx context.Context, c *scene.Character) (*scene.Character, error) {
	if c == nil || c.ID == uuid.Nil {
		return nil, errors.New("character with an id is required")
	}
	res, err := s.conn.ExecContext(ctx, `INSERT INTO characters
		(id, story_id, name, role, description, traits_json, backstory, goals_json, relationships_json, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		c.ID.String(), c.StoryID.String(), c.Name, string(c.Role), c.Description,
		marshalList(c.PersonalityTraits), c.Backstory, marshalList(c.Goals),
		marshalList(c.Relationships), c.ImageURL,
	)
	if err != nil {
		s.logger.Error("Failed to persist character", "uuid", c.ID, "error", err)
		return nil, storeError("failed to persist character", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("Character already persisted", "uuid", c.ID)
		return s.FindCharacter(ctx, c.ID)
	}
	out := *c
	return &out, nil
}

func (s *SQLiteStore) PersistLocation(ctx context.Context, l *scene.Location) (*scene.Location, error) {
	if l == nil || l.ID == uuid.Nil {
		return nil, errors.New("location with an id is required")
	}
	res, err := s.conn.ExecContext(ctx, `INSERT INTO locations
		(id, story_id, name, description, rules_json, image_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		l.ID.String(), l.StoryID.String(), l.Name, l.Description, marshalList(l.Rules), l.ImageURL,
	)
	if err != nil {
		s.logger.Error("Failed to persist location", "uuid", l.ID, "error", err)
		return nil, storeError("failed to persist location", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("Location already persisted", "uuid", l.ID)
		return s.FindLocation(ctx, l.ID)
	}
	out := *l
	return &out, nil
}

// Scene operations

func (s *SQLiteStore) PersistScene(ctx context.Context, sc *scene.Scene, characterIDs []uuid.UUID) error {
	if sc == nil || sc.ID == uuid.Nil {
		return errors.New("scene with an id is required")
	}
	status := sc.Status
	if status == "" {
		status = scene.StatusNotStarted
	}
	created := sc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return storeError("failed to begin scene transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO scenes
		(id, story_id, location_id, description, summary, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sc.ID.String(), sc.StoryID.String(), sc.LocationID.String(), sc.Description, sc.Summary,
		string(status), created.UnixNano(), created.UnixNano(),
	)
	if err != nil {
		return storeError("failed to persist scene", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("Scene already persisted", "uuid", sc.ID)
		return nil
	}

	for i, id := range characterIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO scene_characters (scene_id, character_id, position) VALUES (?, ?, ?)",
			sc.ID.String(), id.String(), i,
		); err != nil {
			return storeError("failed to persist scene characters", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("failed to commit scene", err)
	}
	return nil
}

// updateScene runs fn against the current row inside a transaction.
func (s *SQLiteStore) updateScene(ctx context.Context, id uuid.UUID, fn func(tx *sqlx.Tx, row *sceneRow) error) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return storeError("failed to begin scene transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row sceneRow
	if err := tx.GetContext(ctx, &row, "SELECT * FROM scenes WHERE id = ?", id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scene.Errorf(scene.KindSceneNotFound, "scene %s not found", id)
		}
		return storeError("failed to load scene", err)
	}
	if err := fn(tx, &row); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeError("failed to commit scene", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSceneStatus(ctx context.Context, id uuid.UUID, status scene.Status) error {
	return s.updateScene(ctx, id, func(tx *sqlx.Tx, row *sceneRow) error {
		current := scene.Status(row.Status)
		if !current.CanTransition(status) {
			return scene.Errorf(scene.KindInvalidTransition, "scene %s cannot move from %s to %s", id, current, status)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE scenes SET status = ?, updated_at = ? WHERE id = ?",
			string(status), time.Now().UnixNano(), id.String()); err != nil {
			return storeError("failed to update scene status", err)
		}
		return nil
	})
}

func (s *SQLiteStore) CompleteScene(ctx context.Context, id uuid.UUID, summary string) error {
	return s.updateScene(ctx, id, func(tx *sqlx.Tx, row *sceneRow) error {
		current := scene.Status(row.Status)
		if !current.CanTransition(scene.StatusCompleted) {
			return scene.Errorf(scene.KindInvalidTransition, "scene %s cannot move from %s to %s", id, current, scene.StatusCompleted)
		}
		if summary == "" {
			summary = row.Summary
		}
		if _, err := tx.ExecContext(ctx, "UPDATE scenes SET status = ?, summary = ?, updated_at = ? WHERE id = ?",
			string(scene.StatusCompleted), summary, time.Now().UnixNano(), id.String()); err != nil {
			return storeError("failed to complete scene", err)
		}
		return nil
	})
}

func (s *SQLiteStore) loadScene(ctx context.Context, row sceneRow) (*scene.Scene, error) {
	out := &scene.Scene{
		Description: row.Description,
		Summary:     row.Summary,
		Status:      scene.Status(row.Status),
		CreatedAt:   time.Unix(0, row.CreatedAt),
		UpdatedAt:   time.Unix(0, row.UpdatedAt),
	}
	var err error
	if out.ID, err = uuid.Parse(row.ID); err != nil {
		return nil, fmt.Errorf("invalid scene id: %w", err)
	}
	if out.StoryID, err = uuid.Parse(row.StoryID); err != nil {
		return nil, fmt.Errorf("invalid scene story id: %w", err)
	}
	if out.LocationID, err = uuid.Parse(row.LocationID); err != nil {
		return nil, fmt.Errorf("invalid scene location id: %w", err)
	}

	var ids []string
	if err := s.conn.SelectContext(ctx, &ids,
		"SELECT character_id FROM scene_characters WHERE scene_id = ? ORDER BY position", row.ID); err != nil {
		return nil, storeError("failed to load scene characters", err)
	}
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid scene character id: %w", err)
		}
		out.CharacterIDs = append(out.CharacterIDs, id)
	}
	return out, nil
}

func (s *SQLiteStore) GetScene(ctx context.Context, id uuid.UUID) (*scene.Scene, error) {
	var row sceneRow
	err := s.conn.GetContext(ctx, &row, "SELECT * FROM scenes WHERE id = ?", id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("failed to load scene", err)
	}
	return s.loadScene(ctx, row)
}

func (s *SQLiteStore) LatestScene(ctx context.Context, storyID uuid.UUID) (*scene.Scene, error) {
	var row sceneRow
	err := s.conn.GetContext(ctx, &row,
		"SELECT * FROM scenes WHERE story_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1", storyID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("failed to load latest scene", err)
	}
	return s.loadScene(ctx, row)
}

// Story operations

func (s *SQLiteStore) SaveStory(ctx context.Context, st *scene.Story) error {
	_, err := s.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO stories (id, title, description, rules_json) VALUES (?, ?, ?, ?)",
		st.ID.String(), st.Title, st.Description, marshalList(st.Rules),
	)
	if err != nil {
		return storeError("failed to save story", err)
	}
	return nil
}

func (s *SQLiteStore) GetStory(ctx context.Context, id uuid.UUID) (*scene.Story, error) {
	var row storyRow
	err := s.conn.GetContext(ctx, &row, "SELECT * FROM stories WHERE id = ?", id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("failed to load story", err)
	}
	out := &scene.Story{ID: id, Title: row.Title, Description: row.Description}
	if err := unmarshalList(row.RulesJSON, &out.Rules); err != nil {
		return nil, fmt.Errorf("decode story rules: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListCharacters(ctx context.Context, storyID uuid.UUID) ([]scene.Character, error) {
	var rows []characterRow
	if err := s.conn.SelectContext(ctx, &rows,
		"SELECT * FROM characters WHERE story_id = ? ORDER BY name", storyID.String()); err != nil {
		return nil, storeError("failed to list characters", err)
	}
	out := make([]scene.Character, 0, len(rows))
	for _, r := range rows {
		c, err := r.toCharacter()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *SQLiteStore) ListLocations(ctx context.Context, storyID uuid.UUID) ([]scene.Location, error) {
	var rows []locationRow
	if err := s.conn.SelectContext(ctx, &rows,
		"SELECT * FROM locations WHERE story_id = ? ORDER BY name", storyID.String()); err != nil {
		return nil, storeError("failed to list locations", err)
	}
	out := make([]scene.Location, 0, len(rows))
	for _, r := range rows {
		l, err := r.toLocation()
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, nil
}
