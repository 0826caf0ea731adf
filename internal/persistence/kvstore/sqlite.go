// Package kvstore persists tracker state as string values in a single sqlite
// table. Values that carry structure are stored as JSON.
package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Keys of the persisted state.
const (
	KeyMechanics  = "celeste-mechanics"
	KeyChecked    = "celeste-location-checked"
	KeyLogic      = "celeste-location-logic"
	KeyURL        = "archipelago-url"
	KeySlotName   = "archipelago-slot-name"
	KeyPassword   = "archipelago-password"
	KeyClientUUID = "ap-client-uuid"
)

const (
	DefaultURL  = "ws://localhost:38281"
	DefaultSlot = "Player1"
)

var ErrClosed = errors.New("kvstore closed")

type Store struct {
	db *sql.DB

	mu     sync.Mutex
	once   sync.Once
	closed bool
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.db.Close()
	})
	return err
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Get returns the stored value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, ErrClosed
	}
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany writes all pairs in one transaction.
func (s *Store) SetMany(ctx context.Context, kv map[string]string) error {
	if s.isClosed() {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for k, v := range kv {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO kv(key, value, updated_at) VALUES(?, ?, ?)`, k, v, now); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// GetJSON decodes the value at key into v. A missing key leaves v untouched
// and reports false.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}

// Settings are the connection fields the user edits.
type Settings struct {
	URL        string
	SlotName   string
	Password   string
	ClientUUID string
}

// LoadSettings reads the connection settings, filling defaults for missing
// keys. A client UUID is generated and stored the first time.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	out := Settings{URL: DefaultURL, SlotName: DefaultSlot}
	for key, dst := range map[string]*string{
		KeyURL:      &out.URL,
		KeySlotName: &out.SlotName,
		KeyPassword: &out.Password,
	} {
		v, ok, err := s.Get(ctx, key)
		if err != nil {
			return Settings{}, err
		}
		if ok {
			*dst = v
		}
	}
	id, err := s.ClientUUID(ctx)
	if err != nil {
		return Settings{}, err
	}
	out.ClientUUID = id
	return out, nil
}

func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	return s.SetMany(ctx, map[string]string{
		KeyURL:      st.URL,
		KeySlotName: st.SlotName,
		KeyPassword: st.Password,
	})
}

// ClientUUID returns the stored client identifier, creating it once.
func (s *Store) ClientUUID(ctx context.Context) (string, error) {
	v, ok, err := s.Get(ctx, KeyClientUUID)
	if err != nil {
		return "", err
	}
	if ok && v != "" {
		return v, nil
	}
	id := uuid.NewString()
	if err := s.Set(ctx, KeyClientUUID, id); err != nil {
		return "", err
	}
	return id, nil
}
