// Package credentials persists the current identity and token pair across
// client restarts.
//
// Two logical entries are stored as UTF-8 JSON: the token pair under
// common.StorageKeyTokens and the identity under common.StorageKeyUser.
// A corrupted store — unparseable content, or one entry present without the
// other — is silently reset and reported as "no session" so that a damaged
// database can never crash startup.
package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/migrations"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/common"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/dbx"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// TokenSlot is the injected-auth-header slot on the gateway client. The
// store clears it whenever it wipes persisted credentials so a stale bearer
// token cannot outlive its storage entry.
type TokenSlot interface {
	SetAccessToken(token string)
	ClearAccessToken()
}

// Open opens the client's local SQLite database and applies the embedded
// goose migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Store is the durable credential store. It serializes the identity and
// token pair as a unit and recovers silently from corruption.
type Store struct {
	db   *sql.DB
	slot TokenSlot
}

// NewStore binds a Store to the given database and auth-header slot.
// slot may be nil when no gateway client is attached (tests).
func NewStore(db *sql.DB, slot TokenSlot) *Store {
	return &Store{db: db, slot: slot}
}

// Save persists identity and tokens as two entries in one transaction.
func (s *Store) Save(ctx context.Context, identity *api.Identity, tokens *api.TokenPair) error {
	rawUser, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	rawTokens, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		if err := repo.Set(ctx, common.StorageKeyUser, rawUser); err != nil {
			return err
		}
		return repo.Set(ctx, common.StorageKeyTokens, rawTokens)
	})
}

// Load reads both entries. It returns (nil, nil, nil) — "no session" —
// when both are absent, and the same after resetting the store when either
// entry is missing or not parseable as the expected JSON shape. Load only
// returns an error for storage-level failures.
func (s *Store) Load(ctx context.Context) (*api.Identity, *api.TokenPair, error) {
	repo := NewSQLiteRepository(s.db)

	rawUser, err := repo.Get(ctx, common.StorageKeyUser)
	if err != nil {
		return nil, nil, err
	}
	rawTokens, err := repo.Get(ctx, common.StorageKeyTokens)
	if err != nil {
		return nil, nil, err
	}

	if rawUser == nil && rawTokens == nil {
		return nil, nil, nil
	}
	// one entry without the other means the pair invariant is broken
	if rawUser == nil || rawTokens == nil {
		return nil, nil, s.reset(ctx)
	}

	var identity api.Identity
	if err := json.Unmarshal(rawUser, &identity); err != nil {
		return nil, nil, s.reset(ctx)
	}
	var tokens api.TokenPair
	if err := json.Unmarshal(rawTokens, &tokens); err != nil {
		return nil, nil, s.reset(ctx)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, nil, s.reset(ctx)
	}

	return &identity, &tokens, nil
}

// Clear unconditionally removes both entries and empties the auth-header
// slot.
func (s *Store) Clear(ctx context.Context) error {
	return s.reset(ctx)
}

func (s *Store) reset(ctx context.Context) error {
	if s.slot != nil {
		s.slot.ClearAccessToken()
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		if err := repo.Delete(ctx, common.StorageKeyUser); err != nil {
			return err
		}
		return repo.Delete(ctx, common.StorageKeyTokens)
	})
}
