package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/cloudvault/cloudvault-cli/internal/constants"
	"github.com/cloudvault/cloudvault-cli/internal/models"
	"github.com/cloudvault/cloudvault-cli/internal/store/migrations"
)

// SQLiteStore keeps credentials in the metadata table of a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// RunMigrations brings the schema up to date.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	// The file holds a bearer token
	_ = os.Chmod(path, 0600)

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (*Credentials, error) {
	repo := newMetadataRepo(s.db)

	token, err := repo.Get(ctx, constants.MetadataKeyToken)
	if err != nil {
		return nil, err
	}
	if len(token) == 0 {
		return nil, nil
	}

	refresh, err := repo.Get(ctx, constants.MetadataKeyRefreshToken)
	if err != nil {
		return nil, err
	}

	raw, err := repo.Get(ctx, constants.MetadataKeyUser)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrIncomplete
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncomplete, err)
	}

	return &Credentials{
		Token:        string(token),
		RefreshToken: string(refresh),
		User:         &user,
	}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, creds Credentials) error {
	if creds.Token == "" || creds.User == nil {
		return ErrIncomplete
	}

	userJSON, err := json.Marshal(creds.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	return WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		repo := newMetadataRepo(tx)
		if err := repo.Set(ctx, constants.MetadataKeyToken, []byte(creds.Token)); err != nil {
			return err
		}
		if err := repo.Set(ctx, constants.MetadataKeyUser, userJSON); err != nil {
			return err
		}
		if creds.RefreshToken != "" {
			return repo.Set(ctx, constants.MetadataKeyRefreshToken, []byte(creds.RefreshToken))
		}
		return repo.Delete(ctx, constants.MetadataKeyRefreshToken)
	})
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		repo := newMetadataRepo(tx)
		for _, key := range []string{
			constants.MetadataKeyToken,
			constants.MetadataKeyRefreshToken,
			constants.MetadataKeyUser,
		} {
			if err := repo.Delete(ctx, key); err != nil {
				return err
			}
		}
		return nil
	})
}
