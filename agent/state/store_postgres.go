package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN         string        `envconfig:"DSN" split_words:"true"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
	AutoMigrate bool          `envconfig:"AUTO_MIGRATE" split_words:"true" default:"true"`
}

type checkpointRow struct {
	bun.BaseModel `bun:"table:conversation_checkpoints,alias:cc"`

	ConversationID string             `bun:"conversation_id,pk"`
	Status         Status             `bun:"status,notnull"`
	Step           int                `bun:"step,notnull"`
	Version        int                `bun:"version,notnull"`
	State          *ConversationState `bun:"state,type:jsonb,notnull"`
	UpdatedAt      time.Time          `bun:"updated_at,notnull"`
}

// PostgresStore persists checkpoints as jsonb rows keyed by conversation id.
type PostgresStore struct {
	db      *bun.DB
	timeout time.Duration
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	store := NewPostgresStoreWithDB(db, cfg.Timeout)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

func NewPostgresStoreWithDB(db *bun.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NewCreateTable().
		Model((*checkpointRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create checkpoint table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, conversationID string) (*ConversationState, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrInvalidConversation
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := new(checkpointRow)
	err := s.db.NewSelect().
		Model(row).
		Where("conversation_id = ?", conversationID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select checkpoint: %w", err)
	}
	if row.State == nil {
		return nil, fmt.Errorf("%w: empty checkpoint payload", ErrInvalidState)
	}
	if err := row.State.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation state loaded from store: %w", err)
	}
	return row.State, nil
}

func (s *PostgresStore) Save(ctx context.Context, st *ConversationState) error {
	if st == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(st.ConversationID) == "" {
		return ErrInvalidConversation
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := &checkpointRow{
		ConversationID: st.ConversationID,
		Status:         st.Status,
		Step:           st.Step,
		Version:        st.Version,
		State:          st,
		UpdatedAt:      st.UpdatedAt.UTC(),
	}
	// version 1 creates the row; later versions update the row holding the
	// previous version
	var q interface {
		Exec(ctx context.Context, dest ...any) (sql.Result, error)
	}
	switch {
	case st.Version < 1:
		return fmt.Errorf("%w: version=%d", ErrVersionConflict, st.Version)
	case st.Version == 1:
		q = s.db.NewInsert().
			Model(row).
			On("CONFLICT (conversation_id) DO NOTHING")
	default:
		q = s.db.NewUpdate().
			Model(row).
			Column("status", "step", "version", "state", "updated_at").
			WherePK().
			Where("version = ?", st.Version-1)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("save checkpoint row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save checkpoint row: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: conversation=%s version=%d", ErrVersionConflict, st.ConversationID, st.Version)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
