package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// SignatureDao maps one stored item to the decryption_signatures table.
type SignatureDao struct {
	bun.BaseModel `bun:"table:decryption_signatures,alias:ds"`
	Key           string    `bun:"key,pk,type:varchar(128)"`
	Value         string    `bun:"value,notnull,type:text"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Postgres is a Store backed by a bun database.
type Postgres struct {
	db  bun.IDB
	now func() time.Time
}

// NewPostgres returns a store over db. The table is created by the
// sigstore migration set.
func NewPostgres(db bun.IDB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

func (s *Postgres) GetItem(ctx context.Context, key string) (string, bool, error) {
	dao := new(SignatureDao)
	err := s.db.NewSelect().
		Model(dao).
		Column("value").
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get item: %w", err)
	}
	return dao.Value, true, nil
}

func (s *Postgres) SetItem(ctx context.Context, key, value string) error {
	dao := &SignatureDao{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveItem(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*SignatureDao)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}
