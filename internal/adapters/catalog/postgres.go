package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/oralscan/internal/domain/model"
)

// Postgres reads the diseases table.
type Postgres struct{ DB *sql.DB }

// NewPostgres creates a catalog over db.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{DB: db} }

// EnsureSchema creates the diseases table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const q = `
create table if not exists diseases (
    label       text primary key,
    name        text not null default '',
    description text not null default '',
    treatment   text not null default ''
)`
	if _, err := p.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create diseases table: %w", err)
	}
	return nil
}

// Get selects the row for label.
func (p *Postgres) Get(ctx context.Context, label model.ClassLabel) (model.DiseaseInfo, bool, error) {
	const q = `
select coalesce(nullif(name,''), label), description, treatment
from diseases
where label = $1`
	var info model.DiseaseInfo
	err := p.DB.QueryRowContext(ctx, q, string(label)).Scan(&info.Name, &info.Description, &info.Treatment)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DiseaseInfo{}, false, nil
	}
	if err != nil {
		return model.DiseaseInfo{}, false, fmt.Errorf("%w: %s: %w", ErrUnavailable, label, err)
	}
	return info, true, nil
}

// Upsert writes an entry; used to seed the table.
func (p *Postgres) Upsert(ctx context.Context, label model.ClassLabel, info model.DiseaseInfo) error {
	const q = `
insert into diseases (label, name, description, treatment)
values ($1, $2, $3, $4)
on conflict (label) do update
set name = excluded.name, description = excluded.description, treatment = excluded.treatment`
	if _, err := p.DB.ExecContext(ctx, q, string(label), info.Name, info.Description, info.Treatment); err != nil {
		return fmt.Errorf("upsert disease %s: %w", label, err)
	}
	return nil
}
