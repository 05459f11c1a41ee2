package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetroute/internal/model"
	"fleetroute/internal/opt"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	return p.migrate(ctx, sub)
}

// MigrateDir applies every .sql file of dir in name order.
func (p *Postgres) MigrateDir(ctx context.Context, dir string) error {
	return p.migrate(ctx, os.DirFS(dir))
}

func (p *Postgres) migrate(ctx context.Context, fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(body)) == "" {
			continue
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) SaveRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	report, err := toJSON(r.Report)
	if err != nil {
		return "", err
	}
	sol, err := toJSON(r.Solution)
	if err != nil {
		return "", err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, status, source, level, threads, seed, cost, unassigned, error, report, solution, created_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, cost=EXCLUDED.cost, unassigned=EXCLUDED.unassigned,
  error=EXCLUDED.error, report=EXCLUDED.report, solution=EXCLUDED.solution, finished_at=EXCLUDED.finished_at`,
		r.ID, r.Status, r.Source, r.Level, r.Threads, r.Seed, r.Cost, r.Unassigned, r.Error, report, sol, r.CreatedAt.UTC(), r.FinishedAt)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

const runColumns = `id, status, source, level, threads, seed, cost, unassigned, error, report, solution, created_at, finished_at`

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (Run, error) {
	var r Run
	var report, sol []byte
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.Status, &r.Source, &r.Level, &r.Threads, &r.Seed, &r.Cost, &r.Unassigned, &r.Error, &report, &sol, &r.CreatedAt, &finished); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if len(report) > 0 {
		r.Report = new(opt.SolveReport)
		if err := json.Unmarshal(report, r.Report); err != nil {
			return Run{}, fmt.Errorf("run %s report: %w", r.ID, err)
		}
	}
	if len(sol) > 0 {
		r.Solution = new(model.Solution)
		if err := json.Unmarshal(sol, r.Solution); err != nil {
			return Run{}, fmt.Errorf("run %s solution: %w", r.ID, err)
		}
	}
	return r, nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// ListRuns omits solutions; fetch one run for its routes.
func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]Run, string, error) {
	limit = clampLimit(limit)
	var rows *sql.Rows
	var err error
	const cols = `id, status, source, level, threads, seed, cost, unassigned, error, report, NULL::jsonb, created_at, finished_at`
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+cols+` FROM runs r
WHERE (r.created_at, r.id) < (SELECT created_at, id FROM runs WHERE id=$1)
ORDER BY created_at DESC, id DESC LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+cols+` FROM runs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// toJSON encodes v for a jsonb column; nil pointers become SQL NULL.
func toJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
