// Package reports archives the report of every successful request in a
// sqlite database.
package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aihelper/aihelper/internal/fallback"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// Errors.
var (
	ErrNoMatches       = errors.New("no reports matched the given input")
	ErrMultipleMatches = errors.New("multiple reports matched the given input")
)

// minPrefix is the shortest id prefix Find looks up.
const minPrefix = 4

// DB is the reports archive.
type DB struct {
	db *sqlx.DB
}

// Row is an archived report.
type Row struct {
	RunID           string    `db:"run_id"`
	ModelName       string    `db:"model_name"`
	Service         string    `db:"service"`
	Schema          string    `db:"schema_name"`
	RunDate         time.Time `db:"run_date"`
	InputTokens     int64     `db:"input_tokens"`
	OutputTokens    int64     `db:"output_tokens"`
	TotalTokens     int64     `db:"total_tokens"`
	Requests        int64     `db:"requests"`
	Cost            float64   `db:"cost"`
	FillPercentage  int       `db:"fill_percentage"`
	FallbackUsed    bool      `db:"fallback_used"`
	AttemptedModels string    `db:"attempted_models"`
	Tools           string    `db:"tools"`
	Conversation    string    `db:"conversation"`
}

// Report converts the row back into a report.
func (r Row) Report() fallback.Report {
	return fallback.Report{
		ModelName: r.ModelName,
		Provider:  provider.Kind(r.Service),
		Schema:    r.Schema,
		RunDate:   r.RunDate,
		RunID:     r.RunID,
		Usage: proto.Usage{
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			TotalTokens:  r.TotalTokens,
			Requests:     r.Requests,
		},
		Cost:            r.Cost,
		FillPercentage:  r.FillPercentage,
		FallbackUsed:    r.FallbackUsed,
		AttemptedModels: splitList(r.AttemptedModels),
		Tools:           splitList(r.Tools),
		Conversation:    r.Conversation,
	}
}

// Open opens, or creates, the archive at path. ":memory:" is accepted.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil { //nolint:mnd
			return nil, fmt.Errorf("could not create db: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not create db: %w", err)
	}
	// a :memory: database lives in a single connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not ping db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("could not execute %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(`
		create table if not exists reports(
			run_id text not null primary key,
			model_name text not null,
			service text not null,
			schema_name text not null default '',
			run_date datetime not null,
			input_tokens integer not null default 0,
			output_tokens integer not null default 0,
			total_tokens integer not null default 0,
			requests integer not null default 0,
			cost real not null default 0,
			fill_percentage integer not null default -1,
			fallback_used boolean not null default false,
			attempted_models text not null default '',
			tools text not null default '',
			conversation text not null default '',
			check (run_id <> ''),
			check (model_name <> '')
		);
		create index if not exists idx_reports_run_date on reports(run_date);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not migrate db: %w", err)
	}
	if err := addColumn(db, "conversation", "text not null default ''"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

// addColumn adds a column to archives created before it existed.
func addColumn(db *sqlx.DB, name, def string) error {
	var n int
	if err := db.Get(&n, `select count(*) from pragma_table_info('reports') where name = ?`, name); err != nil {
		return fmt.Errorf("could not inspect db: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`alter table reports add column ` + name + ` ` + def); err != nil {
		return fmt.Errorf("could not migrate db: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close() //nolint:wrapcheck
}

// Save stores r, replacing any report with the same run id.
func (d *DB) Save(ctx context.Context, r fallback.Report) error {
	row := Row{
		RunID:           r.RunID,
		ModelName:       r.ModelName,
		Service:         string(r.Provider),
		Schema:          r.Schema,
		RunDate:         r.RunDate.UTC(),
		InputTokens:     r.Usage.InputTokens,
		OutputTokens:    r.Usage.OutputTokens,
		TotalTokens:     r.Usage.TotalTokens,
		Requests:        r.Usage.Requests,
		Cost:            r.Cost,
		FillPercentage:  r.FillPercentage,
		FallbackUsed:    r.FallbackUsed,
		AttemptedModels: strings.Join(r.AttemptedModels, ","),
		Tools:           strings.Join(r.Tools, ","),
		Conversation:    r.Conversation,
	}
	if _, err := d.db.NamedExecContext(ctx, `
		insert or replace into reports (
			run_id, model_name, service, schema_name, run_date,
			input_tokens, output_tokens, total_tokens, requests, cost,
			fill_percentage, fallback_used, attempted_models, tools,
			conversation
		) values (
			:run_id, :model_name, :service, :schema_name, :run_date,
			:input_tokens, :output_tokens, :total_tokens, :requests, :cost,
			:fill_percentage, :fallback_used, :attempted_models, :tools,
			:conversation
		)
	`, row); err != nil {
		return fmt.Errorf("could not save report: %w", err)
	}
	return nil
}

// Find returns the report whose run id starts with prefix. Prefixes
// shorter than four characters must match a run id exactly.
func (d *DB) Find(ctx context.Context, prefix string) (*Row, error) {
	var rows []Row
	var err error
	if len(prefix) < minPrefix {
		err = d.db.SelectContext(ctx, &rows, `select * from reports where run_id = ?`, prefix)
	} else {
		err = d.db.SelectContext(ctx, &rows, `select * from reports where run_id like ?`, prefix+"%")
	}
	if err != nil {
		return nil, fmt.Errorf("could not find report: %w", err)
	}
	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNoMatches, prefix)
	case 1:
		return &rows[0], nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.RunID)
	}
	return nil, fmt.Errorf("%w: %q: %s", ErrMultipleMatches, prefix, strings.Join(ids, ", "))
}

// List returns every report, newest first.
func (d *DB) List(ctx context.Context) ([]Row, error) {
	var rows []Row
	if err := d.db.SelectContext(ctx, &rows, `select * from reports order by run_date desc, run_id`); err != nil {
		return rows, fmt.Errorf("could not list reports: %w", err)
	}
	return rows, nil
}

// Delete removes the report with the given run id.
func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `delete from reports where run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrNoMatches, id)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
