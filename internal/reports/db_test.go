package reports

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aihelper/aihelper/internal/fallback"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func testDB(tb testing.TB) *DB {
	tb.Helper()
	db, err := Open(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() {
		require.NoError(tb, db.Close())
	})
	return db
}

func testReport(id string, at time.Time) fallback.Report {
	return fallback.Report{
		ModelName: "anthropic/claude-3.5-haiku",
		Provider:  provider.OpenRouter,
		Schema:    "HelloWorld",
		RunDate:   at,
		RunID:     id,
		Usage: proto.Usage{
			InputTokens:  120,
			OutputTokens: 30,
			TotalTokens:  150,
			Requests:     2,
		},
		Cost:            0.00042,
		FillPercentage:  100,
		FallbackUsed:    true,
		AttemptedModels: []string{"openai/gpt-4.1", "anthropic/claude-3.5-haiku"},
		Tools:           []string{"calculator"},
		Conversation:    "**User**: hi\n\n**Assistant**: hello\n\n",
	}
}

func TestReportsDB(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, time.October, 18, 19, 0, 0, 0, time.UTC)
	const testid = "df31ae23-ab8b-45b5-a43c-2f846c570997"

	t.Run("list-empty", func(t *testing.T) {
		db := testDB(t)
		list, err := db.List(ctx)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("save and find", func(t *testing.T) {
		db := testDB(t)
		want := testReport(testid, at)
		require.NoError(t, db.Save(ctx, want))

		row, err := db.Find(ctx, "df31")
		require.NoError(t, err)
		got := row.Report()
		require.True(t, want.RunDate.Equal(got.RunDate))
		got.RunDate = want.RunDate
		require.Equal(t, want, got)
	})

	t.Run("save no id", func(t *testing.T) {
		db := testDB(t)
		require.Error(t, db.Save(ctx, testReport("", at)))
	})

	t.Run("save replaces", func(t *testing.T) {
		db := testDB(t)
		r := testReport(testid, at)
		require.NoError(t, db.Save(ctx, r))
		r.Cost = 1
		require.NoError(t, db.Save(ctx, r))

		list, err := db.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.InDelta(t, 1.0, list[0].Cost, 1e-12)
	})

	t.Run("empty lists", func(t *testing.T) {
		db := testDB(t)
		r := testReport(testid, at)
		r.Tools = nil
		r.Schema = ""
		require.NoError(t, db.Save(ctx, r))
		row, err := db.Find(ctx, testid)
		require.NoError(t, err)
		require.Nil(t, row.Report().Tools)
		require.Empty(t, row.Schema)
	})

	t.Run("list newest first", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(ctx, testReport("aaaa-1", at)))
		require.NoError(t, db.Save(ctx, testReport("bbbb-2", at.Add(time.Hour))))
		require.NoError(t, db.Save(ctx, testReport("cccc-3", at.Add(-time.Hour))))

		list, err := db.List(ctx)
		require.NoError(t, err)
		var ids []string
		for _, r := range list {
			ids = append(ids, r.RunID)
		}
		require.Equal(t, []string{"bbbb-2", "aaaa-1", "cccc-3"}, ids)
	})

	t.Run("find", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(ctx, testReport("abcd-1", at)))
		require.NoError(t, db.Save(ctx, testReport("abcd-2", at)))
		require.NoError(t, db.Save(ctx, testReport("abc", at)))

		_, err := db.Find(ctx, "abcd")
		require.ErrorIs(t, err, ErrMultipleMatches)

		row, err := db.Find(ctx, "abcd-2")
		require.NoError(t, err)
		require.Equal(t, "abcd-2", row.RunID)

		row, err = db.Find(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, "abc", row.RunID)

		_, err = db.Find(ctx, "ab")
		require.ErrorIs(t, err, ErrNoMatches)

		_, err = db.Find(ctx, "zzzz")
		require.ErrorIs(t, err, ErrNoMatches)
	})

	t.Run("delete", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(ctx, testReport(testid, at)))
		require.NoError(t, db.Delete(ctx, testid))
		_, err := db.Find(ctx, testid)
		require.ErrorIs(t, err, ErrNoMatches)
		require.ErrorIs(t, db.Delete(ctx, testid), ErrNoMatches)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "reports.db")
		db, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, db.Save(ctx, testReport(testid, at)))
		require.NoError(t, db.Close())

		db, err = Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, db.Close()) })
		list, err := db.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("archive without conversations", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports.db")
		old, err := sqlx.Open("sqlite", path)
		require.NoError(t, err)
		_, err = old.Exec(`create table reports(
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
			tools text not null default ''
		)`)
		require.NoError(t, err)
		_, err = old.Exec(`insert into reports(run_id, model_name, service, run_date) values ('old-1', 'openai/gpt-4o', 'openai', ?)`, at)
		require.NoError(t, err)
		require.NoError(t, old.Close())

		db, err := Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, db.Close()) })

		row, err := db.Find(ctx, "old-1")
		require.NoError(t, err)
		require.Empty(t, row.Conversation)

		require.NoError(t, db.Save(ctx, testReport(testid, at)))
		row, err = db.Find(ctx, testid)
		require.NoError(t, err)
		require.Equal(t, testReport(testid, at).Conversation, row.Conversation)
	})
}

var _ fallback.Archive = (*DB)(nil)
