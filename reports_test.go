package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/aihelper/aihelper/internal/reports"
	"github.com/stretchr/testify/require"
)

func TestPrintReports(t *testing.T) {
	at := time.Date(2020, time.October, 18, 19, 0, 0, 0, time.UTC)
	rows := []reports.Row{
		{
			RunID:        "df31ae23-ab8b-45b5-a43c-2f846c570997",
			ModelName:    "anthropic/claude-3.5-haiku",
			Schema:       "HelloWorld",
			RunDate:      at,
			Cost:         0.00042,
			FallbackUsed: true,
		},
		{
			RunID:     "abc",
			ModelName: "openai/gpt-4o",
			RunDate:   at.Add(-time.Hour),
		},
	}

	t.Run("plain", func(t *testing.T) {
		var b bytes.Buffer
		printReports(&b, rows, false)
		require.Equal(t, "df31ae23\t2020-10-18 19:00:00\tanthropic/claude-3.5-haiku\t0.000420\n"+
			"abc\t2020-10-18 18:00:00\topenai/gpt-4o\t0.000000\n", b.String())
	})

	t.Run("tty", func(t *testing.T) {
		var b bytes.Buffer
		printReports(&b, rows, true)
		out := b.String()
		require.Equal(t, 2, bytes.Count(b.Bytes(), []byte("\n")))
		require.Contains(t, out, "df31ae23")
		require.NotContains(t, out, "df31ae23-ab8b")
		require.Contains(t, out, "HelloWorld")
		require.Contains(t, out, "fallback")
		require.Contains(t, out, "years ago")
	})
}

func TestPrintConversation(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		var b bytes.Buffer
		row := &reports.Row{RunID: "abc", Conversation: "**User**: hi\n\n**Assistant**: hello\n\n"}
		require.NoError(t, printConversation(&b, row, false))
		require.Equal(t, row.Conversation, b.String())
	})

	t.Run("tty", func(t *testing.T) {
		var b bytes.Buffer
		row := &reports.Row{RunID: "abc", Conversation: "**User**: hi\n\n**Assistant**: hello\n\n"}
		require.NoError(t, printConversation(&b, row, true))
		require.Contains(t, b.String(), "hello")
	})

	t.Run("missing", func(t *testing.T) {
		var b bytes.Buffer
		err := printConversation(&b, &reports.Row{RunID: "df31ae23-ab8b"}, false)
		require.EqualError(t, err, "report df31ae23 has no conversation")
		require.Empty(t, b.String())
	})
}

func TestShortID(t *testing.T) {
	for in, want := range map[string]string{
		"df31ae23-ab8b-45b5-a43c-2f846c570997": "df31ae23",
		"df31ae23":                             "df31ae23",
		"abc":                                  "abc",
		"":                                     "",
	} {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, shortID(in))
		})
	}
}
