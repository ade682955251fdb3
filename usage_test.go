package main

import (
	"testing"
	"time"

	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/usage"
	"github.com/stretchr/testify/require"
)

func TestLimitRows(t *testing.T) {
	now := time.Date(2026, time.October, 18, 20, 0, 0, 0, time.UTC)
	data := usage.Data{DailyUsage: []usage.Item{
		{Month: "2026-10", Day: "2026-10-18", Model: "openai/gpt-4o", Service: "openai", Requests: 3},
		{Month: "2026-10", Day: "2026-10-18", Model: "open_router/mistralai/ministral-3b", Service: "open_router", Requests: 1},
		{Month: "2026-10", Day: "2026-10-02", Model: "openai/gpt-4o", Service: "openai", Requests: 5},
		{Month: "2026-09", Day: "2026-09-30", Model: "openai/gpt-4o", Service: "openai", Requests: 7},
	}}
	cfg := config.Config{
		DailyLimits: config.Limits{
			PerModel:   map[string]int{"openai/gpt-4o": 10},
			PerService: map[string]int{"open_router": 100, "anthropic": 50},
		},
		MonthlyLimits: config.Limits{
			PerService: map[string]int{"openai": 200},
		},
	}

	require.Equal(t, []limitRow{
		{"daily", "model", "openai/gpt-4o", 10, 3},
		{"daily", "service", "anthropic", 50, 0},
		{"daily", "service", "open_router", 100, 1},
		{"monthly", "service", "openai", 200, 8},
	}, limitRows(cfg, data, now))

	t.Run("no limits", func(t *testing.T) {
		require.Empty(t, limitRows(config.Config{}, data, now))
		require.Empty(t, formatLimits(nil))
	})

	t.Run("table", func(t *testing.T) {
		out := formatLimits(limitRows(cfg, data, now))
		require.Contains(t, out, "Period")
		require.Contains(t, out, "open_router")
	})
}
