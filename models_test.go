package main

import (
	"bytes"
	"slices"
	"testing"

	"github.com/aihelper/aihelper/internal/catalog"
	"github.com/aihelper/aihelper/internal/config"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

type fakeFlags struct {
	mode        config.Mode
	excluded    []string
	fileCapable []string
}

func (f fakeFlags) Mode() config.Mode { return f.mode }
func (f fakeFlags) IsExcluded(key string) bool { return slices.Contains(f.excluded, key) }
func (f fakeFlags) IsFileCapable(key string) bool { return slices.Contains(f.fileCapable, key) }

func TestListModels(t *testing.T) {
	entries := []catalog.Entry{
		{ID: "openai/gpt-4o", Pricing: catalog.Pricing{Completion: "0.00001"}, SupportedParameters: []string{"tools"}},
		{ID: "mistralai/ministral-3b", Pricing: catalog.Pricing{Completion: "0.00000004"}},
		{ID: "openai/o4-mini-high", Pricing: catalog.Pricing{Completion: "0.0000022"}},
	}
	flags := fakeFlags{
		mode:        config.ModeStrict,
		excluded:    []string{"openai/o4-mini-high"},
		fileCapable: []string{"openai/gpt-4o"},
	}
	list := func(flags fakeFlags, all bool) string {
		var buf bytes.Buffer
		listModels(&buf, entries, flags, all)
		return ansi.Strip(buf.String())
	}

	t.Run("strict hides excluded", func(t *testing.T) {
		require.Equal(t,
			"expensive openai/gpt-4o (file, tools)\n"+
				"cheap     mistralai/ministral-3b\n",
			list(flags, false),
		)
	})

	t.Run("all", func(t *testing.T) {
		require.Contains(t, list(flags, true), "medium    openai/o4-mini-high (excluded)\n")
	})

	t.Run("loose", func(t *testing.T) {
		loose := flags
		loose.mode = config.ModeLoose
		require.Equal(t, list(flags, true), list(loose, false))
	})
}
