package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Tier is a coarse price class.
type Tier string

// Tiers, by completion price in USD per million tokens.
const (
	Cheap     Tier = "cheap"     // below 1
	Medium    Tier = "medium"    // below 4
	Expensive Tier = "expensive" // the rest
)

const perMillion = 1_000_000

// TierFor classifies a completion price given in USD per token.
func TierFor(completionPerToken float64) Tier {
	perM := completionPerToken * perMillion
	switch {
	case perM < 1:
		return Cheap
	case perM < 4: //nolint:mnd
		return Medium
	default:
		return Expensive
	}
}

// Tier classifies the entry by its completion price.
func (e Entry) Tier() Tier { return TierFor(parsePrice(e.Pricing.Completion)) }

// Price is one row of the price list. Amounts are USD per million tokens
// (or units), rounded to cents.
type Price struct {
	ID                string
	Tier              Tier
	Prompt            float64
	Completion        float64
	Request           float64
	Image             float64
	WebSearch         float64
	InternalReasoning float64
	InputCacheRead    float64
	InputCacheWrite   float64
}

func priceOf(e Entry) Price {
	perM := func(s string) float64 { return roundTo(parsePrice(s)*perMillion, 2) }
	return Price{
		ID:                e.ID,
		Tier:              e.Tier(),
		Prompt:            perM(e.Pricing.Prompt),
		Completion:        perM(e.Pricing.Completion),
		Request:           perM(e.Pricing.Request),
		Image:             perM(e.Pricing.Image),
		WebSearch:         perM(e.Pricing.WebSearch),
		InternalReasoning: perM(e.Pricing.InternalReasoning),
		InputCacheRead:    perM(e.Pricing.InputCacheRead),
		InputCacheWrite:   perM(e.Pricing.InputCacheWrite),
	}
}

// PriceTier classifies the model with the given id.
func (c *Catalog) PriceTier(ctx context.Context, id string) (Tier, error) {
	e, err := c.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return e.Tier(), nil
}

// PriceList returns every model's prices from the cheapest completion
// price to the most expensive.
func (c *Catalog) PriceList(ctx context.Context) []Price {
	entries := c.Entries(ctx)
	prices := make([]Price, 0, len(entries))
	for _, e := range entries {
		prices = append(prices, priceOf(e))
	}
	slices.SortStableFunc(prices, func(a, b Price) int {
		return cmp.Or(
			cmp.Compare(a.Completion, b.Completion),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return prices
}

// TierStyles colors tiers in the price table.
type TierStyles map[Tier]lipgloss.Style

// FormatPriceList renders prices as a table.
func FormatPriceList(prices []Price, styles TierStyles) string {
	money := func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(
			"Model ID", "Price", "Prompt $M/t", "Completion $M/t", "Request $M/t",
			"Image $M/t", "Web Search $M/t", "Internal Reasoning $M/t",
			"Input Cache Read", "Input Cache Write",
		)
	for _, p := range prices {
		t.Row(
			p.ID, string(p.Tier), money(p.Prompt), money(p.Completion), money(p.Request),
			money(p.Image), money(p.WebSearch), money(p.InternalReasoning),
			money(p.InputCacheRead), money(p.InputCacheWrite),
		)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		s := lipgloss.NewStyle().Padding(0, 1)
		if row < 0 || row >= len(prices) || col > 1 {
			return s
		}
		if st, ok := styles[prices[row].Tier]; ok {
			return st.Padding(0, 1)
		}
		return s
	})
	return fmt.Sprintln(t.Render())
}
