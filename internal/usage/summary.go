package usage

import (
	"cmp"
	"slices"
)

// Totals are summed request counters.
type Totals struct {
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

func (t *Totals) add(it Item) {
	t.Requests += it.Requests
	t.InputTokens += it.InputTokens
	t.OutputTokens += it.OutputTokens
	t.TotalTokens += it.TotalTokens
	t.Cost += it.Cost
}

// DailyTotals are the totals of one day, model, service and schema.
type DailyTotals struct {
	Day     string `json:"day"`
	Model   string `json:"model"`
	Service string `json:"service"`
	Schema  string `json:"pydantic_model_name"`
	Totals
}

// DailyTool is the call count of one tool on one day.
type DailyTool struct {
	Day      string `json:"day"`
	ToolName string `json:"tool_name"`
	Calls    int64  `json:"calls"`
}

// Summary is derived from the ledger on demand.
type Summary struct {
	UsageToday       float64              `json:"usage_today"`
	UsageThisMonth   float64              `json:"usage_this_month"`
	DailyUsage       []DailyTotals        `json:"daily_usage"`
	DailyToolUsage   []DailyTool          `json:"daily_tool_usage"`
	MonthlyLLM       map[string]Totals    `json:"monthly_llm_summary"`
	MonthlyToolCalls map[string]int64     `json:"monthly_tool_summary"`
	ByModel          map[string]Totals    `json:"by_model"`
	ByService        map[string]Totals    `json:"by_service"`
	BySchema         map[string]Totals    `json:"usage_by_pydantic_model"`
	ByTool           map[string]int64     `json:"by_tool"`
	FillBySchema     map[string]FillStats `json:"fill_percentage_by_pydantic_model"`
	FillByModel      map[string]FillStats `json:"fill_percentage_by_llm_model"`
	TotalLLMRequests int64                `json:"total_llm_requests"`
	TotalToolCalls   int64                `json:"total_tool_calls"`
}

// Summarize aggregates the ledger by day, month, model, service, schema and
// tool.
func (l *Ledger) Summarize() Summary {
	l.mu.Lock()
	now := l.now()
	data := l.snapshot()
	today := l.costOn(now.Format(dayLayout))
	month := l.costIn(now.Format(monthLayout))
	l.mu.Unlock()

	s := Summarize(data)
	s.UsageToday = today
	s.UsageThisMonth = month
	return s
}

// Summarize aggregates a ledger document. The today and this-month costs
// are taken from the document as persisted.
func Summarize(data Data) Summary {
	s := Summary{
		UsageToday:       data.UsageToday,
		UsageThisMonth:   data.UsageThisMonth,
		MonthlyLLM:       map[string]Totals{},
		MonthlyToolCalls: map[string]int64{},
		ByModel:          map[string]Totals{},
		ByService:        map[string]Totals{},
		BySchema:         map[string]Totals{},
		ByTool:           map[string]int64{},
		FillBySchema:     data.FillBySchema,
		FillByModel:      data.FillByModel,
	}

	type dayKey struct{ day, model, service, schema string }
	daily := map[dayKey]int{}
	for _, it := range data.DailyUsage {
		k := dayKey{it.Day, it.Model, it.Service, it.Schema}
		i, ok := daily[k]
		if !ok {
			s.DailyUsage = append(s.DailyUsage, DailyTotals{
				Day:     it.Day,
				Model:   it.Model,
				Service: it.Service,
				Schema:  it.Schema,
			})
			i = len(s.DailyUsage) - 1
			daily[k] = i
		}
		s.DailyUsage[i].add(it)

		addTo(s.MonthlyLLM, it.Month, it)
		addTo(s.ByModel, it.Model, it)
		addTo(s.ByService, it.Service, it)
		if it.Schema != NoSchema {
			addTo(s.BySchema, it.Schema, it)
		}
	}

	type toolKey struct{ day, tool string }
	tools := map[toolKey]int{}
	for _, it := range data.DailyToolUsage {
		k := toolKey{it.Day, it.ToolName}
		i, ok := tools[k]
		if !ok {
			s.DailyToolUsage = append(s.DailyToolUsage, DailyTool{Day: it.Day, ToolName: it.ToolName})
			i = len(s.DailyToolUsage) - 1
			tools[k] = i
		}
		s.DailyToolUsage[i].Calls += it.Calls
		s.MonthlyToolCalls[it.Month] += it.Calls
		s.ByTool[it.ToolName] += it.Calls
	}

	for _, t := range s.ByModel {
		s.TotalLLMRequests += t.Requests
	}
	for _, calls := range s.ByTool {
		s.TotalToolCalls += calls
	}
	return s
}

func addTo(m map[string]Totals, key string, it Item) {
	t := m[key]
	t.add(it)
	m[key] = t
}

// byTokens returns the keys of m from the most total tokens to the least,
// ties by key.
func byTokens(m map[string]Totals) []string {
	keys := sortedKeys(m)
	slices.SortStableFunc(keys, func(a, b string) int {
		return cmp.Compare(m[b].TotalTokens, m[a].TotalTokens)
	})
	return keys
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
