// Package usage is the persisted ledger of requests, tokens, cost and
// tool calls, aggregated per day.
package usage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aihelper/aihelper/internal/cache"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/charmbracelet/log"
)

// NoSchema is the schema name recorded for requests without an output
// schema.
const NoSchema = "N/A"

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// FillStats is the running mean of fill percentages.
type FillStats struct {
	Average  float64 `json:"average"`
	Count    int64   `json:"count"`
	SumTotal float64 `json:"sum_total"`
}

func (s *FillStats) observe(pct float64) {
	s.Count++
	s.SumTotal += pct
	s.Average = s.SumTotal / float64(s.Count)
}

// Item is the bucket for one day, model, service and schema.
type Item struct {
	Month        string  `json:"month"`
	Day          string  `json:"day"`
	Model        string  `json:"model"`
	Service      string  `json:"service"`
	Schema       string  `json:"pydantic_model_name"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	Requests     int64   `json:"requests"`
	Cost         float64 `json:"cost"`
}

// ToolItem counts the calls of one tool on one day.
type ToolItem struct {
	Month    string `json:"month"`
	Day      string `json:"day"`
	ToolName string `json:"tool_name"`
	Calls    int64  `json:"calls"`
}

// Data is the persisted document.
type Data struct {
	UsageToday     float64              `json:"usage_today"`
	UsageThisMonth float64              `json:"usage_this_month"`
	DailyUsage     []Item               `json:"daily_usage"`
	DailyToolUsage []ToolItem           `json:"daily_tool_usage"`
	FillBySchema   map[string]FillStats `json:"fill_percentage_by_pydantic_model"`
	FillByModel    map[string]FillStats `json:"fill_percentage_by_llm_model"`
}

func empty() Data {
	return Data{
		DailyUsage:     []Item{},
		DailyToolUsage: []ToolItem{},
		FillBySchema:   map[string]FillStats{},
		FillByModel:    map[string]FillStats{},
	}
}

// Entry is one successful request to record.
type Entry struct {
	// Model is the "provider/model" identity.
	Model   string
	Service string
	// Schema is the output schema name, empty if there is none.
	Schema string
	Usage  proto.Usage
	Cost   float64
	// FillPercentage is ignored when negative.
	FillPercentage int
	Tools          []string
}

// Ledger is the usage ledger. Every record rewrites the whole file; a
// single writer process is assumed.
type Ledger struct {
	path   string
	logger *log.Logger
	now    func() time.Time

	mu   sync.Mutex
	data Data
}

// Option configures a [Ledger].
type Option func(*Ledger)

// WithClock sets the clock used to date entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Open loads the ledger at path. A missing or corrupt file starts an empty
// ledger.
func Open(path string, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		logger: log.New(io.Discard),
		now:    time.Now,
		data:   empty(),
	}
	for _, opt := range opts {
		opt(l)
	}

	var data Data
	err := cache.ReadJSON(path, &data)
	switch {
	case err == nil:
		l.data = normalize(data)
		return l, nil
	case errors.Is(err, os.ErrNotExist):
	default:
		l.logger.Warn("usage ledger unreadable, starting empty", "path", path, "err", err)
	}
	if err := l.save(); err != nil {
		return nil, err
	}
	return l, nil
}

func normalize(d Data) Data {
	if d.DailyUsage == nil {
		d.DailyUsage = []Item{}
	}
	if d.DailyToolUsage == nil {
		d.DailyToolUsage = []ToolItem{}
	}
	if d.FillBySchema == nil {
		d.FillBySchema = map[string]FillStats{}
	}
	if d.FillByModel == nil {
		d.FillByModel = map[string]FillStats{}
	}
	for i := range d.DailyUsage {
		if d.DailyUsage[i].Schema == "" {
			d.DailyUsage[i].Schema = NoSchema
		}
	}
	return d
}

// Record merges e into today's buckets and saves the ledger.
func (l *Ledger) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	day, month := now.Format(dayLayout), now.Format(monthLayout)

	schema := e.Schema
	if schema == "" {
		schema = NoSchema
	}
	requests := e.Usage.Requests
	if requests == 0 {
		requests = 1
	}

	if e.Schema != "" && e.FillPercentage >= 0 {
		pct := float64(e.FillPercentage)
		s := l.data.FillBySchema[schema]
		s.observe(pct)
		l.data.FillBySchema[schema] = s
		m := l.data.FillByModel[e.Model]
		m.observe(pct)
		l.data.FillByModel[e.Model] = m
	}

	idx := -1
	for i, it := range l.data.DailyUsage {
		if it.Day == day && it.Model == e.Model && it.Service == e.Service && it.Schema == schema {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.data.DailyUsage = append(l.data.DailyUsage, Item{
			Month:   month,
			Day:     day,
			Model:   e.Model,
			Service: e.Service,
			Schema:  schema,
		})
		idx = len(l.data.DailyUsage) - 1
	}
	it := &l.data.DailyUsage[idx]
	it.InputTokens += e.Usage.InputTokens
	it.OutputTokens += e.Usage.OutputTokens
	it.TotalTokens += e.Usage.TotalTokens
	it.Requests += requests
	it.Cost += e.Cost

	for _, name := range e.Tools {
		found := false
		for i := range l.data.DailyToolUsage {
			t := &l.data.DailyToolUsage[i]
			if t.Day == day && t.ToolName == name {
				t.Calls++
				found = true
				break
			}
		}
		if !found {
			l.data.DailyToolUsage = append(l.data.DailyToolUsage, ToolItem{
				Month:    month,
				Day:      day,
				ToolName: name,
				Calls:    1,
			})
		}
	}

	l.data.UsageToday = l.costOn(day)
	l.data.UsageThisMonth = l.costIn(month)
	return l.save()
}

func (l *Ledger) costOn(day string) float64 {
	var total float64
	for _, it := range l.data.DailyUsage {
		if it.Day == day {
			total += it.Cost
		}
	}
	return total
}

func (l *Ledger) costIn(month string) float64 {
	var total float64
	for _, it := range l.data.DailyUsage {
		if it.Month == month {
			total += it.Cost
		}
	}
	return total
}

// UsageToday is the cost of today's requests.
func (l *Ledger) UsageToday() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.costOn(l.now().Format(dayLayout))
}

// UsageThisMonth is the cost of this month's requests.
func (l *Ledger) UsageThisMonth() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.costIn(l.now().Format(monthLayout))
}

// Data returns a copy of the ledger document.
func (l *Ledger) Data() Data {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *Ledger) snapshot() Data {
	d := l.data
	d.DailyUsage = append([]Item{}, l.data.DailyUsage...)
	d.DailyToolUsage = append([]ToolItem{}, l.data.DailyToolUsage...)
	d.FillBySchema = make(map[string]FillStats, len(l.data.FillBySchema))
	for k, v := range l.data.FillBySchema {
		d.FillBySchema[k] = v
	}
	d.FillByModel = make(map[string]FillStats, len(l.data.FillByModel))
	for k, v := range l.data.FillByModel {
		d.FillByModel[k] = v
	}
	return d
}

func (l *Ledger) save() error {
	if err := cache.WriteJSON(l.path, l.data); err != nil {
		return fmt.Errorf("save usage ledger: %w", err)
	}
	return nil
}
