// Package budget tracks token spend against a daily ceiling and answers
// whether another paid generation call is currently allowed.
package budget

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenCounts accumulates input/output token usage.
type TokenCounts struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Add accumulates a usage event.
func (t *TokenCounts) Add(input, output int) {
	t.Input += input
	t.Output += output
	t.Total += input + output
}

type spendData struct {
	Version string                 `json:"version"`
	Total   TokenCounts            `json:"total"`
	ByDay   map[string]TokenCounts `json:"by_day"`
	ByModel map[string]TokenCounts `json:"by_model"`
}

// Tracker persists token spend to a JSON file and gates calls on a daily
// token limit. A limit <= 0 means unlimited.
type Tracker struct {
	mu         sync.Mutex
	data       spendData
	filePath   string
	dailyLimit int
	dirty      bool
	now        func() time.Time
}

// NewTracker creates a tracker persisting to filePath. Existing data is
// loaded; a corrupt or missing file starts empty rather than failing.
func NewTracker(filePath string, dailyTokenLimit int) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create budget dir: %w", err)
	}

	t := &Tracker{
		filePath:   filePath,
		dailyLimit: dailyTokenLimit,
		now:        time.Now,
		data: spendData{
			Version: "1.0",
			ByDay:   make(map[string]TokenCounts),
			ByModel: make(map[string]TokenCounts),
		},
	}
	_ = t.Load()
	return t, nil
}

// Load reads the spend data from disk.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}

	// Maps may be nil after loading an empty or partial file.
	if t.data.ByDay == nil {
		t.data.ByDay = make(map[string]TokenCounts)
	}
	if t.data.ByModel == nil {
		t.data.ByModel = make(map[string]TokenCounts)
	}
	return nil
}

// Save writes the spend data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0644)
}

func (t *Tracker) dayKey() string {
	return t.now().UTC().Format("2006-01-02")
}

// Allow reports whether another paid generation call is within budget.
func (t *Tracker) Allow() bool {
	if t.dailyLimit <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.ByDay[t.dayKey()].Total < t.dailyLimit
}

// Record reports token usage from a completed call. Saves are debounced so
// a burst of requests does not thrash the file.
func (t *Tracker) Record(model string, input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Total.Add(input, output)

	day := t.data.ByDay[t.dayKey()]
	day.Add(input, output)
	t.data.ByDay[t.dayKey()] = day

	if model != "" {
		m := t.data.ByModel[model]
		m.Add(input, output)
		t.data.ByModel[model] = m
	}

	if !t.dirty {
		t.dirty = true
		time.AfterFunc(5*time.Second, func() {
			_ = t.Save()
			t.mu.Lock()
			t.dirty = false
			t.mu.Unlock()
		})
	}
}

// SpentToday returns today's total token count.
func (t *Tracker) SpentToday() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.ByDay[t.dayKey()].Total
}
