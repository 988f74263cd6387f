// Package water tracks AIWaterdrop consumption, the process-wide resource
// counter. The counter is monotonic for the lifetime of the process and is
// written through to a JSON snapshot after every increment.
package water

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// snapshot is the on-disk shape of the counter file.
type snapshot struct {
	AIWaterdropsConsumed float64 `json:"aiwaterdrops_consumed"`
}

// Accountant is the process-wide waterdrop counter. The zero value is not
// usable; construct with NewAccountant.
type Accountant struct {
	mu     sync.Mutex
	path   string
	loaded bool
	total  float64
	logger *slog.Logger
}

// NewAccountant creates an accountant persisting to path. The snapshot is
// loaded lazily on first access; a missing file starts the counter at 0.
func NewAccountant(path string) *Accountant {
	return &Accountant{
		path:   path,
		logger: slog.Default().With("component", "water"),
	}
}

// Get returns the current total.
func (a *Accountant) Get() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadLocked()
	return a.total
}

// Add increments the counter by delta and persists the new total. Negative
// deltas are clamped to 0 so the counter never decreases. Persistence
// failures are logged and do not propagate to the caller.
func (a *Accountant) Add(delta float64) {
	if delta < 0 {
		delta = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadLocked()
	a.total += delta

	if err := a.saveLocked(); err != nil {
		a.logger.Error("Failed to persist waterdrop counter", "path", a.path, "error", err)
	}
}

// Save forces a persist of the current total.
func (a *Accountant) Save() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadLocked()
	return a.saveLocked()
}

func (a *Accountant) loadLocked() {
	if a.loaded {
		return
	}
	a.loaded = true

	data, err := os.ReadFile(a.path)
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Warn("Could not read waterdrop snapshot, starting at 0",
				"path", a.path, "error", err)
		}
		return
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		a.logger.Warn("Corrupt waterdrop snapshot, starting at 0",
			"path", a.path, "error", err)
		return
	}
	if s.AIWaterdropsConsumed > 0 {
		a.total = s.AIWaterdropsConsumed
	}
}

// saveLocked writes the snapshot atomically (temp file + rename).
func (a *Accountant) saveLocked() error {
	data, err := json.Marshal(snapshot{AIWaterdropsConsumed: a.total})
	if err != nil {
		return fmt.Errorf("marshal waterdrop snapshot: %w", err)
	}

	dir := filepath.Dir(a.path)
	tmp, err := os.CreateTemp(dir, ".aiwaterdrops-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Costs charged by orchestrator operations, in waterdrops.
const (
	CostRegister    = 0.2
	CostPlan        = 1.0
	CostExecutePlan = 0.02
)

// AuditCost returns the waterdrop estimate for auditing a trace with the
// given number of steps.
func AuditCost(steps int) float64 {
	return 6.0 + 0.5*float64(steps)
}
