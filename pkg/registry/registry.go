// Package registry keeps the orchestrator's in-memory map of registered
// agents and its derived read-only views: the plan-start snapshot used by
// the executor and the capability catalog fed to the planner LLM.
//
// The registry is read-mostly. Registration takes the write lock and
// replaces whole records; readers take consistent snapshots and never
// observe a torn record. The registry is written through to a JSON
// snapshot file so registrations survive restarts.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/clearcoreai/clearcore/pkg/manifest"
	"github.com/clearcoreai/clearcore/pkg/water"
)

// Record is one registered agent. Records are immutable once stored;
// re-registration replaces the whole record.
type Record struct {
	Name     string
	BaseURL  string
	Manifest *manifest.Manifest
}

// Capability returns the agent's declared capability with the given name.
func (r *Record) Capability(name string) (manifest.Capability, bool) {
	return r.Manifest.Capability(name)
}

// HasCapability reports whether the agent advertises the capability.
func (r *Record) HasCapability(name string) bool {
	_, ok := r.Manifest.Capability(name)
	return ok
}

// Config holds registry construction parameters.
type Config struct {
	SnapshotPath    string
	RegisterTimeout time.Duration // manifest fetch bound, default 5s
	MetricsTimeout  time.Duration // per-agent metrics bound, default 3s
}

// Registry is the process-wide agent registry.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Record

	cfg        Config
	validator  *manifest.Validator
	httpClient *http.Client
	water      *water.Accountant
	logger     *slog.Logger
}

// New creates an empty registry. Call Load to restore a snapshot.
func New(cfg Config, validator *manifest.Validator, acct *water.Accountant) *Registry {
	if cfg.RegisterTimeout == 0 {
		cfg.RegisterTimeout = 5 * time.Second
	}
	if cfg.MetricsTimeout == 0 {
		cfg.MetricsTimeout = 3 * time.Second
	}
	return &Registry{
		agents:     make(map[string]*Record),
		cfg:        cfg,
		validator:  validator,
		httpClient: &http.Client{},
		water:      acct,
		logger:     slog.Default().With("component", "registry"),
	}
}

// snapshotEntry is the on-disk shape of one registered agent.
type snapshotEntry struct {
	BaseURL      string             `json:"base_url"`
	Manifest     *manifest.Manifest `json:"manifest"`
	Capabilities []string           `json:"capabilities"`
}

// Load restores the registry from its snapshot file. A missing file is not
// an error; a corrupt one is fatal to startup.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.cfg.SnapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry snapshot %s: %w", r.cfg.SnapshotPath, err)
	}

	var entries map[string]snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("corrupt registry snapshot %s: %w", r.cfg.SnapshotPath, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range entries {
		if name == "" || e.BaseURL == "" || e.Manifest == nil {
			return fmt.Errorf("corrupt registry snapshot %s: entry %q is incomplete", r.cfg.SnapshotPath, name)
		}
		r.agents[name] = &Record{Name: name, BaseURL: e.BaseURL, Manifest: e.Manifest}
	}

	r.logger.Info("Registry snapshot loaded", "agents", len(r.agents))
	return nil
}

// Register fetches and validates {baseURL}/manifest, then stores (or
// replaces) the record and persists the snapshot. Water cost: +0.2.
func (r *Registry) Register(ctx context.Context, name, baseURL string) error {
	raw, err := r.fetchManifest(ctx, name, baseURL)
	if err != nil {
		return err
	}

	m, err := r.validator.Validate(raw)
	if err != nil {
		return &BadManifestError{Name: name, Err: err}
	}

	record := &Record{Name: name, BaseURL: baseURL, Manifest: m}

	r.mu.Lock()
	r.agents[name] = record
	err = r.saveLocked()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.water.Add(water.CostRegister)
	r.logger.Info("Agent registered",
		"agent", name,
		"base_url", baseURL,
		"capabilities", len(m.Capabilities))
	return nil
}

func (r *Registry) fetchManifest(ctx context.Context, name, baseURL string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RegisterTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/manifest", nil)
	if err != nil {
		return nil, &UnreachableError{Name: name, URL: baseURL, Err: err}
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &UnreachableError{Name: name, URL: baseURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnreachableError{Name: name, URL: baseURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UnreachableError{
			Name: name, URL: baseURL,
			Err: fmt.Errorf("GET /manifest returned status %d", resp.StatusCode),
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &BadManifestError{Name: name, Err: fmt.Errorf("response is not a JSON object: %w", err)}
	}
	return raw, nil
}

// saveLocked persists the registry atomically (temp file + rename).
// Caller holds the write lock.
func (r *Registry) saveLocked() error {
	entries := make(map[string]snapshotEntry, len(r.agents))
	for name, rec := range r.agents {
		entries[name] = snapshotEntry{
			BaseURL:      rec.BaseURL,
			Manifest:     rec.Manifest,
			Capabilities: rec.Manifest.CapabilityNames(),
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &PersistError{Path: r.cfg.SnapshotPath, Err: err}
	}

	dir := filepath.Dir(r.cfg.SnapshotPath)
	tmp, err := os.CreateTemp(dir, ".agents-*.json")
	if err != nil {
		return &PersistError{Path: r.cfg.SnapshotPath, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &PersistError{Path: r.cfg.SnapshotPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &PersistError{Path: r.cfg.SnapshotPath, Err: err}
	}
	if err := os.Rename(tmpName, r.cfg.SnapshotPath); err != nil {
		_ = os.Remove(tmpName)
		return &PersistError{Path: r.cfg.SnapshotPath, Err: err}
	}
	return nil
}

// List returns the registered agent names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetManifest returns the normalized manifest for name.
func (r *Registry) GetManifest(name string) (*manifest.Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return rec.Manifest, nil
}

// AllManifests returns every agent's normalized manifest.
func (r *Registry) AllManifests() map[string]*manifest.Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*manifest.Manifest, len(r.agents))
	for name, rec := range r.agents {
		out[name] = rec.Manifest
	}
	return out
}

// View is a consistent point-in-time snapshot of the registry. Plans hold a
// View for their whole execution, so re-registration mid-plan does not
// change the records a running plan observes.
type View struct {
	agents map[string]*Record
}

// Snapshot returns a consistent view of the current records.
func (r *Registry) Snapshot() *View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make(map[string]*Record, len(r.agents))
	for name, rec := range r.agents {
		agents[name] = rec
	}
	return &View{agents: agents}
}

// Get returns the record for name.
func (v *View) Get(name string) (*Record, bool) {
	rec, ok := v.agents[name]
	return rec, ok
}

// Names returns the agent names in the view, sorted.
func (v *View) Names() []string {
	names := make([]string, 0, len(v.agents))
	for name := range v.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of agents in the view.
func (v *View) Len() int { return len(v.agents) }
