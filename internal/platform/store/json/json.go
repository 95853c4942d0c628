// Package json implements a JSON file-based persistence driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/askings-go/internal/platform/store"
)

// AskingsFile is the file name inside data_dir.
const AskingsFile = "askings.json"

func init() {
	store.Register("json", NewDriver)
}

// Driver keeps every asking in memory and rewrites the file on each mutation.
type Driver struct {
	dataDir string
	mu      sync.RWMutex
	closed  bool
	askings map[string]*store.Asking
}

// NewDriver creates a new JSON driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}
	return &Driver{
		dataDir: cfg.DataDir,
		askings: make(map[string]*store.Asking),
	}, nil
}

func (d *Driver) Name() string {
	return "json"
}

// Init loads the data file if it exists.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(d.dataDir, AskingsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read askings: %w", err)
	}
	if err := json.Unmarshal(data, &d.askings); err != nil {
		return fmt.Errorf("failed to parse askings: %w", err)
	}
	if d.askings == nil {
		d.askings = make(map[string]*store.Asking)
	}
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// persist atomically rewrites the data file. Caller holds d.mu.
func (d *Driver) persist() error {
	path := filepath.Join(d.dataDir, AskingsFile)
	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(d.askings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal askings: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// mutate applies fn under the write lock and rolls back the map if persisting fails.
func (d *Driver) mutate(fn func() error, rollback func()) error {
	if d.closed {
		return store.ErrClosed
	}
	if err := fn(); err != nil {
		return err
	}
	if err := d.persist(); err != nil {
		rollback()
		return err
	}
	return nil
}

func (d *Driver) CreateAsking(ctx context.Context, a *store.Asking) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.mutate(func() error {
		if _, exists := d.askings[a.ID]; exists {
			return store.ErrAlreadyExists
		}
		d.askings[a.ID] = a.Clone()
		return nil
	}, func() { delete(d.askings, a.ID) })
}

func (d *Driver) GetAsking(ctx context.Context, id string) (*store.Asking, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	a, ok := d.askings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a.Clone(), nil
}

func (d *Driver) ListAskings(ctx context.Context, f store.AskingFilter) ([]*store.Asking, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	out := make([]*store.Asking, 0, len(d.askings))
	for _, a := range d.askings {
		if f.Matches(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *Driver) UpdateAsking(ctx context.Context, a *store.Asking) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var prev *store.Asking
	return d.mutate(func() error {
		cur, ok := d.askings[a.ID]
		if !ok {
			return store.ErrNotFound
		}
		prev = cur
		next := a.Clone()
		next.CreatedAt = cur.CreatedAt
		d.askings[a.ID] = next
		return nil
	}, func() { d.askings[a.ID] = prev })
}

func (d *Driver) DeleteAsking(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var prev *store.Asking
	return d.mutate(func() error {
		cur, ok := d.askings[id]
		if !ok {
			return store.ErrNotFound
		}
		prev = cur
		delete(d.askings, id)
		return nil
	}, func() { d.askings[id] = prev })
}

var (
	_ store.Driver      = (*Driver)(nil)
	_ store.AskingStore = (*Driver)(nil)
)
