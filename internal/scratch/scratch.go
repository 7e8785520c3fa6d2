package scratch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Meesho/BharatMLStack/predict-server/pkg/metric"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	dirPrefix      = "req-"
	dataFileName   = "data.csv"
	outputFileName = "predictions.csv"
)

// Table is the tabular payload handed to the predictor through the scratch directory.
type Table interface {
	Columns() []string
	Records() [][]string
}

// Manager owns a root directory under which every request gets its own scratch directory.
type Manager struct {
	root     string
	inFlight atomic.Int64
}

// Handle is exclusively owned by one request until released.
type Handle struct {
	ID         string
	Dir        string
	DataPath   string
	OutputPath string

	manager  *Manager
	released atomic.Bool
}

// NewManager makes root absolute so handle paths stay valid from the
// predictor's working directory.
func NewManager(root string) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("scratch root is empty")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch root: %w", err)
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch root %s: %w", root, err)
	}
	return &Manager{root: root}, nil
}

func (m *Manager) Root() string {
	return m.root
}

// InFlight is the number of handles acquired and not yet released.
func (m *Manager) InFlight() int64 {
	return m.inFlight.Load()
}

// Acquire creates a fresh, uniquely named directory. Mkdir fails on an existing
// name, so two requests can never end up sharing one.
func (m *Manager) Acquire() (*Handle, error) {
	id := uuid.New().String()
	dir := filepath.Join(m.root, dirPrefix+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	m.inFlight.Add(1)
	return &Handle{
		ID:         id,
		Dir:        dir,
		DataPath:   filepath.Join(dir, dataFileName),
		OutputPath: filepath.Join(dir, outputFileName),
		manager:    m,
	}, nil
}

// Write serializes table into h.DataPath as CSV: a header row, then one row per record.
func (m *Manager) Write(h *Handle, table Table) (err error) {
	if h.released.Load() {
		return fmt.Errorf("scratch %s already released", h.ID)
	}
	f, err := os.OpenFile(h.DataPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create scratch data file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close scratch data file: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns()); err != nil {
		return fmt.Errorf("write scratch header: %w", err)
	}
	if err := w.WriteAll(table.Records()); err != nil {
		return fmt.Errorf("write scratch records: %w", err)
	}
	return nil
}

// Release removes the handle's directory. Only the first call has an effect.
func (m *Manager) Release(h *Handle) error {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return nil
	}
	m.inFlight.Add(-1)
	if err := os.RemoveAll(h.Dir); err != nil {
		return fmt.Errorf("remove scratch dir %s: %w", h.Dir, err)
	}
	return nil
}

// With acquires a handle, runs fn and releases the handle on every exit path, panics included.
// A release failure is logged and counted but does not replace fn's outcome.
func (m *Manager) With(fn func(h *Handle) error) error {
	h, err := m.Acquire()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := m.Release(h); rerr != nil {
			log.Error().Err(rerr).Str("scratch_id", h.ID).Msg("failed to release scratch resource")
			metric.Incr(metric.ScratchReleaseErrorCount, nil)
		}
	}()
	return fn(h)
}

// Sweep removes scratch directories older than olderThan, left behind by a previous process.
func (m *Manager) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("read scratch root: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, e.Name())); err != nil {
			log.Warn().Err(err).Str("dir", e.Name()).Msg("failed to sweep stale scratch dir")
			continue
		}
		removed++
	}
	return removed, nil
}
