package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/helixir/literature-harvester/internal/domain"
)

// Checkpoint is the durable progress of a harvest: per-source offsets,
// every fingerprint seen so far and cumulative counters.
type Checkpoint struct {
	SourceOffsets         map[string]int `json:"sourceOffsets"`
	ProcessedFingerprints []string       `json:"processedFingerprints"`
	TotalCollected        int            `json:"totalCollected"`
	TotalImported         int            `json:"totalImported"`
	LastRun               time.Time      `json:"lastRun"`
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		SourceOffsets:         map[string]int{},
		ProcessedFingerprints: []string{},
	}
}

// Offset returns the stored offset of source, or 0.
func (c *Checkpoint) Offset(source domain.SourceType) int {
	return c.SourceOffsets[string(source)]
}

// Advance moves the offset of source forward by n.
func (c *Checkpoint) Advance(source domain.SourceType, n int) {
	if n <= 0 {
		return
	}
	c.SourceOffsets[string(source)] += n
}

// Offsets returns a copy of the per-source offsets.
func (c *Checkpoint) Offsets() map[string]int {
	return maps.Clone(c.SourceOffsets)
}

// Validate checks the invariants of a loaded checkpoint.
func (c *Checkpoint) Validate() error {
	for source, offset := range c.SourceOffsets {
		if offset < 0 {
			return fmt.Errorf("negative offset %d for source %s", offset, source)
		}
	}
	if c.TotalCollected < 0 || c.TotalImported < 0 {
		return errors.New("negative totals")
	}
	if c.TotalImported > c.TotalCollected {
		return fmt.Errorf("totalImported %d exceeds totalCollected %d", c.TotalImported, c.TotalCollected)
	}
	return nil
}

// normalize fills nil collections and sorts the fingerprint set.
func (c *Checkpoint) normalize() {
	if c.SourceOffsets == nil {
		c.SourceOffsets = map[string]int{}
	}
	if c.ProcessedFingerprints == nil {
		c.ProcessedFingerprints = []string{}
	}
	slices.Sort(c.ProcessedFingerprints)
	c.ProcessedFingerprints = slices.Compact(c.ProcessedFingerprints)
}

// CheckpointStore loads and persists checkpoints.
type CheckpointStore interface {
	// Load returns the stored checkpoint, or a fresh one if none exists.
	Load(ctx context.Context) (*Checkpoint, error)
	// Save replaces the stored checkpoint.
	Save(ctx context.Context, cp *Checkpoint) error
	// Location names where the checkpoint lives, for errors and logs.
	Location() string
}

// FileCheckpointStore keeps the checkpoint in a JSON file. Saves write a
// temp file in the same directory and rename it over the target.
type FileCheckpointStore struct {
	path string
}

var _ CheckpointStore = (*FileCheckpointStore)(nil)

// NewFileCheckpointStore creates a store for path.
func NewFileCheckpointStore(path string) *FileCheckpointStore {
	return &FileCheckpointStore{path: path}
}

// Location returns the checkpoint file path.
func (s *FileCheckpointStore) Location() string {
	return s.path
}

// Load reads the checkpoint file. A missing file yields a fresh checkpoint.
func (s *FileCheckpointStore) Load(_ context.Context) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}

	cp := NewCheckpoint()
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	cp.normalize()
	if err := cp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", s.path, err)
	}
	return cp, nil
}

// Save atomically replaces the checkpoint file.
func (s *FileCheckpointStore) Save(_ context.Context, cp *Checkpoint) error {
	cp.normalize()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Reset deletes the checkpoint file. A missing file is not an error.
func (s *FileCheckpointStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove checkpoint %s: %w", s.path, err)
	}
	return nil
}
