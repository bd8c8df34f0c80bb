// Package vectorindex implements a persistent, append-mostly flat L2 vector
// store: a fixed-header file of float32 vectors, paired with a sidecar
// mapping each internal sequence to a chunk id (or a tombstone). It is the
// single source of truth shared between the ingestion worker (the writer)
// and the search process (a reader that hot-reloads on mtime change).
package vectorindex

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Result is one nearest-neighbor hit.
type Result struct {
	ChunkID  int64
	Distance float32
}

// Index is a single named vector index (one per scope — typically "default"
// or per-tenant), backed by a <dir>/<name>.vec + .sid file pair.
type Index struct {
	dir  string
	name string
	dim  int

	mu       sync.RWMutex
	vectors  [][]float32
	chunkIDs []int64 // tombstoned entries are tombstoneID

	diskMTime time.Time
	reloads   int // instrumentation counter for "did we actually reload"
}

// Open constructs an Index bound to <dir>/<name>.vec and .sid, loading any
// existing file pair (whose stored dimension replaces dim). A missing pair
// is not an error; the index starts empty with dimension dim, or, when dim
// is 0, with the dimension of the first appended vector.
func Open(dir, name string, dim int) (*Index, error) {
	idx := &Index{dir: dir, name: name, dim: dim}
	if err := idx.load(); err != nil && err != ErrIndexMissing {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) vecPath() string { return filepath.Join(idx.dir, idx.name+".vec") }
func (idx *Index) sidPath() string { return filepath.Join(idx.dir, idx.name+".sid") }

// Append adds vectors (validating dimension) paired with their chunk ids,
// returning the assigned internal sequences. Not persisted until Save.
func (idx *Index) Append(vectors [][]float32, chunkIDs []int64) ([]int64, error) {
	if len(vectors) != len(chunkIDs) {
		return nil, fmt.Errorf("vectorindex: vectors/chunkIDs length mismatch: %d vs %d", len(vectors), len(chunkIDs))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dim == 0 && len(vectors) > 0 {
		idx.dim = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != idx.dim {
			return nil, fmt.Errorf("%w: expected %d got %d", ErrDimensionMismatch, idx.dim, len(v))
		}
	}

	seqs := make([]int64, len(vectors))
	for i, v := range vectors {
		seq := int64(len(idx.vectors))
		cp := make([]float32, len(v))
		copy(cp, v)
		idx.vectors = append(idx.vectors, cp)
		idx.chunkIDs = append(idx.chunkIDs, chunkIDs[i])
		seqs[i] = seq
	}
	return seqs, nil
}

// Save writes the index and sidecar atomically and records the resulting
// on-disk modification time so Search won't immediately think its own write
// is a foreign change requiring reload.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.saveLocked()
}

func (idx *Index) saveLocked() error {
	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("vectorindex: mkdir: %w", err)
	}
	if err := writeVectors(idx.vecPath(), idx.dim, idx.vectors); err != nil {
		return fmt.Errorf("vectorindex: save vectors: %w", err)
	}
	if err := writeSidecar(idx.sidPath(), idx.chunkIDs); err != nil {
		return fmt.Errorf("vectorindex: save sidecar: %w", err)
	}
	if fi, err := os.Stat(idx.vecPath()); err == nil {
		idx.diskMTime = fi.ModTime()
	}
	return nil
}

// Load reads the index and sidecar from disk, replacing the in-memory copy.
func (idx *Index) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.load()
}

func (idx *Index) load() error {
	dim, vectors, err := readVectors(idx.vecPath())
	if err != nil {
		return err
	}
	chunkIDs, err := readSidecar(idx.sidPath())
	if err != nil {
		return err
	}
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("%w: sidecar length %d != vector count %d", ErrIndexCorrupt, len(chunkIDs), len(vectors))
	}
	idx.dim = dim
	idx.vectors = vectors
	idx.chunkIDs = chunkIDs
	if fi, err := os.Stat(idx.vecPath()); err == nil {
		idx.diskMTime = fi.ModTime()
	}
	idx.reloads++
	return nil
}

// Reloads returns how many times Load has actually read from disk, for
// tests asserting the hot-reload-only-on-mtime-advance behavior.
func (idx *Index) Reloads() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.reloads
}

// maybeReload re-stats the backing file and reloads only if its mtime has
// advanced past the recorded value. Missing files are not an error here —
// an index that has never been saved yet is legitimately empty.
func (idx *Index) maybeReload() error {
	fi, err := os.Stat(idx.vecPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("vectorindex: stat: %w", err)
	}
	idx.mu.RLock()
	stale := fi.ModTime().After(idx.diskMTime)
	idx.mu.RUnlock()
	if !stale {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	// Re-check under the write lock in case another goroutine already reloaded.
	if !fi.ModTime().After(idx.diskMTime) {
		return nil
	}
	return idx.load()
}

// Search checks the on-disk mtime, hot-reloading if it has advanced, then
// returns the top-k (chunk id, L2 distance) pairs, skipping tombstones.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if err := idx.maybeReload(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dim != 0 && len(query) != idx.dim {
		return nil, fmt.Errorf("%w: expected %d got %d", ErrDimensionMismatch, idx.dim, len(query))
	}
	if k <= 0 || len(idx.vectors) == 0 {
		return []Result{}, nil
	}

	all := make([]Result, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		if idx.chunkIDs[i] == tombstoneID {
			continue
		}
		all = append(all, Result{ChunkID: idx.chunkIDs[i], Distance: l2Distance(query, v)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })
	if k > len(all) {
		k = len(all)
	}
	return all[:k], nil
}

// Remove tombstones every sidecar entry mapped to one of the given chunk
// ids; tombstoned sequences are skipped by Search until a Compact.
func (idx *Index) Remove(chunkIDs []int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	targets := make(map[int64]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		targets[id] = struct{}{}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, id := range idx.chunkIDs {
		if _, ok := targets[id]; ok {
			idx.chunkIDs[i] = tombstoneID
		}
	}
	return nil
}

// TombstoneRatio reports the current fraction of tombstoned entries, used by
// the caller to decide when to trigger Compact.
func (idx *Index) TombstoneRatio() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.chunkIDs) == 0 {
		return 0
	}
	var tomb int
	for _, id := range idx.chunkIDs {
		if id == tombstoneID {
			tomb++
		}
	}
	return float64(tomb) / float64(len(idx.chunkIDs))
}

// Compact rebuilds the index without tombstoned entries and atomically
// replaces the on-disk pair. Surviving entries keep their relative order;
// their sequences are renumbered densely from zero.
func (idx *Index) Compact() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	newVectors := make([][]float32, 0, len(idx.vectors))
	newChunkIDs := make([]int64, 0, len(idx.chunkIDs))
	for i, id := range idx.chunkIDs {
		if id == tombstoneID {
			continue
		}
		newVectors = append(newVectors, idx.vectors[i])
		newChunkIDs = append(newChunkIDs, id)
	}
	idx.vectors = newVectors
	idx.chunkIDs = newChunkIDs
	return idx.saveLocked()
}

// Len returns the number of entries, including tombstoned ones.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
