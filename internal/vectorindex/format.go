package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// magic identifies a vector index file; version allows a future format
// change to be detected instead of silently misread.
const (
	magic          uint32 = 0x44564958 // "DVIX"
	formatVersion  uint32 = 1
	tombstoneID    int64  = -1
	headerByteSize        = 4 + 4 + 4 + 4 // magic, version, dim, count (all uint32)
)

// header is the fixed on-disk prefix of a .vec file.
type header struct {
	Magic   uint32
	Version uint32
	Dim     uint32
	Count   uint32
}

func writeVectors(path string, dim int, vectors [][]float32) error {
	return atomicWrite(path, func(w io.Writer) error {
		h := header{Magic: magic, Version: formatVersion, Dim: uint32(dim), Count: uint32(len(vectors))}
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, v := range vectors {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
		return nil
	})
}

func readVectors(path string) (dim int, vectors [][]float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, ErrIndexMissing
		}
		return 0, nil, fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return 0, nil, fmt.Errorf("%w: read header: %v", ErrIndexCorrupt, err)
	}
	if h.Magic != magic {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrIndexCorrupt)
	}
	if h.Version != formatVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrIndexCorrupt, h.Version)
	}

	vectors = make([][]float32, h.Count)
	for i := range vectors {
		v := make([]float32, h.Dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return 0, nil, fmt.Errorf("%w: read vector %d: %v", ErrIndexCorrupt, i, err)
		}
		vectors[i] = v
	}
	return int(h.Dim), vectors, nil
}

func writeSidecar(path string, chunkIDs []int64) error {
	return atomicWrite(path, func(w io.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(chunkIDs))); err != nil {
			return fmt.Errorf("write sidecar length: %w", err)
		}
		for _, id := range chunkIDs {
			if err := binary.Write(w, binary.LittleEndian, id); err != nil {
				return fmt.Errorf("write sidecar entry: %w", err)
			}
		}
		return nil
	})
}

func readSidecar(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIndexMissing
		}
		return nil, fmt.Errorf("open sidecar file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: read sidecar length: %v", ErrIndexCorrupt, err)
	}
	out := make([]int64, n)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return nil, fmt.Errorf("%w: read sidecar entry %d: %v", ErrIndexCorrupt, i, err)
		}
	}
	return out, nil
}

// atomicWrite writes to path by writing to a temp file in the same
// directory, fsyncing it, then renaming over the destination — the rename
// is atomic on the same filesystem, so a concurrent reader never observes a
// partially written file.
func atomicWrite(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
