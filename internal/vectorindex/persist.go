// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vectorindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Artifact names written by Save under the index directory.
const (
	VectorFile   = "index.vec"
	MetadataFile = "index.yaml"
)

const (
	vecMagic   = "PQVI"
	vecVersion = 1
	headerSize = 16
)

// indexMetadata is the YAML lookup file: everything but the vectors,
// in the same order as the rows of the vector file.
type indexMetadata struct {
	Version int     `yaml:"version"`
	Dim     int     `yaml:"dim"`
	Entries []Entry `yaml:"entries"`
}

// Save writes the index to dir as two artifacts: a little-endian float32
// matrix (index.vec) and a YAML lookup file (index.yaml). Each file is
// written to a temp file and renamed into place.
func (m *Memory) Save(dir string) error {
	m.mu.RLock()
	dim := m.dim
	entries := m.entries
	m.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	err := writeAtomic(filepath.Join(dir, VectorFile), func(w io.Writer) error {
		return writeVectors(w, dim, entries)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", VectorFile, err)
	}

	meta := indexMetadata{Version: vecVersion, Dim: dim, Entries: entries}
	err = writeAtomic(filepath.Join(dir, MetadataFile), func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(&meta); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", MetadataFile, err)
	}
	return nil
}

// Load reads an index written by Save. Missing files surface as
// os.ErrNotExist; inconsistent files as ErrCorrupt.
func Load(dir string) (*Memory, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", MetadataFile, err)
	}
	var meta indexMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %v: %w", MetadataFile, err, ErrCorrupt)
	}
	if meta.Version != vecVersion {
		return nil, fmt.Errorf("unsupported index version %d: %w", meta.Version, ErrCorrupt)
	}

	f, err := os.Open(filepath.Join(dir, VectorFile))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", VectorFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", VectorFile, err)
	}

	dim, vectors, err := readVectors(bufio.NewReader(f), info.Size(), meta.Dim, len(meta.Entries))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", VectorFile, err)
	}

	m := NewMemory(dim)
	m.entries = meta.Entries
	m.norms = make([]float64, len(vectors))
	for i := range m.entries {
		m.entries[i].Vector = vectors[i]
		m.norms[i] = norm(vectors[i])
	}
	return m, nil
}

// Remove deletes the index artifacts in dir. Missing files are not an error.
func Remove(dir string) error {
	for _, name := range []string{VectorFile, MetadataFile} {
		err := os.Remove(filepath.Join(dir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	return nil
}

func writeVectors(w io.Writer, dim int, entries []Entry) error {
	bw := bufio.NewWriter(w)
	header := make([]byte, headerSize)
	copy(header, vecMagic)
	binary.LittleEndian.PutUint32(header[4:], vecVersion)
	binary.LittleEndian.PutUint32(header[8:], uint32(dim))
	binary.LittleEndian.PutUint32(header[12:], uint32(len(entries)))
	if _, err := bw.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, e := range entries {
		for _, x := range e.Vector {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// readVectors reads a vector file of size bytes. The header must agree
// with the dimension and row count listed in the metadata before any rows
// are allocated.
func readVectors(r io.Reader, size int64, wantDim, wantCount int) (int, [][]float32, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("reading header: %v: %w", err, ErrCorrupt)
	}
	if string(header[:4]) != vecMagic {
		return 0, nil, fmt.Errorf("bad magic %q: %w", header[:4], ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != vecVersion {
		return 0, nil, fmt.Errorf("unsupported vector file version %d: %w", v, ErrCorrupt)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:]))
	count := int(binary.LittleEndian.Uint32(header[12:]))
	if dim != wantDim || count != wantCount {
		return 0, nil, fmt.Errorf("header lists %d vectors of %d dimensions, %s lists %d entries of %d: %w",
			count, dim, MetadataFile, wantCount, wantDim, ErrCorrupt)
	}
	if want := int64(headerSize) + 4*int64(dim)*int64(count); size != want {
		return 0, nil, fmt.Errorf("file is %d bytes, header implies %d: %w", size, want, ErrCorrupt)
	}

	vectors := make([][]float32, count)
	row := make([]byte, 4*dim)
	for i := range vectors {
		if _, err := io.ReadFull(r, row); err != nil {
			return 0, nil, fmt.Errorf("reading vector %d: %v: %w", i, err, ErrCorrupt)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[4*j:]))
		}
		vectors[i] = v
	}
	return dim, vectors, nil
}

// writeAtomic writes path through a temp file in the same directory.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := write(tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
