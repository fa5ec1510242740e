// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package index

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
)

var fileMagic = [8]byte{'A', 'T', 'L', 'X', 'I', 'D', 'X', '1'}

// maxLoadVectors guards against allocating absurd sizes from a corrupt header.
const maxLoadVectors = 1 << 26

// ErrChecksumMismatch is returned by Load when the file trailer does not match its contents.
var ErrChecksumMismatch = errors.New("index checksum mismatch")

type fileHeader struct {
	Magic  [8]byte
	Metric uint8
	Dim    uint32
	Count  uint64
}

// Save writes the index to w.
func (x *FlatIndex) Save(w io.Writer) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	h := sha256.New()
	bw := bufio.NewWriter(io.MultiWriter(w, h))

	hdr := fileHeader{Magic: fileMagic, Metric: uint8(x.metric), Dim: uint32(x.dim), Count: uint64(len(x.ids))} //nolint:gosec // dimension and count are bounded by memory
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, x.ids); err != nil {
		return fmt.Errorf("write ids: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, x.data); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}

	if _, err := w.Write(h.Sum(nil)); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

// SaveFile writes the index to path atomically via a temporary file.
func (x *FlatIndex) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	if err := x.Save(f); err != nil {
		_ = f.Close()      //nolint:errcheck // already failing
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close index file: %w", err)
	}

	return os.Rename(tmp, path)
}

// Load reads an index previously written by Save.
func Load(r io.Reader) (*FlatIndex, error) {
	h := sha256.New()
	br := io.TeeReader(bufio.NewReader(r), h)

	var hdr fileHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if hdr.Magic != fileMagic {
		return nil, fmt.Errorf("not an index file: bad magic %q", hdr.Magic[:])
	}
	if hdr.Count > maxLoadVectors {
		return nil, fmt.Errorf("index too large: %d vectors", hdr.Count)
	}

	x, err := New(int(hdr.Dim), Metric(hdr.Metric))
	if err != nil {
		return nil, err
	}

	n := int(hdr.Count) //nolint:gosec // bounded by maxLoadVectors
	x.ids = make([]int64, n)
	if err := binary.Read(br, binary.LittleEndian, x.ids); err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	x.data = make([]float32, n*x.dim)
	if err := binary.Read(br, binary.LittleEndian, x.data); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}

	if err := verifyTrailer(br, h); err != nil {
		return nil, err
	}

	for i, id := range x.ids {
		if _, dup := x.pos[id]; dup {
			return nil, fmt.Errorf("duplicate id %d in index file", id)
		}
		x.pos[id] = i
	}
	return x, nil
}

// verifyTrailer compares the stored checksum against the running hash.
func verifyTrailer(r io.Reader, h hash.Hash) error {
	want := h.Sum(nil)
	got := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("read checksum: %w", err)
	}
	if !bytes.Equal(got, want) {
		return ErrChecksumMismatch
	}
	return nil
}

// LoadFile reads an index from path.
func LoadFile(path string) (*FlatIndex, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	x, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return x, nil
}
