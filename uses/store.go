// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/url"
	"os"
	"sync"

	"github.com/spf13/afero"
)

// Descriptor describes a cached file.
type Descriptor struct {
	Size int64  `json:"size"`
	Hex  string `json:"hex"`
}

// IndexFileName is the name of the index file.
const IndexFileName = "index.json"

// LocalStore is a content-addressed cache for remote workflows.
type LocalStore struct {
	index map[string]Descriptor

	fs afero.Fs

	mu sync.RWMutex
}

var _ Storage = (*LocalStore)(nil)

// NewLocalStore creates a new store on the given filesystem.
func NewLocalStore(fs afero.Fs) (*LocalStore, error) {
	index := make(map[string]Descriptor)

	_, err := fs.Stat(IndexFileName)
	if os.IsNotExist(err) {
		f, err := fs.Create(IndexFileName)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if _, err = f.WriteString("{}"); err != nil {
			return nil, err
		}
		return &LocalStore{
			fs:    fs,
			index: index,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	b, err := afero.ReadFile(fs, IndexFileName)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(b, &index); err != nil {
		return nil, err
	}

	return &LocalStore{
		fs:    fs,
		index: index,
	}, nil
}

// id normalizes a URI into its index key, query parameters like ?job= do not
// change the identity of the underlying file
func (s *LocalStore) id(uri *url.URL) string {
	clone := *uri
	clone.RawQuery = ""
	return clone.String()
}

// Fetch retrieves a workflow from the store
func (s *LocalStore) Fetch(_ context.Context, uri *url.URL) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	desc, ok := s.index[s.id(uri)]
	if !ok {
		return nil, fmt.Errorf("descriptor not found")
	}

	return s.fs.Open(desc.Hex)
}

// Store caches a workflow under the content hash of its bytes.
func (s *LocalStore) Store(r io.Reader, uri *url.URL) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasher := sha256.New()

	var buf bytes.Buffer

	mw := io.MultiWriter(hasher, &buf)

	if _, err := io.Copy(mw, r); err != nil {
		return err
	}

	hex := fmt.Sprintf("%x", hasher.Sum(nil))

	if err := afero.WriteFile(s.fs, hex, buf.Bytes(), 0644); err != nil {
		return err
	}

	s.index[s.id(uri)] = Descriptor{
		Size: int64(buf.Len()),
		Hex:  hex,
	}

	return s.syncIndex()
}

// Exists checks if a workflow exists in the store and is uncorrupted.
func (s *LocalStore) Exists(uri *url.URL) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	desc, ok := s.index[s.id(uri)]
	if !ok {
		return false, nil
	}

	fi, err := s.fs.Stat(desc.Hex)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("descriptor exists in index, but no corresponding file was found, possible cache corruption: %s", desc.Hex)
		}
		return false, err
	}

	if fi.Size() != desc.Size {
		return false, fmt.Errorf("size mismatch, expected %d, got %d", desc.Size, fi.Size())
	}

	hasher := sha256.New()

	f, err := s.fs.Open(desc.Hex)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if _, err := io.Copy(hasher, f); err != nil {
		return false, err
	}

	if fmt.Sprintf("%x", hasher.Sum(nil)) != desc.Hex {
		return false, errors.New("hash mismatch")
	}

	return true, nil
}

// List returns a copy of the index, keyed by normalized URI.
func (s *LocalStore) List() map[string]Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.index)
}

// GC removes files in the store that are no longer referenced by the index.
func (s *LocalStore) GC() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	referenced := make(map[string]bool, len(s.index))
	for _, desc := range s.index {
		referenced[desc.Hex] = true
	}

	entries, err := afero.ReadDir(s.fs, ".")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == IndexFileName || referenced[entry.Name()] {
			continue
		}
		if err := s.fs.Remove(entry.Name()); err != nil {
			return err
		}
	}

	return nil
}

func (s *LocalStore) syncIndex() error {
	b, err := json.Marshal(s.index)
	if err != nil {
		return err
	}

	return afero.WriteFile(s.fs, IndexFileName, b, 0644)
}
