// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalFetcher reads workflow files straight off a filesystem
type LocalFetcher struct {
	fsys afero.Fs
}

// NewLocalFetcher creates a fetcher over the given filesystem
func NewLocalFetcher(fsys afero.Fs) *LocalFetcher {
	return &LocalFetcher{fsys: fsys}
}

// Fetch opens the workflow file the URI points at.
//
// Query parameters address content within the file (eg. ?job=) and play no
// part in locating it.
func (f *LocalFetcher) Fetch(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	if uri == nil {
		return nil, errors.New("uri is nil")
	}

	if uri.Scheme != "" && uri.Scheme != "file" {
		return nil, errors.New(`scheme is not "file" or empty`)
	}

	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	clone := *uri
	clone.Scheme = ""
	clone.RawQuery = ""
	name := filepath.Clean(clone.String())

	info, err := f.fsys.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read %s: is a directory", name)
	}

	return f.fsys.Open(name)
}
