// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package builtins

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// DefaultArtifactDir is where collected artifacts land when no destination is given
const DefaultArtifactDir = ".rehearse/artifacts"

// artifact copies files produced by a job into a local artifact directory,
// the local stand-in for a CI upload-artifact step
type artifact struct {
	Name  string   `json:"name"           jsonschema:"description=Name of the artifact"`
	Paths []string `json:"paths"          jsonschema:"description=Files or globs to collect"`
	Dir   string   `json:"dir,omitempty"  jsonschema:"description=Destination directory for collected artifacts"`

	fsys afero.Fs
}

// Execute the builtin
func (b *artifact) Execute(ctx context.Context) (map[string]any, error) {
	logger := log.FromContext(ctx)

	if b.Name == "" {
		return nil, fmt.Errorf("artifact name cannot be empty")
	}
	if len(b.Paths) == 0 {
		return nil, fmt.Errorf("artifact %q has no paths", b.Name)
	}

	if b.fsys == nil {
		b.fsys = afero.NewOsFs()
	}

	dir := b.Dir
	if dir == "" {
		dir = DefaultArtifactDir
	}
	dest := filepath.Join(dir, b.Name)

	if err := b.fsys.MkdirAll(dest, 0755); err != nil {
		return nil, err
	}

	collected := []string{}
	for _, pattern := range b.Paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		matches, err := afero.Glob(b.fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}

		for _, match := range matches {
			fi, err := b.fsys.Stat(match)
			if err != nil {
				return nil, err
			}
			if fi.IsDir() {
				continue
			}

			data, err := afero.ReadFile(b.fsys, match)
			if err != nil {
				return nil, err
			}

			target := filepath.Join(dest, filepath.Base(match))
			if err := afero.WriteFile(b.fsys, target, data, fi.Mode()); err != nil {
				return nil, err
			}

			logger.Debug("collected", "file", match, "as", target)
			collected = append(collected, target)
		}
	}

	if len(collected) == 0 {
		return nil, fmt.Errorf("artifact %q matched no files", b.Name)
	}

	logger.Printf("collected %d file(s) into %s", len(collected), dest)

	return map[string]any{"dir": dest, "count": len(collected)}, nil
}
