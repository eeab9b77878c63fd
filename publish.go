// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"

	"github.com/rehearse-dev/rehearse/config"
	"github.com/rehearse-dev/rehearse/uses"
)

// MediaTypeWorkflow is the mediatype for all rehearse workflows
const MediaTypeWorkflow = "application/vnd.rehearse.workflow.v0+yaml"

// Publish packs the entrypoint workflows and every workflow they reference
// into a single OCI artifact and pushes it to dst.
//
// Remote references are snapshotted so the artifact is self-contained, local
// references are read relative to the current directory. Each workflow
// becomes one layer titled with its reference.
func Publish(ctx context.Context, cfg *config.Config, dst *remote.Repository, entrypoints []string) error {
	logger := log.FromContext(ctx)

	if len(entrypoints) == 0 {
		return fmt.Errorf("need at least one entrypoint")
	}

	tmp, err := os.MkdirTemp("", "rehearse-publish-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	store, err := uses.NewLocalStore(afero.NewBasePathFs(afero.NewOsFs(), tmp))
	if err != nil {
		return err
	}

	svc, err := uses.NewFetcherService(
		uses.WithStorage(store),
		uses.WithFetchPolicy(uses.FetchPolicyAlways),
	)
	if err != nil {
		return err
	}

	localPaths, err := snapshotEntrypoints(ctx, svc, cfg, entrypoints)
	if err != nil {
		return err
	}

	// entries the walk no longer references have no business in the artifact
	if err := store.GC(); err != nil {
		return err
	}

	ociStore, err := file.New(tmp)
	if err != nil {
		return err
	}
	defer ociStore.Close()

	layers := make([]ocispec.Descriptor, 0, len(localPaths))

	for name, storeDesc := range store.List() {
		logger.Debug("staging", "entry", name)

		desc, err := ociStore.Add(ctx, name, MediaTypeWorkflow, storeDesc.Hex)
		if err != nil {
			return err
		}
		layers = append(layers, desc)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	for _, localPath := range localPaths {
		abs, err := localAbsPath(cwd, localPath)
		if err != nil {
			return err
		}

		logger.Debug("staging", "entry", localPath)

		desc, err := ociStore.Add(ctx, localPath, MediaTypeWorkflow, abs)
		if err != nil {
			return err
		}
		layers = append(layers, desc)
	}

	root, err := oras.PackManifest(ctx, ociStore, oras.PackManifestVersion1_1, MediaTypeWorkflow, oras.PackManifestOptions{
		Layers: layers,
	})
	if err != nil {
		return err
	}

	if err := ociStore.Tag(ctx, root, root.Digest.String()); err != nil {
		return err
	}

	desc, err := oras.Copy(ctx, ociStore, root.Digest.String(), dst, dst.Reference.Reference, oras.DefaultCopyOptions)
	if err != nil {
		return err
	}
	logger.Info("published", "digest", desc.Digest, "to", dst.Reference.Reference)

	return nil
}

// snapshotEntrypoints walks each entrypoint's reference graph, pulling
// remote workflows into the fetcher's store, and returns the deduplicated
// local references the walk touched
func snapshotEntrypoints(ctx context.Context, svc *uses.FetcherService, cfg *config.Config, entrypoints []string) ([]string, error) {
	fsys := afero.NewOsFs()
	localPaths := []string{}

	for _, point := range entrypoints {
		src, err := uses.ResolveRelative(nil, point, cfg.Aliases)
		if err != nil {
			return nil, err
		}

		wf, err := Fetch(ctx, svc, src)
		if err != nil {
			return nil, err
		}

		if err := FetchAll(ctx, svc, wf, src); err != nil {
			return nil, err
		}

		paths, err := ListAllLocal(ctx, src, fsys)
		if err != nil {
			return nil, err
		}
		localPaths = append(localPaths, paths...)
	}

	slices.Sort(localPaths)
	return slices.Compact(localPaths), nil
}

// localAbsPath turns a file reference into an absolute path under cwd,
// mirroring how the local fetcher addresses files
func localAbsPath(cwd, ref string) (string, error) {
	uri, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	uri.Scheme = ""
	uri.RawQuery = ""

	return filepath.Join(cwd, uri.String()), nil
}
