// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// OCIQueryParamInsecureSkipTLSVerify disables TLS certificate verification when set to "true"
const OCIQueryParamInsecureSkipTLSVerify = "insecure-skip-tls-verify"

// OCIQueryParamPlainHTTP uses plain HTTP to talk to the registry when set to "true"
const OCIQueryParamPlainHTTP = "plain-http"

// OCIClient pulls published workflow artifacts out of OCI registries
type OCIClient struct {
	client    remote.Client
	plainHTTP bool
}

// NewOCIClient creates an ORAS client backed by the local Docker credential store
func NewOCIClient(baseClient *http.Client, insecureSkipTLSVerify, plainHTTP bool) (*OCIClient, error) {
	credStore, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		return nil, err
	}

	client := &auth.Client{
		Client:     ociHTTPClient(baseClient, insecureSkipTLSVerify),
		Cache:      auth.NewCache(),
		Credential: credentials.Credential(credStore),
	}
	client.SetUserAgent("rehearse")

	return &OCIClient{client: client, plainHTTP: plainHTTP}, nil
}

// ociHTTPClient derives the registry transport from baseClient, honoring its
// timeout and any custom transport it already carries
func ociHTTPClient(baseClient *http.Client, insecureSkipTLSVerify bool) *http.Client {
	httpClient := &http.Client{Timeout: baseClient.Timeout}

	if transport, ok := baseClient.Transport.(*http.Transport); ok && transport != nil {
		clone := transport.Clone()
		if clone.TLSClientConfig == nil {
			clone.TLSClientConfig = &tls.Config{}
		}
		clone.TLSClientConfig.InsecureSkipVerify = insecureSkipTLSVerify
		httpClient.Transport = clone
		return httpClient
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig.InsecureSkipVerify = insecureSkipTLSVerify
	httpClient.Transport = retry.NewTransport(transport)
	return httpClient
}

// Fetch pulls a single workflow layer out of a published artifact.
//
// The URI fragment names the layer to pull, defaulting to the artifact's
// ci.yaml entrypoint.
func (c *OCIClient) Fetch(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	if uri == nil {
		return nil, errors.New("uri is nil")
	}

	if uri.Scheme != "oci" {
		return nil, errors.New(`scheme is not "oci"`)
	}

	clone := *uri
	clone.Scheme = ""
	clone.RawQuery = ""
	layerName := clone.Fragment
	clone.Fragment = ""

	layerName, err := url.QueryUnescape(layerName)
	if err != nil {
		return nil, err
	}
	if layerName == "" {
		layerName = "file:" + DefaultFileName
	}

	repo, err := remote.NewRepository(clone.String())
	if err != nil {
		return nil, err
	}
	repo.Client = c.client
	repo.PlainHTTP = c.plainHTTP

	manifest, err := fetchWorkflowManifest(ctx, repo, clone.String())
	if err != nil {
		return nil, err
	}

	for _, desc := range manifest.Layers {
		if desc.Annotations[ocispec.AnnotationTitle] == layerName {
			return repo.Fetch(ctx, desc)
		}
	}

	return nil, fmt.Errorf("%s: not found", layerName)
}

// fetchWorkflowManifest resolves the tagged reference and decodes its image manifest
func fetchWorkflowManifest(ctx context.Context, repo *remote.Repository, ref string) (ocispec.Manifest, error) {
	desc, rc, err := repo.FetchReference(ctx, ref)
	if err != nil {
		return ocispec.Manifest{}, err
	}
	defer rc.Close()

	if desc.MediaType != ocispec.MediaTypeImageManifest {
		return ocispec.Manifest{}, fmt.Errorf("unexpected mediatype, want %q got %q", ocispec.MediaTypeImageManifest, desc.MediaType)
	}

	var manifest ocispec.Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return ocispec.Manifest{}, err
	}

	return manifest, nil
}
