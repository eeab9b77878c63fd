// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/package-url/packageurl-go"
	"github.com/spf13/afero"
)

// FetcherService hands out the right fetcher for a workflow reference.
//
// Fetchers are cached per reference so repeated lookups during a run reuse
// clients and their auth state.
type FetcherService struct {
	client       *http.Client
	fsys         afero.Fs
	fetcherCache map[string]Fetcher
	storage      Storage
	policy       FetchPolicy
	mu           sync.RWMutex
}

// FetcherServiceOption is a function that configures a FetcherService
type FetcherServiceOption func(*FetcherService)

// WithFS sets the filesystem local references are read from
func WithFS(fs afero.Fs) FetcherServiceOption {
	return func(s *FetcherService) {
		s.fsys = fs
	}
}

// WithClient sets the HTTP client remote fetchers are built on
func WithClient(client *http.Client) FetcherServiceOption {
	return func(s *FetcherService) {
		s.client = client
	}
}

// WithStorage sets the content store remote fetches are cached in
func WithStorage(store Storage) FetcherServiceOption {
	return func(s *FetcherService) {
		s.storage = store
	}
}

// WithFetchPolicy sets when remote content is fetched vs served from the store
func WithFetchPolicy(policy FetchPolicy) FetcherServiceOption {
	return func(s *FetcherService) {
		s.policy = policy
	}
}

// NewFetcherService creates a FetcherService.
//
// Without options it reads local files off the OS filesystem and talks to
// remotes through a retrying HTTP client, with no store.
func NewFetcherService(opts ...FetcherServiceOption) (*FetcherService, error) {
	svc := &FetcherService{
		fetcherCache: make(map[string]Fetcher),
		policy:       DefaultFetchPolicy,
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.fsys == nil {
		svc.fsys = afero.NewOsFs()
	}

	if svc.client == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.Logger = nil
		svc.client = retryClient.StandardClient()
	}

	if svc.policy == FetchPolicyNever && svc.storage == nil {
		return nil, fmt.Errorf("store is not initialized")
	}

	if err := svc.policy.Set(svc.policy.String()); err != nil {
		return nil, err
	}

	return svc, nil
}

// GetFetcher returns the fetcher serving the given workflow reference
func (s *FetcherService) GetFetcher(uri *url.URL) (Fetcher, error) {
	if uri == nil {
		return nil, fmt.Errorf("uri cannot be nil")
	}

	// never touch the network, everything comes out of the store
	if s.policy == FetchPolicyNever {
		return s.storage, nil
	}

	key := uri.String()

	s.mu.RLock()
	cached, ok := s.fetcherCache[key]
	s.mu.RUnlock()
	if ok && cached != nil {
		return cached, nil
	}

	fetcher, err := s.newFetcher(uri)
	if err != nil {
		return nil, err
	}

	// local files never go through the store
	if s.storage != nil && uri.Scheme != "file" {
		fetcher = &StoreFetcher{
			Source: fetcher,
			Store:  s.storage,
			Policy: s.policy,
		}
	}

	s.mu.Lock()
	s.fetcherCache[key] = fetcher
	s.mu.Unlock()

	return fetcher, nil
}

// newFetcher dispatches on the reference scheme
func (s *FetcherService) newFetcher(uri *url.URL) (Fetcher, error) {
	switch uri.Scheme {
	case "file":
		return NewLocalFetcher(s.fsys), nil
	case "http", "https":
		return NewHTTPFetcher(s.client), nil
	case "pkg":
		return s.newForgeFetcher(uri)
	case "oci":
		q := uri.Query()
		client, err := NewOCIClient(
			s.client,
			q.Get(OCIQueryParamInsecureSkipTLSVerify) == "true",
			q.Get(OCIQueryParamPlainHTTP) == "true",
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported scheme: %q", uri.Scheme)
	}
}

// newForgeFetcher builds a GitHub or GitLab client from a purl's qualifiers
func (s *FetcherService) newForgeFetcher(uri *url.URL) (Fetcher, error) {
	pURL, err := packageurl.FromString(uri.String())
	if err != nil {
		return nil, err
	}

	qualifiers := pURL.Qualifiers.Map()
	base := qualifiers[QualifierBaseURL]
	tokenEnv := qualifiers[QualifierTokenFromEnv]

	switch pURL.Type {
	case packageurl.TypeGithub:
		client, err := NewGitHubClient(s.client, base, tokenEnv)
		if err != nil {
			return nil, err
		}
		return client, nil
	case packageurl.TypeGitlab:
		client, err := NewGitLabClient(s.client, base, tokenEnv)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported package type: %q", pURL.Type)
	}
}
