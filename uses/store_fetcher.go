// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"context"
	"fmt"
	"io"
	"net/url"
)

// StoreFetcher caches what Source fetches in Store, per the fetch policy
type StoreFetcher struct {
	Source Fetcher
	Store  Storage
	Policy FetchPolicy
}

// Fetch serves the reference from the store when the policy allows,
// fetching and storing it otherwise.
//
// Content always comes back out of the store so every read gets the same
// integrity checks.
func (f *StoreFetcher) Fetch(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	switch f.Policy {
	case FetchPolicyNever:
		return f.Store.Fetch(ctx, uri)
	case FetchPolicyIfNotPresent:
		exists, err := f.Store.Exists(uri)
		if err != nil {
			return nil, err
		}
		if exists {
			return f.Store.Fetch(ctx, uri)
		}
	case FetchPolicyAlways:
	default:
		return nil, fmt.Errorf("unsupported fetch policy: %s", f.Policy)
	}

	rc, err := f.Source.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if err := f.Store.Store(rc, uri); err != nil {
		return nil, err
	}

	return f.Store.Fetch(ctx, uri)
}
