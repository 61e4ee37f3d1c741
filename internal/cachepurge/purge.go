// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cachepurge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// CACHE CONTRACT
// =============================================================================

// Entry is one cached artifact.
type Entry struct {
	URL string
}

// Cache is an enumerable artifact cache.
type Cache interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	ListEntries(ctx context.Context, namespace string) ([]Entry, error)

	// DeleteEntry reports whether an entry was actually removed.
	DeleteEntry(ctx context.Context, namespace, url string) (bool, error)
}

// maxParallelNamespaces bounds concurrent namespace scans.
const maxParallelNamespaces = 4

// =============================================================================
// ERRORS
// =============================================================================

// RemovalKind categorizes purge outcomes that are not clean successes.
type RemovalKind int

const (
	// RemovalNotFound means no entry matched and nothing failed.
	RemovalNotFound RemovalKind = iota

	// RemovalAggregate means failures occurred and nothing was deleted.
	RemovalAggregate

	// RemovalPartial means some entries were deleted and some failed.
	RemovalPartial
)

// String returns a label for the kind.
func (k RemovalKind) String() string {
	switch k {
	case RemovalNotFound:
		return "not found"
	case RemovalAggregate:
		return "aggregate"
	case RemovalPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// RemovalError describes a purge that did not cleanly delete anything.
type RemovalError struct {
	Kind    RemovalKind
	ModelID string
	Deleted int

	// Cause holds every individual failure, combined with multierr.
	Cause error
}

func (e *RemovalError) Error() string {
	switch e.Kind {
	case RemovalNotFound:
		return "no cached artifacts found for " + e.ModelID
	case RemovalPartial:
		return fmt.Sprintf("removed %d cached artifacts for %s, some deletions failed: %v", e.Deleted, e.ModelID, e.Cause)
	default:
		return fmt.Sprintf("failed to remove cached artifacts for %s: %v", e.ModelID, e.Cause)
	}
}

func (e *RemovalError) Unwrap() error {
	return e.Cause
}

// Is matches RemovalErrors by kind so ErrNotFound works with errors.Is.
func (e *RemovalError) Is(target error) bool {
	t, ok := target.(*RemovalError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Errors returns the individual failures behind an Aggregate or Partial error.
func (e *RemovalError) Errors() []error {
	return multierr.Errors(e.Cause)
}

// ErrNotFound is matched by a NotFound RemovalError.
var ErrNotFound = &RemovalError{Kind: RemovalNotFound}

// IsNotFound checks if err is a NotFound removal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// =============================================================================
// PURGE
// =============================================================================

// Result summarizes a purge.
type Result struct {
	Matched int
	Deleted int
}

// Purge deletes every entry in every namespace whose URL contains modelID,
// compared case-insensitively. Namespaces are scanned concurrently.
//
// A nil error means at least one entry was deleted and nothing failed.
// Otherwise the error is a *RemovalError. A failure to list namespaces at
// all is returned as an Aggregate error.
func Purge(ctx context.Context, cache Cache, modelID string) (Result, error) {
	needle := strings.ToLower(modelID)

	namespaces, err := cache.ListNamespaces(ctx)
	if err != nil {
		return Result{}, &RemovalError{Kind: RemovalAggregate, ModelID: modelID, Cause: err}
	}

	var (
		mu     sync.Mutex
		result Result
		errs   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelNamespaces)

	for _, ns := range namespaces {
		g.Go(func() error {
			matched, deleted, nsErr := purgeNamespace(gctx, cache, ns, needle)

			mu.Lock()
			result.Matched += matched
			result.Deleted += deleted
			errs = multierr.Append(errs, nsErr)
			mu.Unlock()

			// Failures are collected, not propagated, so one bad
			// namespace does not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case errs == nil && result.Deleted == 0:
		return result, &RemovalError{Kind: RemovalNotFound, ModelID: modelID}
	case errs != nil && result.Deleted == 0:
		return result, &RemovalError{Kind: RemovalAggregate, ModelID: modelID, Cause: errs}
	case errs != nil:
		return result, &RemovalError{Kind: RemovalPartial, ModelID: modelID, Deleted: result.Deleted, Cause: errs}
	default:
		return result, nil
	}
}

func purgeNamespace(ctx context.Context, cache Cache, ns, needle string) (matched, deleted int, errs error) {
	entries, err := cache.ListEntries(ctx, ns)
	if err != nil {
		return 0, 0, fmt.Errorf("list %s: %w", ns, err)
	}

	for _, e := range entries {
		if !strings.Contains(strings.ToLower(e.URL), needle) {
			continue
		}
		matched++

		ok, err := cache.DeleteEntry(ctx, ns, e.URL)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", e.URL, err))
			continue
		}
		if ok {
			deleted++
		}
	}
	return matched, deleted, errs
}
