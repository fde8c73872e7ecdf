// Package condaerrors defines the typed error kinds that cross subsystem
// boundaries in condacore: parse failures, fetch failures, resolver
// failures, and transaction failures. Callers wrap these with
// github.com/pkg/errors the same way the teacher wraps stdlib errors, so
// errors.Cause/errors.As can still recover the typed kind from a long
// wrap chain.
package condaerrors

import (
	"fmt"
)

// InvalidMatchSpec is raised by MatchSpec.Parse on malformed input.
type InvalidMatchSpec struct {
	Spec   string
	Reason string
}

func (e *InvalidMatchSpec) Error() string {
	return fmt.Sprintf("invalid match spec %q: %s", e.Spec, e.Reason)
}

// IncompatibleSpecs is raised by MatchSpec.Merge when two specs for the
// same name are provably disjoint.
type IncompatibleSpecs struct {
	A, B string
}

func (e *IncompatibleSpecs) Error() string {
	return fmt.Sprintf("incompatible match specs: %q and %q", e.A, e.B)
}

// ChannelNotAvailable is raised by the repodata fetcher when a channel
// subdir returns 404 and allow_non_channel_urls is not set.
type ChannelNotAvailable struct {
	Channel string
	Subdir  string
}

func (e *ChannelNotAvailable) Error() string {
	return fmt.Sprintf("channel %s is not available for subdir %s", e.Channel, e.Subdir)
}

// HTTPError wraps a non-2xx/non-304/non-404 response from a repodata or
// package fetch.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// RepodataIsEmpty is not really an error: it signals that a 404 on a
// noarch subdir (or any subdir under allow_non_channel_urls) should be
// treated as an empty, successful repodata response.
type RepodataIsEmpty struct {
	Channel string
	Subdir  string
}

func (e *RepodataIsEmpty) Error() string {
	return fmt.Sprintf("repodata for %s/%s is empty", e.Channel, e.Subdir)
}

// ChecksumMismatch is raised when a downloaded or extracted package's
// digest does not match the repodata-declared md5/sha256.
type ChecksumMismatch struct {
	Package  string
	Expected string
	Actual   string
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Package, e.Expected, e.Actual)
}

// UnsatisfiableError is raised by the resolver when no solution
// satisfies every hard constraint. Subset holds the minimal unsatisfiable
// subset of the top-level specs that the resolver was able to isolate.
type UnsatisfiableError struct {
	Specs  []string
	Subset []string
}

func (e *UnsatisfiableError) Error() string {
	if len(e.Subset) == 0 {
		return fmt.Sprintf("could not find a solution satisfying specs: %v", e.Specs)
	}
	return fmt.Sprintf("could not find a solution: conflicting specs %v", e.Subset)
}

// DiskSpaceError is raised by the transaction engine when the target
// filesystem lacks room for the planned FETCH/EXTRACT/LINK steps.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %d bytes, have %d", e.Path, e.Required, e.Available)
}

// PermissionDenied is raised by the transaction engine when a file-level
// operation cannot proceed due to filesystem permissions.
type PermissionDenied struct {
	Path string
}

func (e *PermissionDenied) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Path)
}

// LockTimeout is raised when an advisory lock (prefix or package cache
// file) cannot be acquired before its deadline.
type LockTimeout struct {
	Resource string
}

func (e *LockTimeout) Error() string {
	return fmt.Sprintf("timed out acquiring lock on %s", e.Resource)
}

// DryRunExit signals that a transaction completed planning in dry-run
// mode and deliberately performed no side effects. It is not an error in
// the usual sense; callers that see it via errors.As should treat it as
// a clean, zero-exit-code completion (spec.md's exit code table).
type DryRunExit struct {
	PlanSummary string
}

func (e *DryRunExit) Error() string {
	return fmt.Sprintf("dry run: %s", e.PlanSummary)
}
