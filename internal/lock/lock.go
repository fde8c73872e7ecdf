// Package lock provides advisory file locking. condacore takes it in
// two places: an exclusive lock around each prefix transaction
// (transaction.Execute) and the environments registry's locks (shared
// for readers, exclusive for writers, prefix/environments.go). The
// package cache takes no lock, neither while extracting nor while
// reading an extracted package. The teacher vendors
// github.com/theckman/go-flock but never wires it up (no file in the
// golang-dep snapshot imports it) and that vendored snapshot predates
// shared-lock support; condacore wires in github.com/gofrs/flock, the
// actively maintained successor to theckman's library, for its shared
// (TryRLock) locks.
package lock

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/2lambda123/conda-conda/condaerrors"
)

// Lock is an advisory file lock backed by a sidecar ".lock" file next to
// the resource it protects. Re-acquiring through the same Lock value
// succeeds while it is held; two Lock values for the same path each
// open their own handle and contend with each other.
type Lock struct {
	path string
	fl   *flock.Flock
}

// New returns a Lock for the given resource path. The lock file itself
// is path+".lock"; it is created on first acquisition and never removed,
// mirroring flock's own recommendation to leave lock files in place.
func New(path string) *Lock {
	return &Lock{path: path, fl: flock.New(path + ".lock")}
}

// AcquireExclusive blocks until the exclusive lock is held, the context
// is cancelled, or deadline elapses, polling at the given interval. Used
// by the transaction engine around an entire prefix transaction, and by
// writers of the environments registry.
func (l *Lock) AcquireExclusive(ctx context.Context, pollEvery time.Duration) error {
	for {
		locked, err := l.fl.TryLock()
		if err != nil {
			return errors.Wrapf(err, "acquiring exclusive lock on %s", l.path)
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			return &condaerrors.LockTimeout{Resource: l.path}
		case <-time.After(pollEvery):
		}
	}
}

// AcquireShared blocks until a shared (reader) lock is held. Used by
// readers of the environments registry (prefix/environments.go).
func (l *Lock) AcquireShared(ctx context.Context, pollEvery time.Duration) error {
	for {
		locked, err := l.fl.TryRLock()
		if err != nil {
			return errors.Wrapf(err, "acquiring shared lock on %s", l.path)
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			return &condaerrors.LockTimeout{Resource: l.path}
		case <-time.After(pollEvery):
		}
	}
}

// Release releases whichever lock mode is currently held.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
