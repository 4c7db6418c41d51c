// Package vcs defines the version-control collaborator used to update a single
// working copy.
//
// The engine only depends on the Opener and Repository interfaces. GoGitOpener
// is the production implementation; vcstest provides an in-memory fake.
package vcs

import (
	"context"
	"errors"
)

// ErrNotARepository is returned by Opener.Open when the path is not the root of
// a git working copy or bare repository.
var ErrNotARepository = errors.New("not a git repository")

type Opener interface {
	Open(path string) (Repository, error)
}

// Repository is an opened repository. Implementations are used by a single
// goroutine at a time.
type Repository interface {
	IsBare() bool

	// IsDirty reports uncommitted modifications to tracked files. Untracked
	// files do not make a working tree dirty.
	IsDirty() (bool, error)

	// LocalBranches returns short branch names (e.g. "develop") in a stable order.
	LocalBranches() ([]string, error)

	// Checkout switches the working tree to branch. Files outside version
	// control (untracked or ignored) are left in place.
	Checkout(ctx context.Context, branch string) error

	// Pull fetches the checked-out branch from the configured remote and
	// fast-forwards it. A branch that is already up to date is not an error.
	// Like Checkout, it never removes files outside version control.
	Pull(ctx context.Context) error
}
