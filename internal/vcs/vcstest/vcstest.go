// Package vcstest provides an in-memory vcs.Opener for tests.
package vcstest

import (
	"context"
	"sync"

	"gitpuller/internal/vcs"
)

// Repo is a fake repository. Configure the exported fields before handing the
// Repo to an Opener; the recorded calls are safe to read concurrently.
type Repo struct {
	Bare     bool
	Dirty    bool
	Branches []string

	DirtyErr    error
	BranchesErr error
	CheckoutErr error
	PullErr     error

	// PullFunc replaces the default Pull behavior when set.
	PullFunc func(ctx context.Context) error

	mu        sync.Mutex
	checkouts []string
	pulls     int
}

func (r *Repo) IsBare() bool { return r.Bare }

func (r *Repo) IsDirty() (bool, error) {
	if r.DirtyErr != nil {
		return false, r.DirtyErr
	}
	return r.Dirty, nil
}

func (r *Repo) LocalBranches() ([]string, error) {
	if r.BranchesErr != nil {
		return nil, r.BranchesErr
	}
	return append([]string(nil), r.Branches...), nil
}

func (r *Repo) Checkout(_ context.Context, branch string) error {
	r.mu.Lock()
	r.checkouts = append(r.checkouts, branch)
	r.mu.Unlock()
	return r.CheckoutErr
}

func (r *Repo) Pull(ctx context.Context) error {
	r.mu.Lock()
	r.pulls++
	r.mu.Unlock()
	if r.PullFunc != nil {
		return r.PullFunc(ctx)
	}
	return r.PullErr
}

// Checkouts returns the branch names passed to Checkout, in call order.
func (r *Repo) Checkouts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.checkouts...)
}

func (r *Repo) Pulls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulls
}

// Mutated reports whether Checkout or Pull was ever called.
func (r *Repo) Mutated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.checkouts) > 0 || r.pulls > 0
}

// Opener maps paths to fake repositories. Unknown paths open as
// vcs.ErrNotARepository.
type Opener struct {
	mu       sync.Mutex
	repos    map[string]*Repo
	openErrs map[string]error
	opens    map[string]int
}

func NewOpener() *Opener {
	return &Opener{
		repos:    make(map[string]*Repo),
		openErrs: make(map[string]error),
		opens:    make(map[string]int),
	}
}

// Add registers r at path and returns it.
func (o *Opener) Add(path string, r *Repo) *Repo {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.repos[path] = r
	return r
}

// FailOpen makes Open(path) return err.
func (o *Opener) FailOpen(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openErrs[path] = err
}

func (o *Opener) Open(path string) (vcs.Repository, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens[path]++
	if err := o.openErrs[path]; err != nil {
		return nil, err
	}
	r, ok := o.repos[path]
	if !ok {
		return nil, vcs.ErrNotARepository
	}
	return r, nil
}

// Opens returns how many times path was opened.
func (o *Opener) Opens(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[path]
}

// TotalOpens returns the number of Open calls across all paths.
func (o *Opener) TotalOpens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.opens {
		n += c
	}
	return n
}
