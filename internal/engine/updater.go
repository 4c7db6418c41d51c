package engine

import (
	"context"
	"errors"
	"fmt"
	"gitpuller/internal/config"
	"gitpuller/internal/vcs"
	"log/slog"
	"slices"
	"time"
)

// RepositoryUpdater performs the update-or-skip decision for one path.
type RepositoryUpdater interface {
	Update(ctx context.Context, path, branch string) Outcome
}

type Updater struct {
	opener      vcs.Opener
	logger      *slog.Logger
	branchMatch string
	taskTimeout time.Duration
}

type UpdaterOption func(*Updater)

// WithBranchMatch selects config.BranchMatchScan (default) or config.BranchMatchFirst.
func WithBranchMatch(policy string) UpdaterOption {
	return func(u *Updater) {
		u.branchMatch = policy
	}
}

// WithTaskTimeout bounds each Update call. Zero disables the bound.
func WithTaskTimeout(d time.Duration) UpdaterOption {
	return func(u *Updater) {
		u.taskTimeout = d
	}
}

func NewUpdater(opener vcs.Opener, logger *slog.Logger, opts ...UpdaterOption) (*Updater, error) {
	if opener == nil {
		return nil, errors.New("opener is nil")
	}
	if logger == nil {
		return nil, errors.New("logger is nil")
	}
	u := &Updater{
		opener:      opener,
		logger:      logger,
		branchMatch: config.BranchMatchScan,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.branchMatch != config.BranchMatchScan && u.branchMatch != config.BranchMatchFirst {
		return nil, fmt.Errorf("unsupported branch match policy %q", u.branchMatch)
	}
	return u, nil
}

// Update logs through the logger carried by ctx (see withLogger), falling
// back to the Updater's own. It never panics on version-control errors and never returns partial
// state: skip paths leave the working copy untouched, and checkout/pull
// failures are reported as StatusFailed.
func (u *Updater) Update(ctx context.Context, path, branch string) Outcome {
	start := time.Now()
	if u.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.taskTimeout)
		defer cancel()
	}
	o := u.update(ctx, path, branch)
	o.Duration = time.Since(start)
	return o
}

func (u *Updater) update(ctx context.Context, path, branch string) Outcome {
	log := loggerFrom(ctx, u.logger).With("path", path)

	repo, err := u.opener.Open(path)
	if err != nil {
		if errors.Is(err, vcs.ErrNotARepository) {
			log.Warn("Not a valid git repository, skipping")
			return skipped(path, ReasonNotARepository)
		}
		log.Error("Failed to open repository", "error", err)
		return failed(path, err)
	}

	if repo.IsBare() {
		log.Warn("Bare git repository, skipping")
		return skipped(path, ReasonBare)
	}

	dirty, err := repo.IsDirty()
	if err != nil {
		log.Error("Failed to read working tree status", "error", err)
		return failed(path, err)
	}
	if dirty {
		log.Warn("Repository has unsaved changes, skipping")
		return skipped(path, ReasonDirty)
	}

	branches, err := repo.LocalBranches()
	if err != nil {
		log.Error("Failed to list branches", "error", err)
		return failed(path, err)
	}
	if !u.hasBranch(branches, branch) {
		log.Info("Branch not found, skipping", "branch", branch)
		return skipped(path, ReasonBranchNotFound)
	}

	log.Info("Updating", "branch", branch)
	if err := repo.Checkout(ctx, branch); err != nil {
		log.Error("Failed to update", "step", "checkout", "error", err)
		return failed(path, err)
	}
	if err := ctx.Err(); err != nil {
		log.Error("Failed to update", "step", "pull", "error", err)
		return failed(path, err)
	}
	if err := repo.Pull(ctx); err != nil {
		log.Error("Failed to update", "step", "pull", "error", err)
		return failed(path, err)
	}
	log.Info("Updated", "branch", branch)
	return updated(path)
}

func (u *Updater) hasBranch(branches []string, branch string) bool {
	if u.branchMatch == config.BranchMatchFirst {
		return len(branches) > 0 && branches[0] == branch
	}
	return slices.Contains(branches, branch)
}
