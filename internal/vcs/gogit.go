package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GoGitOpener opens repositories with go-git. Pulls go to Remote.
type GoGitOpener struct {
	Remote string
}

func NewGoGitOpener(remote string) *GoGitOpener {
	if remote == "" {
		remote = git.DefaultRemoteName
	}
	return &GoGitOpener{Remote: remote}
}

// Open opens path without searching parent directories for a .git entry, so a
// plain subdirectory of some other checkout is reported as ErrNotARepository.
func (o *GoGitOpener) Open(path string) (Repository, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotARepository
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, ErrNotARepository
	}

	r, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotARepository
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	gr := &goGitRepository{repo: r, path: path, remote: o.Remote}
	wt, err := r.Worktree()
	switch {
	case errors.Is(err, git.ErrIsBareRepository):
		gr.bare = true
	case err != nil:
		return nil, fmt.Errorf("worktree %s: %w", path, err)
	default:
		gr.wt = wt
	}
	return gr, nil
}

type goGitRepository struct {
	repo   *git.Repository
	wt     *git.Worktree
	path   string
	remote string
	bare   bool
}

func (r *goGitRepository) IsBare() bool {
	return r.bare
}

func (r *goGitRepository) IsDirty() (bool, error) {
	if r.bare {
		return false, nil
	}
	status, err := r.wt.Status()
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	for _, fs := range status {
		if fs.Staging == git.Untracked && fs.Worktree == git.Untracked {
			continue
		}
		if fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

func (r *goGitRepository) LocalBranches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	// Storage order mixes loose and packed refs; sort to match git for-each-ref.
	sort.Strings(names)
	return names, nil
}

// Checkout and Pull run the git binary. go-git's worktree checkout and pull
// reset the tree and delete untracked and ignored files.
func (r *goGitRepository) Checkout(ctx context.Context, branch string) error {
	if r.bare {
		return git.ErrIsBareRepository
	}
	if _, err := r.git(ctx, "switch", "--no-guess", branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

func (r *goGitRepository) Pull(ctx context.Context) error {
	if r.bare {
		return git.ErrIsBareRepository
	}
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return fmt.Errorf("pull: HEAD is detached at %s", head.Hash())
	}

	// Follow the branch's configured upstream when it has one.
	refName := head.Name()
	if b, err := r.repo.Branch(head.Name().Short()); err == nil && b.Merge != "" {
		refName = b.Merge
	}

	if _, err := r.git(ctx, "pull", "--ff-only", "--no-rebase", r.remote, refName.Short()); err != nil {
		return fmt.Errorf("pull %s from %s: %w", refName.Short(), r.remote, err)
	}
	return nil
}

func (r *goGitRepository) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.path
	// No credential prompts: a worker must never block on a terminal.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
