// Package deploy publishes a built site to a git branch on a remote, the
// workflow static hosts like GitHub Pages consume. The output directory
// becomes a single self-contained commit: history of the publishing
// branch is not preserved, matching the treat-output-as-artifact model.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	gerrors "github.com/milkyware/glacier/internal/errors"
)

// Options configure a deployment.
type Options struct {
	RemoteURL string // e.g. https://github.com/user/user.github.io.git
	Branch    string // publishing branch, e.g. gh-pages
	Message   string // commit message; a default is applied when empty
	Token     string // HTTP token auth; empty uses the transport default
	Username  string // username for token auth; defaults to "git"
	Author    string
	Email     string
	// Push disabled makes Deploy a dry run: the commit is assembled and
	// then discarded without contacting the remote.
	Push bool
}

// Deployer publishes a site directory.
type Deployer struct {
	opts Options
}

// NewDeployer validates options and returns a Deployer.
func NewDeployer(opts Options) (*Deployer, error) {
	if opts.RemoteURL == "" {
		return nil, gerrors.New(gerrors.CategoryDeploy, gerrors.SeverityFatal, "deploy remote URL is required")
	}
	if opts.Branch == "" {
		opts.Branch = "gh-pages"
	}
	if opts.Message == "" {
		opts.Message = "Publish site"
	}
	if opts.Username == "" {
		opts.Username = "git"
	}
	if opts.Author == "" {
		opts.Author = "glacier"
	}
	if opts.Email == "" {
		opts.Email = "glacier@localhost"
	}
	return &Deployer{opts: opts}, nil
}

// Deploy commits the contents of siteDir and force-pushes them to the
// publishing branch. The commit is built in a throwaway repository inside
// siteDir; the site files themselves are not modified.
func (d *Deployer) Deploy(ctx context.Context, siteDir string) error {
	if _, err := os.Stat(filepath.Join(siteDir, "index.html")); err != nil {
		return gerrors.New(gerrors.CategoryDeploy, gerrors.SeverityFatal,
			fmt.Sprintf("%s does not look like a built site (no index.html)", siteDir))
	}

	repo, err := d.initScratchRepo(siteDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(filepath.Join(siteDir, git.GitDirName)); err != nil {
			slog.Warn("Failed to remove scratch repository", "error", err)
		}
	}()

	hash, err := d.commitAll(repo)
	if err != nil {
		return err
	}
	slog.Info("Site committed for deploy", "commit", hash.String()[:12], "branch", d.opts.Branch)

	if !d.opts.Push {
		slog.Info("Dry run, not pushing")
		return nil
	}
	return d.push(ctx, repo)
}

func (d *Deployer) initScratchRepo(siteDir string) (*git.Repository, error) {
	// A stale scratch repo from an interrupted deploy would taint the
	// commit; start clean.
	if err := os.RemoveAll(filepath.Join(siteDir, git.GitDirName)); err != nil {
		return nil, gerrors.Wrap(err, gerrors.CategoryDeploy, gerrors.SeverityFatal, "clean scratch repository")
	}

	repo, err := git.PlainInit(siteDir, false)
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CategoryDeploy, gerrors.SeverityFatal, "init scratch repository")
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{d.opts.RemoteURL},
	}); err != nil {
		return nil, gerrors.Wrap(err, gerrors.CategoryDeploy, gerrors.SeverityFatal, "configure deploy remote")
	}
	return repo, nil
}

func (d *Deployer) commitAll(repo *git.Repository) (plumbing.Hash, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, gerrors.Wrap(err, gerrors.CategoryDeploy, gerrors.SeverityFatal, "open worktree")
	}
	if err := wt.AddGlob("."); err != nil {
		return plumbing.ZeroHash, gerrors.Wrap(err, gerrors.CategoryDeploy, gerrors.SeverityFatal, "stage site files")
	}

	commit, err := wt.Commit(d.opts.Message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  d.opts.Author,
			Email: d.opts.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, gerrors.Wrap(err, gerrors.CategoryDeploy, gerrors.SeverityFatal, "commit site")
	}
	return commit, nil
}

func (d *Deployer) push(ctx context.Context, repo *git.Repository) error {
	var auth transport.AuthMethod
	if d.opts.Token != "" {
		auth = &githttp.BasicAuth{Username: d.opts.Username, Password: d.opts.Token}
	}

	refSpec := config.RefSpec(fmt.Sprintf("+HEAD:refs/heads/%s", d.opts.Branch))
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
		Force:      true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return gerrors.Wrap(err, gerrors.CategoryDeploy, gerrors.SeverityFatal,
			fmt.Sprintf("push to %s", d.opts.Branch))
	}

	slog.Info("Site deployed", "remote", d.opts.RemoteURL, "branch", d.opts.Branch)
	return nil
}
