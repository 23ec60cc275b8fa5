package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	log "github.com/sirupsen/logrus"
)

var (
	ErrDirtyWorktree        = errors.New("worktree has uncommitted changes")
	ErrNoRemoteURL          = errors.New("no URLs configured for the remote")
	ErrNoTagsFound          = errors.New("no tags found in git history")
	ErrUnsupportedRemoteURL = errors.New("unsupported remote URL")
)

// latestTag holds the newest released tag and the date it was created.
type latestTag struct {
	Version *semver.Version
	Date    time.Time
}

// getGlobalGitConfig reads the global git configuration file and returns a
// config.Config object.
func getGlobalGitConfig() (*config.Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("could not get user home directory: %w", err)
	}

	globalConfigPath := filepath.Join(homeDir, ".gitconfig")
	configBytes, err := os.ReadFile(globalConfigPath)
	if err != nil {
		return nil, fmt.Errorf("could not read global git config: %w", err)
	}

	cfg := config.NewConfig()
	if err = cfg.Unmarshal(configBytes); err != nil {
		return nil, fmt.Errorf("could not unmarshal global git config: %w", err)
	}

	return cfg, nil
}

// getOptionFromConfig reads an option from the repository config, falling
// back to the global git config.
func getOptionFromConfig(repoCfg, globalCfg *config.Config, section, option string) string {
	value := repoCfg.Raw.Section(section).Option(option)
	if value == "" && globalCfg != nil {
		value = globalCfg.Raw.Section(section).Option(option)
	}
	return value
}

// openRepo opens a git repository at the given path.
func openRepo(projectPath string) (*git.Repository, error) {
	log.Infof("Opening repository at %s", projectPath)
	repo, err := git.PlainOpen(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// ensureCleanWorktree refuses to continue when the worktree carries
// uncommitted changes, since the sync step hard-resets the branch.
func ensureCleanWorktree(w *git.Worktree) error {
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if !status.IsClean() {
		return ErrDirtyWorktree
	}
	return nil
}

// fetchRemote fetches the configured remote, trying each auth method in turn.
func fetchRemote(repo *git.Repository, remoteName string, authMethods []transport.AuthMethod) error {
	log.Infof("Fetching remote '%s'", remoteName)

	fetch := func(auth transport.AuthMethod) error {
		return repo.Fetch(&git.FetchOptions{
			RemoteName: remoteName,
			Auth:       auth,
			Force:      true,
			Tags:       git.AllTags,
		})
	}

	err := fetch(nil)
	for _, auth := range authMethods {
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			break
		}
		err = fetch(auth)
	}

	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch remote '%s': %w", remoteName, err)
	}
	return nil
}

// resetToRemoteBranch makes the local branch point at the remote-tracking
// ref and hard-resets the worktree to it, so the release is cut from exactly
// what the remote has.
func resetToRemoteBranch(
	repo *git.Repository,
	w *git.Worktree,
	remoteName string,
	branchName string,
) error {
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branchName), true)
	if err != nil {
		return fmt.Errorf("failed to resolve %s/%s: %w", remoteName, branchName, err)
	}

	log.Infof("Resetting branch '%s' to %s/%s (%s)",
		branchName, remoteName, branchName, remoteRef.Hash().String()[:7])

	localRef := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branchName), remoteRef.Hash())
	if err = repo.Storer.SetReference(localRef); err != nil {
		return fmt.Errorf("failed to update local branch ref: %w", err)
	}

	err = w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branchName),
		Force:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to checkout branch '%s': %w", branchName, err)
	}

	err = w.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: remoteRef.Hash(),
	})
	if err != nil {
		return fmt.Errorf("failed to hard-reset to %s/%s: %w", remoteName, branchName, err)
	}

	return nil
}

// checkBranchExists checks if a given git branch exists locally.
func checkBranchExists(repo *git.Repository, branchName string) (bool, error) {
	refs, err := repo.References()
	if err != nil {
		return false, fmt.Errorf("failed to list references: %w", err)
	}

	branchExists := false
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().IsBranch() && ref.Name().Short() == branchName {
			branchExists = true
		}
		return nil
	})
	return branchExists, err
}

// createAndSwitchBranch creates a new branch and switches to it.
func createAndSwitchBranch(
	repo *git.Repository,
	w *git.Worktree,
	branchName string,
	hash plumbing.Hash,
) error {
	log.Infof("Creating and switching to new branch '%s'", branchName)
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branchName), hash)
	if err := repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to create branch ref: %w", err)
	}

	return checkoutBranch(w, branchName)
}

// checkoutBranch switches to the given branch.
func checkoutBranch(w *git.Worktree, branchName string) error {
	log.Infof("Switching to branch '%s'", branchName)
	err := w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branchName),
	})
	if err != nil {
		return fmt.Errorf("failed to checkout branch '%s': %w", branchName, err)
	}
	return nil
}

// commitChanges commits the staged changes in the given worktree.
func commitChanges(
	w *git.Worktree,
	commitMessage string,
	signKey *openpgp.Entity,
	name string,
	email string,
) (plumbing.Hash, error) {
	log.Info("Committing changes")

	commit, err := w.Commit(commitMessage, &git.CommitOptions{
		SignKey: signKey,
		Author: &object.Signature{
			Name:  name,
			Email: email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to commit: %w", err)
	}

	return commit, nil
}

// createAnnotatedTag creates an annotated tag pointing at the given commit.
func createAnnotatedTag(
	repo *git.Repository,
	tagName string,
	hash plumbing.Hash,
	message string,
	name string,
	email string,
) error {
	log.Infof("Creating annotated tag '%s'", tagName)
	_, err := repo.CreateTag(tagName, hash, &git.CreateTagOptions{
		Message: message,
		Tagger: &object.Signature{
			Name:  name,
			Email: email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create tag '%s': %w", tagName, err)
	}
	return nil
}

// pushRefSpec pushes the given refspec to the remote, picking SSH or HTTPS
// auth based on the remote URL.
func pushRefSpec(
	repo *git.Repository,
	remoteName string,
	refSpec config.RefSpec,
	authMethods []transport.AuthMethod,
) error {
	remoteURL, err := getRemoteRepoURL(repo, remoteName)
	if err != nil {
		return err
	}

	pushOptions := &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{refSpec},
	}

	switch {
	case strings.HasPrefix(remoteURL, "git@"):
		log.Infof("Pushing %s through SSH", refSpec)
		err = repo.Push(pushOptions)
	case strings.HasPrefix(remoteURL, "https://") || strings.HasPrefix(remoteURL, "http://"):
		log.Infof("Pushing %s through HTTPS", refSpec)
		err = pushWithAuthMethods(repo, pushOptions, authMethods)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedRemoteURL, remoteURL)
	}

	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %s: %w", refSpec, err)
	}
	return nil
}

// pushWithAuthMethods tries each authentication method until one succeeds.
func pushWithAuthMethods(
	repo *git.Repository,
	pushOptions *git.PushOptions,
	authMethods []transport.AuthMethod,
) error {
	var err error
	if len(authMethods) == 0 {
		return repo.Push(pushOptions)
	}

	for _, auth := range authMethods {
		pushOptions.Auth = auth
		err = repo.Push(pushOptions)
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			return err
		}
	}
	return err
}

// pushBranch pushes a local branch to the remote.
func pushBranch(
	repo *git.Repository,
	remoteName string,
	branchName string,
	authMethods []transport.AuthMethod,
) error {
	refSpec := config.RefSpec("refs/heads/" + branchName + ":refs/heads/" + branchName)
	return pushRefSpec(repo, remoteName, refSpec, authMethods)
}

// pushTag pushes a tag to the remote. This push is what triggers the publish
// pipeline on the forge side.
func pushTag(
	repo *git.Repository,
	remoteName string,
	tagName string,
	authMethods []transport.AuthMethod,
) error {
	refSpec := config.RefSpec("refs/tags/" + tagName + ":refs/tags/" + tagName)
	return pushRefSpec(repo, remoteName, refSpec, authMethods)
}

// getLatestTag finds the newest semver tag in the git history, together with
// the commit date of the tagged commit.
func getLatestTag(repo *git.Repository, tagTemplate string) (*latestTag, error) {
	tags, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	var latestVersion *semver.Version
	var latestRef *plumbing.Reference
	_ = tags.ForEach(func(ref *plumbing.Reference) error {
		raw := tagNameToVersion(tagTemplate, ref.Name().Short())
		version, parseErr := semver.NewVersion(raw)
		if parseErr != nil {
			return nil // skip tags that don't carry a version
		}
		if latestVersion == nil || version.GreaterThan(latestVersion) {
			latestVersion = version
			latestRef = ref
		}
		return nil
	})

	if latestRef == nil {
		return nil, ErrNoTagsFound
	}

	commit, err := resolveTagCommit(repo, latestRef)
	if err != nil {
		return nil, err
	}

	return &latestTag{
		Version: latestVersion,
		Date:    commit.Committer.When,
	}, nil
}

// resolveTagCommit resolves the commit a tag points at, following annotated
// tag objects when needed.
func resolveTagCommit(repo *git.Repository, ref *plumbing.Reference) (*object.Commit, error) {
	tagObject, err := repo.TagObject(ref.Hash())
	if err == nil {
		commit, commitErr := tagObject.Commit()
		if commitErr != nil {
			return nil, fmt.Errorf("failed to resolve annotated tag commit: %w", commitErr)
		}
		return commit, nil
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tag commit: %w", err)
	}
	return commit, nil
}

// tagNameToVersion strips the tag template decoration from a tag name.
func tagNameToVersion(tagTemplate string, tagName string) string {
	prefix, suffix, found := strings.Cut(tagTemplate, "{version}")
	if !found {
		return tagName
	}
	raw := strings.TrimPrefix(tagName, prefix)
	return strings.TrimSuffix(raw, suffix)
}

// getRemoteRepoURL returns the first URL of the given remote.
func getRemoteRepoURL(repo *git.Repository, remoteName string) (string, error) {
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return "", fmt.Errorf("failed to get remote '%s': %w", remoteName, err)
	}

	if len(remote.Config().URLs) > 0 {
		return remote.Config().URLs[0], nil // first URL configured for the remote
	}

	return "", ErrNoRemoteURL
}
