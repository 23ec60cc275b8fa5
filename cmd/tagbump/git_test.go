package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a repository with a single commit in a temp directory.
func initTestRepo(t *testing.T) (*git.Repository, *git.Worktree, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	w, err := repo.Worktree()
	require.NoError(t, err)

	commitTestFile(t, w, dir, "README.md", "# demo\n", "initial commit")
	return repo, w, dir
}

// commitTestFile writes a file and commits it.
func commitTestFile(
	t *testing.T,
	w *git.Worktree,
	dir string,
	name string,
	content string,
	message string,
) plumbing.Hash {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := w.Add(name)
	require.NoError(t, err)

	hash, err := commitChanges(w, message, nil, "Test User", "test@example.test")
	require.NoError(t, err)
	return hash
}

func TestCheckBranchExists(t *testing.T) {
	t.Run("should find an existing branch", func(t *testing.T) {
		// given
		repo, w, _ := initTestRepo(t)
		head, err := repo.Head()
		require.NoError(t, err)
		require.NoError(t, createAndSwitchBranch(repo, w, "chore/changelog", head.Hash()))

		// when
		exists, err := checkBranchExists(repo, "chore/changelog")

		// then
		require.NoError(t, err, "should not return an error")
		assert.True(t, exists, "branch should exist")
	})

	t.Run("should not find a missing branch", func(t *testing.T) {
		// given
		repo, _, _ := initTestRepo(t)

		// when
		exists, err := checkBranchExists(repo, "missing-branch")

		// then
		require.NoError(t, err, "should not return an error")
		assert.False(t, exists, "branch should not exist")
	})
}

func TestEnsureCleanWorktree(t *testing.T) {
	t.Run("should pass on a clean worktree", func(t *testing.T) {
		// given
		_, w, _ := initTestRepo(t)

		// when
		err := ensureCleanWorktree(w)

		// then
		require.NoError(t, err, "should not return an error")
	})

	t.Run("should fail on a dirty worktree", func(t *testing.T) {
		// given
		_, w, dir := initTestRepo(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dirty.txt"), []byte("dirty"), 0o644))

		// when
		err := ensureCleanWorktree(w)

		// then
		require.ErrorIs(t, err, ErrDirtyWorktree, "should return ErrDirtyWorktree")
	})
}

func TestResetToRemoteBranch(t *testing.T) {
	t.Run("should hard-reset the local branch to the remote one", func(t *testing.T) {
		// given
		_, originWorktree, originDir := initTestRepo(t)

		cloneDir := t.TempDir()
		cloneRepo, err := git.PlainClone(cloneDir, false, &git.CloneOptions{URL: originDir})
		require.NoError(t, err)
		cloneWorktree, err := cloneRepo.Worktree()
		require.NoError(t, err)

		// a commit lands on the remote after the clone
		remoteHash := commitTestFile(
			t, originWorktree, originDir, "CHANGELOG.md", "# Changelog\n", "add changelog",
		)

		// when
		err = fetchRemote(cloneRepo, "origin", nil)
		require.NoError(t, err, "fetch should not return an error")
		err = resetToRemoteBranch(cloneRepo, cloneWorktree, "origin", "master")

		// then
		require.NoError(t, err, "should not return an error")
		head, err := cloneRepo.Head()
		require.NoError(t, err)
		assert.Equal(t, remoteHash, head.Hash(), "local head should match the remote commit")
		assert.FileExists(t, filepath.Join(cloneDir, "CHANGELOG.md"))
	})

	t.Run("should fail when the remote branch does not exist", func(t *testing.T) {
		// given
		repo, w, _ := initTestRepo(t)

		// when
		err := resetToRemoteBranch(repo, w, "origin", "master")

		// then
		require.Error(t, err, "should return an error for a missing remote ref")
	})
}

func TestCreateAnnotatedTagAndGetLatestTag(t *testing.T) {
	t.Run("should find the highest semver tag", func(t *testing.T) {
		// given
		repo, w, dir := initTestRepo(t)
		firstHash, err := repo.Head()
		require.NoError(t, err)
		require.NoError(t, createAnnotatedTag(
			repo, "1.0.0", firstHash.Hash(), "Release 1.0.0", "Test User", "test@example.test",
		))

		secondHash := commitTestFile(t, w, dir, "feature.txt", "feature\n", "add feature")
		require.NoError(t, createAnnotatedTag(
			repo, "1.1.0", secondHash, "Release 1.1.0", "Test User", "test@example.test",
		))

		// when
		tag, err := getLatestTag(repo, "{version}")

		// then
		require.NoError(t, err, "should not return an error")
		assert.Equal(t, "1.1.0", tag.Version.String())
		assert.False(t, tag.Date.IsZero(), "tag date should be set")
	})

	t.Run("should strip the tag template decoration", func(t *testing.T) {
		// given
		repo, _, _ := initTestRepo(t)
		head, err := repo.Head()
		require.NoError(t, err)
		require.NoError(t, createAnnotatedTag(
			repo, "v2.0.0", head.Hash(), "Release 2.0.0", "Test User", "test@example.test",
		))

		// when
		tag, err := getLatestTag(repo, "v{version}")

		// then
		require.NoError(t, err, "should not return an error")
		assert.Equal(t, "2.0.0", tag.Version.String())
	})

	t.Run("should return an error when no tags exist", func(t *testing.T) {
		// given
		repo, _, _ := initTestRepo(t)

		// when
		_, err := getLatestTag(repo, "{version}")

		// then
		require.ErrorIs(t, err, ErrNoTagsFound, "should return ErrNoTagsFound")
	})
}

func TestTagNameToVersion(t *testing.T) {
	t.Run("should strip a prefix template", func(t *testing.T) {
		assert.Equal(t, "1.2.3", tagNameToVersion("v{version}", "v1.2.3"))
	})

	t.Run("should keep a bare version", func(t *testing.T) {
		assert.Equal(t, "1.2.3", tagNameToVersion("{version}", "1.2.3"))
	})

	t.Run("should keep the tag name for a template without placeholder", func(t *testing.T) {
		assert.Equal(t, "release", tagNameToVersion("static", "release"))
	})
}
