package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	log "github.com/sirupsen/logrus"
)

var (
	ErrAborted        = errors.New("aborted by user")
	ErrChangelogEmpty = ErrNoChangesFoundInUnreleased
)

// releaseOptions carries the CLI-level switches of the release flows.
type releaseOptions struct {
	NoTag     bool
	AssumeYes bool
}

// repoContext holds everything the flows need about the repository at hand.
type repoContext struct {
	GlobalConfig    *GlobalConfig
	ProjectPath     string
	GlobalGitConfig *gitconfig.Config
	Repo            *git.Repository
	Worktree        *git.Worktree
}

// prepareRepo opens the repository and gathers the git configuration.
func prepareRepo(globalConfig *GlobalConfig, projectPath string) (*repoContext, error) {
	repo, err := openRepo(projectPath)
	if err != nil {
		return nil, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	globalGitConfig, err := getGlobalGitConfig()
	if err != nil {
		log.Warnf("Could not read the global git config: %v", err)
		globalGitConfig = gitconfig.NewConfig()
	}

	return &repoContext{
		GlobalConfig:    globalConfig,
		ProjectPath:     projectPath,
		GlobalGitConfig: globalGitConfig,
		Repo:            repo,
		Worktree:        worktree,
	}, nil
}

// remoteAuthMethods returns the auth methods of the forge the remote points at.
func remoteAuthMethods(ctx *repoContext) []transport.AuthMethod {
	remoteURL, err := getRemoteRepoURL(ctx.Repo, ctx.GlobalConfig.Remote)
	if err != nil {
		log.Warnf("Could not resolve remote URL: %v", err)
		return nil
	}

	adapter := GetAdapterByURL(remoteURL)
	if adapter == nil {
		return nil
	}

	username := ctx.gitUserName()
	return adapter.GetAuthMethods(username, ctx.GlobalConfig)
}

func (ctx *repoContext) gitUserName() string {
	repoCfg, err := ctx.Repo.Config()
	if err != nil {
		return ""
	}
	return getOptionFromConfig(repoCfg, ctx.GlobalGitConfig, "user", "name")
}

func (ctx *repoContext) gitUserEmail() string {
	repoCfg, err := ctx.Repo.Config()
	if err != nil {
		return ""
	}
	return getOptionFromConfig(repoCfg, ctx.GlobalGitConfig, "user", "email")
}

// syncMainBranch fetches the remote and hard-resets the local main branch to
// it, so the release is cut from exactly what the remote has.
func syncMainBranch(ctx *repoContext) error {
	if err := ensureCleanWorktree(ctx.Worktree); err != nil {
		return err
	}

	authMethods := remoteAuthMethods(ctx)
	if err := fetchRemote(ctx.Repo, ctx.GlobalConfig.Remote, authMethods); err != nil {
		return err
	}

	return resetToRemoteBranch(
		ctx.Repo, ctx.Worktree, ctx.GlobalConfig.Remote, ctx.GlobalConfig.MainBranch,
	)
}

// guardVersionOrdering rejects target versions that do not move forward from
// the latest released version, checking both the changelog and the git tags.
func guardVersionOrdering(ctx *repoContext, version *semver.Version) error {
	changelogPath := filepath.Join(ctx.ProjectPath, ctx.GlobalConfig.ChangelogPath)
	if lines, err := readLines(changelogPath); err == nil {
		latest, findErr := findLatestVersion(lines)
		if findErr == nil && !version.GreaterThan(latest) {
			return fmt.Errorf("%w: %s <= %s (changelog)", ErrVersionNotGreater, version, latest)
		}
	}

	tag, err := getLatestTag(ctx.Repo, ctx.GlobalConfig.TagTemplate)
	if err == nil && !version.GreaterThan(tag.Version) {
		return fmt.Errorf("%w: %s <= %s (git tag)", ErrVersionNotGreater, version, tag.Version)
	}

	return nil
}

// confirmPlan prints the plan and asks for confirmation before anything is
// touched.
func confirmPlan(plan string, assumeYes bool) error {
	fmt.Println(plan) //nolint:forbidigo // interactive prompt
	if assumeYes {
		return nil
	}

	fmt.Print("Proceed? [y/N]: ") //nolint:forbidigo // interactive prompt
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "y" && answer != "yes" {
		return ErrAborted
	}
	return nil
}

// renderPlan renders the summary shown before a release or dev bump.
func renderPlan(ctx *repoContext, currentVersion, newVersion, tagName string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Will bump %s -> %s\n",
		displayVersion(currentVersion), newVersion))

	versionFiles, err := getVersionFiles(ctx.GlobalConfig, ctx.ProjectPath)
	if err == nil {
		for _, versionFile := range versionFiles {
			if relPath, relErr := filepath.Rel(ctx.ProjectPath, versionFile.Path); relErr == nil {
				sb.WriteString(fmt.Sprintf("  - %s\n", relPath))
			}
		}
	}

	if tagName != "" {
		sb.WriteString(fmt.Sprintf("Will create and push tag '%s' (triggers the publish pipeline)", tagName))
	} else {
		sb.WriteString("No tag will be created")
	}
	return sb.String()
}

func displayVersion(version string) string {
	if version == "" {
		return "(unknown)"
	}
	return version
}

// stageVersionFiles adds the version files (and optionally the changelog) to
// the worktree index.
func stageVersionFiles(ctx *repoContext, includeChangelog bool) error {
	versionFiles, err := getVersionFiles(ctx.GlobalConfig, ctx.ProjectPath)
	if err != nil {
		return err
	}

	for _, versionFile := range versionFiles {
		if _, err = os.Stat(versionFile.Path); os.IsNotExist(err) {
			continue
		}

		relPath, relErr := filepath.Rel(ctx.ProjectPath, versionFile.Path)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path for version file: %w", relErr)
		}

		log.Infof("Adding version file %s", relPath)
		if _, err = ctx.Worktree.Add(relPath); err != nil {
			return fmt.Errorf("failed to add version file: %w", err)
		}
	}

	if includeChangelog {
		if _, err = ctx.Worktree.Add(ctx.GlobalConfig.ChangelogPath); err != nil {
			return fmt.Errorf("failed to add changelog file: %w", err)
		}
	}

	return nil
}

// commitStagedChanges commits the staged files, signing when configured.
func commitStagedChanges(ctx *repoContext, commitMessage string) error {
	repoCfg, err := ctx.Repo.Config()
	if err != nil {
		return fmt.Errorf("failed to get repo config: %w", err)
	}

	signKey, err := resolveSignKey(repoCfg, ctx.GlobalGitConfig, ctx.GlobalConfig)
	if err != nil {
		return err
	}

	_, err = commitChanges(
		ctx.Worktree,
		commitMessage,
		signKey,
		ctx.gitUserName(),
		ctx.gitUserEmail(),
	)
	return err
}

// releaseProject performs the full release: sync, bump, changelog roll,
// commit, tag, push.
func releaseProject(
	globalConfig *GlobalConfig,
	projectPath string,
	rawVersion string,
	opts *releaseOptions,
) error {
	version, err := parseReleaseVersion(rawVersion)
	if err != nil {
		return err
	}

	ctx, err := prepareRepo(globalConfig, projectPath)
	if err != nil {
		return err
	}

	if err = syncMainBranch(ctx); err != nil {
		return err
	}

	if err = guardVersionOrdering(ctx, version); err != nil {
		return err
	}

	changelogPath := filepath.Join(projectPath, globalConfig.ChangelogPath)
	if _, err = createChangelogIfNotExists(changelogPath); err != nil {
		return err
	}

	lines, err := readLines(changelogPath)
	if err != nil {
		return err
	}
	empty, err := isChangelogUnreleasedEmpty(lines)
	if err != nil {
		return err
	}
	if empty {
		return ErrChangelogEmpty
	}

	currentVersion, err := resolveCurrentVersion(projectPath)
	if err != nil {
		log.Warnf("Could not resolve the current version: %v", err)
	} else if err = checkVersionFiles(globalConfig, projectPath, currentVersion); err != nil {
		return err
	}

	tagName := ""
	if !opts.NoTag {
		tagName = renderTagName(globalConfig.TagTemplate, version.String())
	}

	if err = confirmPlan(renderPlan(ctx, currentVersion, version.String(), tagName), opts.AssumeYes); err != nil {
		return err
	}

	log.Infof("Updating changelog file %s", globalConfig.ChangelogPath)
	if err = updateChangelogFile(changelogPath, version); err != nil {
		return err
	}

	log.Infof("Updating version to %s", version)
	if err = updateVersionFiles(globalConfig, projectPath, version.String()); err != nil {
		return err
	}

	if err = stageVersionFiles(ctx, true); err != nil {
		return err
	}

	commitMessage := "chore(release): bump version to " + version.String()
	if err = commitStagedChanges(ctx, commitMessage); err != nil {
		return err
	}

	authMethods := remoteAuthMethods(ctx)

	if tagName != "" {
		head, headErr := ctx.Repo.Head()
		if headErr != nil {
			return fmt.Errorf("failed to get repo HEAD: %w", headErr)
		}
		tagMessage := "Release " + version.String()
		if err = createAnnotatedTag(
			ctx.Repo, tagName, head.Hash(), tagMessage,
			ctx.gitUserName(), ctx.gitUserEmail(),
		); err != nil {
			return err
		}
	}

	if err = pushBranch(ctx.Repo, globalConfig.Remote, globalConfig.MainBranch, authMethods); err != nil {
		return err
	}

	if tagName != "" {
		if err = pushTag(ctx.Repo, globalConfig.Remote, tagName, authMethods); err != nil {
			return err
		}
		log.Infof("Pushed tag '%s', the publish pipeline will take it from here", tagName)
	}

	log.Infof("Successfully released version %s", version)
	return nil
}

// bumpDevVersion sets the post-release dev version: same bump, commit and
// push as a release, explicitly without a tag.
func bumpDevVersion(
	globalConfig *GlobalConfig,
	projectPath string,
	rawVersion string,
	opts *releaseOptions,
) error {
	raw := rawVersion
	if !strings.HasSuffix(raw, globalConfig.DevSuffix) {
		raw += globalConfig.DevSuffix
	}

	base, err := parseDevVersion(raw, globalConfig.DevSuffix)
	if err != nil {
		return err
	}
	devVersion := buildDevVersion(base, globalConfig.DevSuffix)

	ctx, err := prepareRepo(globalConfig, projectPath)
	if err != nil {
		return err
	}

	if err = syncMainBranch(ctx); err != nil {
		return err
	}

	if err = guardVersionOrdering(ctx, base); err != nil {
		return err
	}

	currentVersion, err := resolveCurrentVersion(projectPath)
	if err != nil {
		log.Warnf("Could not resolve the current version: %v", err)
	}

	if err = confirmPlan(renderPlan(ctx, currentVersion, devVersion, ""), opts.AssumeYes); err != nil {
		return err
	}

	log.Infof("Updating version to %s", devVersion)
	if err = updateVersionFiles(globalConfig, projectPath, devVersion); err != nil {
		return err
	}

	if err = stageVersionFiles(ctx, false); err != nil {
		return err
	}

	commitMessage := "chore(release): back to development, version " + devVersion
	if err = commitStagedChanges(ctx, commitMessage); err != nil {
		return err
	}

	authMethods := remoteAuthMethods(ctx)
	if err = pushBranch(ctx.Repo, globalConfig.Remote, globalConfig.MainBranch, authMethods); err != nil {
		return err
	}

	log.Infof("Successfully set dev version %s", devVersion)
	return nil
}

// updateChangelogBranch collects merged-PR activity into the changelog on a
// dedicated branch and opens a pull request for it.
func updateChangelogBranch(globalConfig *GlobalConfig, projectPath string) error {
	ctx, err := prepareRepo(globalConfig, projectPath)
	if err != nil {
		return err
	}

	if err = syncMainBranch(ctx); err != nil {
		return err
	}

	entries, err := collectActivitySince(context.Background(), globalConfig, ctx.Repo)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Info("No merged pull requests found, nothing to add")
		return nil
	}

	branchName := "chore/changelog"
	branchExists, err := checkBranchExists(ctx.Repo, branchName)
	if err != nil {
		return err
	}
	if branchExists {
		log.Warnf("Branch '%s' already exists", branchName)
		return handleExistingChangelogBranch(ctx, branchName)
	}

	head, err := ctx.Repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get repo HEAD: %w", err)
	}
	if err = createAndSwitchBranch(ctx.Repo, ctx.Worktree, branchName, head.Hash()); err != nil {
		return err
	}

	changelogPath := filepath.Join(projectPath, globalConfig.ChangelogPath)
	if _, err = createChangelogIfNotExists(changelogPath); err != nil {
		return err
	}

	lines, err := readLines(changelogPath)
	if err != nil {
		return err
	}

	newContent, added := insertUnreleasedEntries(lines, entries)
	if added == 0 {
		log.Info("All merged pull requests are already in the changelog")
		return checkoutBranch(ctx.Worktree, globalConfig.MainBranch)
	}
	log.Infof("Adding %d changelog entries", added)

	if err = writeLines(changelogPath, newContent); err != nil {
		return err
	}

	if _, err = ctx.Worktree.Add(globalConfig.ChangelogPath); err != nil {
		return fmt.Errorf("failed to add changelog file: %w", err)
	}

	if err = commitStagedChanges(ctx, "chore(changelog): add merged pull request entries"); err != nil {
		return err
	}

	authMethods := remoteAuthMethods(ctx)
	if err = pushBranch(ctx.Repo, globalConfig.Remote, branchName, authMethods); err != nil {
		return err
	}

	if err = createChangelogPullRequest(ctx, branchName); err != nil {
		return err
	}

	return checkoutBranch(ctx.Worktree, globalConfig.MainBranch)
}

// handleExistingChangelogBranch creates the pull request for an existing
// changelog branch when none is open yet.
func handleExistingChangelogBranch(ctx *repoContext, branchName string) error {
	serviceType, err := getRemoteServiceType(ctx.Repo, ctx.GlobalConfig.Remote)
	if err != nil {
		return err
	}

	adapter := GetAdapterByServiceType(serviceType)
	if adapter == nil {
		log.Warnf("Service type '%s' not supported for pull request check", serviceType)
		return nil
	}

	prExists, err := adapter.PullRequestExists(ctx.GlobalConfig, ctx.Repo, branchName)
	if err != nil {
		return err
	}
	if prExists {
		log.Infof("Pull request already exists for branch '%s'", branchName)
		return nil
	}

	log.Infof("Branch exists but no pull request found, creating one for '%s'", branchName)
	return createChangelogPullRequest(ctx, branchName)
}

// createChangelogPullRequest opens the changelog pull request on the forge
// the remote points at.
func createChangelogPullRequest(ctx *repoContext, branchName string) error {
	serviceType, err := getRemoteServiceType(ctx.Repo, ctx.GlobalConfig.Remote)
	if err != nil {
		return err
	}

	adapter := GetAdapterByServiceType(serviceType)
	if adapter == nil {
		log.Warnf("Service type '%s' not supported, create the pull request manually", serviceType)
		return nil
	}

	return adapter.CreatePullRequest(ctx.GlobalConfig, ctx.Repo, &PullRequest{
		SourceBranch: branchName,
		TargetBranch: ctx.GlobalConfig.MainBranch,
		Title:        "chore(changelog): add merged pull request entries",
		Description:  "Collected merged pull requests into the unreleased changelog section.",
	})
}

// checkProject verifies the configuration against the working tree without
// changing anything.
func checkProject(globalConfig *GlobalConfig, projectPath string) error {
	currentVersion, err := resolveCurrentVersion(projectPath)
	if err != nil {
		return err
	}
	log.Infof("Current version: %s", currentVersion)

	if base, devErr := parseDevVersion(currentVersion, globalConfig.DevSuffix); devErr == nil {
		log.Infof("Current version is a dev version (base %s)", base)
	} else if _, relErr := parseReleaseVersion(currentVersion); relErr != nil {
		return relErr
	}

	if err = checkVersionFiles(globalConfig, projectPath, currentVersion); err != nil {
		return err
	}
	log.Info("All version files carry the current version")

	changelogPath := filepath.Join(projectPath, globalConfig.ChangelogPath)
	lines, err := readLines(changelogPath)
	if err != nil {
		log.Warnf("Could not read the changelog: %v", err)
		return nil
	}

	latest, err := findLatestVersion(lines)
	if errors.Is(err, ErrNoVersionFoundInChangelog) {
		log.Warn("No released version in the changelog yet")
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("Latest released version in the changelog: %s", latest)

	return nil
}
