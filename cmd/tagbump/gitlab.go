package main

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	log "github.com/sirupsen/logrus"
	"github.com/xanzy/go-gitlab"
)

type gitLabServiceAdapter struct{}

func (a *gitLabServiceAdapter) GetServiceType() ServiceType {
	return GITLAB
}

func (a *gitLabServiceAdapter) MatchesURL(url string) bool {
	return strings.Contains(url, "gitlab.com")
}

func (a *gitLabServiceAdapter) GetAuthMethods(
	username string,
	globalConfig *GlobalConfig,
) []transport.AuthMethod {
	var authMethods []transport.AuthMethod

	if globalConfig.GitLabAccessToken != "" {
		log.Infof("Using GitLab access token to authenticate")
		authMethods = append(authMethods, &http.BasicAuth{
			Username: username,
			Password: globalConfig.GitLabAccessToken,
		})
	}

	return authMethods
}

func (a *gitLabServiceAdapter) CreatePullRequest(
	globalConfig *GlobalConfig,
	repo *git.Repository,
	pr *PullRequest,
) error {
	log.Info("Creating GitLab merge request")

	gitlabClient, err := gitlab.NewClient(
		globalConfig.GitLabAccessToken,
		gitlab.WithHTTPClient(newRetryingHTTPClient()),
	)
	if err != nil {
		return fmt.Errorf("failed to create GitLab client: %w", err)
	}

	projectID, err := getGitLabProjectID(gitlabClient, repo, globalConfig.Remote)
	if err != nil {
		return err
	}

	mergeRequestOptions := &gitlab.CreateMergeRequestOptions{
		SourceBranch:       gitlab.Ptr(pr.SourceBranch),
		TargetBranch:       gitlab.Ptr(pr.TargetBranch),
		Title:              gitlab.Ptr(pr.Title),
		Description:        gitlab.Ptr(pr.Description),
		RemoveSourceBranch: gitlab.Ptr(true),
	}

	_, _, err = gitlabClient.MergeRequests.CreateMergeRequest(projectID, mergeRequestOptions)
	if err != nil {
		return fmt.Errorf("failed to create merge request: %w", err)
	}

	log.Info("Successfully created GitLab merge request")
	return nil
}

func (a *gitLabServiceAdapter) PullRequestExists(
	globalConfig *GlobalConfig,
	repo *git.Repository,
	sourceBranch string,
) (bool, error) {
	gitlabClient, err := gitlab.NewClient(
		globalConfig.GitLabAccessToken,
		gitlab.WithHTTPClient(newRetryingHTTPClient()),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	projectID, err := getGitLabProjectID(gitlabClient, repo, globalConfig.Remote)
	if err != nil {
		return false, err
	}

	mergeRequests, _, err := gitlabClient.MergeRequests.ListProjectMergeRequests(
		projectID,
		&gitlab.ListProjectMergeRequestsOptions{
			SourceBranch: gitlab.Ptr(sourceBranch),
			State:        gitlab.Ptr("opened"),
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to list merge requests: %w", err)
	}

	return len(mergeRequests) > 0, nil
}

// getGitLabProjectID resolves the numeric project ID from the remote URL.
func getGitLabProjectID(
	gitlabClient *gitlab.Client,
	repo *git.Repository,
	remoteName string,
) (int, error) {
	remoteURL, err := getRemoteRepoURL(repo, remoteName)
	if err != nil {
		return 0, err
	}

	fullProjectName, err := getRemoteRepoFullProjectName(remoteURL)
	if err != nil {
		return 0, fmt.Errorf("unsupported GitLab URL format '%s': %w", remoteURL, err)
	}

	project, _, err := gitlabClient.Projects.GetProject(fullProjectName, &gitlab.GetProjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to get GitLab project '%s': %w", fullProjectName, err)
	}

	return project.ID, nil
}
