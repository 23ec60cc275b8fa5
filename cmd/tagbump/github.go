package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
)

type gitHubServiceAdapter struct{}

func (a *gitHubServiceAdapter) GetServiceType() ServiceType {
	return GITHUB
}

func (a *gitHubServiceAdapter) MatchesURL(url string) bool {
	return strings.Contains(url, "github.com")
}

func (a *gitHubServiceAdapter) GetAuthMethods(
	_ string, // username not used for GitHub
	globalConfig *GlobalConfig,
) []transport.AuthMethod {
	var authMethods []transport.AuthMethod

	if globalConfig.GitHubAccessToken != "" {
		log.Infof("Using GitHub access token to authenticate")
		authMethods = append(authMethods, &http.BasicAuth{
			Username: "x-access-token",
			Password: globalConfig.GitHubAccessToken,
		})
	}

	return authMethods
}

func (a *gitHubServiceAdapter) CreatePullRequest(
	globalConfig *GlobalConfig,
	repo *git.Repository,
	pr *PullRequest,
) error {
	log.Info("Creating GitHub pull request")

	ctx := context.Background()
	client := newGitHubClient(globalConfig.GitHubAccessToken)

	owner, repoName, err := getGitHubRepoInfo(repo, globalConfig.Remote)
	if err != nil {
		return err
	}

	maintainerCanModify := true
	pullRequestOptions := &github.NewPullRequest{
		Title:               &pr.Title,
		Body:                &pr.Description,
		Head:                &pr.SourceBranch,
		Base:                &pr.TargetBranch,
		MaintainerCanModify: &maintainerCanModify,
	}

	_, _, err = client.PullRequests.Create(ctx, owner, repoName, pullRequestOptions)
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}

	log.Info("Successfully created GitHub pull request")
	return nil
}

func (a *gitHubServiceAdapter) PullRequestExists(
	globalConfig *GlobalConfig,
	repo *git.Repository,
	sourceBranch string,
) (bool, error) {
	ctx := context.Background()
	client := newGitHubClient(globalConfig.GitHubAccessToken)

	owner, repoName, err := getGitHubRepoInfo(repo, globalConfig.Remote)
	if err != nil {
		return false, err
	}

	pulls, _, err := client.PullRequests.List(ctx, owner, repoName, &github.PullRequestListOptions{
		State: "open",
		Head:  owner + ":" + sourceBranch,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list pull requests: %w", err)
	}

	return len(pulls) > 0, nil
}

// newGitHubClient builds a GitHub API client on top of the retrying HTTP
// client, authenticated when a token is available.
func newGitHubClient(accessToken string) *github.Client {
	client := github.NewClient(newRetryingHTTPClient())
	if accessToken != "" {
		client = client.WithAuthToken(accessToken)
	}
	return client
}

// getGitHubRepoInfo extracts owner and repository name from the remote URL.
func getGitHubRepoInfo(repo *git.Repository, remoteName string) (string, string, error) {
	remoteURL, err := getRemoteRepoURL(repo, remoteName)
	if err != nil {
		return "", "", err
	}
	return parseGitHubURL(remoteURL)
}

// parseGitHubURL extracts owner and repository name from an SSH or HTTPS
// GitHub URL.
func parseGitHubURL(remoteURL string) (string, string, error) {
	fullProjectName, err := getRemoteRepoFullProjectName(remoteURL)
	if err != nil {
		return "", "", fmt.Errorf("unsupported GitHub URL format '%s': %w", remoteURL, err)
	}

	parts := strings.Split(fullProjectName, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("could not parse owner and repository name from URL: %s", remoteURL)
	}

	return parts[0], parts[1], nil
}
