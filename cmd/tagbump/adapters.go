package main

import (
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// ServiceType identifies a git hosting service.
type ServiceType string

const (
	UNKNOWN ServiceType = "Unknown"
	GITHUB  ServiceType = "GitHub"
	GITLAB  ServiceType = "GitLab"
)

// PullRequest describes the pull/merge request the adapters open.
type PullRequest struct {
	SourceBranch string
	TargetBranch string
	Title        string
	Description  string
}

// GitServiceAdapter defines the interface for git hosting service adapters.
// Each adapter handles authentication and pull request creation for a
// specific git hosting service.
type GitServiceAdapter interface {
	// GetServiceType returns the service type identifier for this adapter.
	GetServiceType() ServiceType

	// MatchesURL returns true if the given remote URL belongs to this service.
	MatchesURL(url string) bool

	// GetAuthMethods returns the authentication methods for this service,
	// in order of precedence.
	GetAuthMethods(username string, globalConfig *GlobalConfig) []transport.AuthMethod

	// CreatePullRequest creates a pull/merge request on this service.
	CreatePullRequest(globalConfig *GlobalConfig, repo *git.Repository, pr *PullRequest) error

	// PullRequestExists checks if an open pull request already exists for
	// the given source branch.
	PullRequestExists(globalConfig *GlobalConfig, repo *git.Repository, sourceBranch string) (bool, error)
}

// gitServiceRegistry holds all registered git service adapters.
var gitServiceRegistry []GitServiceAdapter

// RegisterGitServiceAdapter registers a new git service adapter.
func RegisterGitServiceAdapter(adapter GitServiceAdapter) {
	gitServiceRegistry = append(gitServiceRegistry, adapter)
}

// GetAdapterByURL returns the appropriate adapter for the given URL.
func GetAdapterByURL(url string) GitServiceAdapter {
	for _, adapter := range gitServiceRegistry {
		if adapter.MatchesURL(url) {
			return adapter
		}
	}
	return nil
}

// GetAdapterByServiceType returns the adapter for the given service type.
func GetAdapterByServiceType(serviceType ServiceType) GitServiceAdapter {
	for _, adapter := range gitServiceRegistry {
		if adapter.GetServiceType() == serviceType {
			return adapter
		}
	}
	return nil
}

// getServiceTypeByURL returns the type of the remote service by URL.
func getServiceTypeByURL(remoteURL string) ServiceType {
	if adapter := GetAdapterByURL(remoteURL); adapter != nil {
		return adapter.GetServiceType()
	}
	return UNKNOWN
}

// getRemoteServiceType returns the type of the service the remote points at.
func getRemoteServiceType(repo *git.Repository, remoteName string) (ServiceType, error) {
	remoteURL, err := getRemoteRepoURL(repo, remoteName)
	if err != nil {
		return UNKNOWN, err
	}
	return getServiceTypeByURL(remoteURL), nil
}

// getRemoteRepoFullProjectName extracts the "owner/name" path from an SSH or
// HTTPS remote URL.
func getRemoteRepoFullProjectName(remoteURL string) (string, error) {
	trimmedURL := strings.TrimSuffix(remoteURL, ".git")

	if strings.HasPrefix(trimmedURL, "git@") {
		parts := strings.Split(trimmedURL, ":")
		if len(parts) == 2 {
			return parts[1], nil
		}
		return "", ErrUnsupportedRemoteURL
	}

	if strings.HasPrefix(trimmedURL, "https://") || strings.HasPrefix(trimmedURL, "http://") {
		parts := strings.SplitN(trimmedURL, "/", 4)
		if len(parts) >= 4 {
			return parts[3], nil
		}
		return "", ErrUnsupportedRemoteURL
	}

	return "", ErrUnsupportedRemoteURL
}

// init registers all available adapters.
func init() {
	RegisterGitServiceAdapter(&gitHubServiceAdapter{})
	RegisterGitServiceAdapter(&gitLabServiceAdapter{})
}
