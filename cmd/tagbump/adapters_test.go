package main

import (
	"testing"

	"github.com/go-faker/faker/v4"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceTypeByURL(t *testing.T) {
	t.Run("should detect GitHub URLs", func(t *testing.T) {
		assert.Equal(t, GITHUB, getServiceTypeByURL("git@github.com:owner/repo.git"))
		assert.Equal(t, GITHUB, getServiceTypeByURL("https://github.com/owner/repo.git"))
	})

	t.Run("should detect GitLab URLs", func(t *testing.T) {
		assert.Equal(t, GITLAB, getServiceTypeByURL("git@gitlab.com:owner/repo.git"))
		assert.Equal(t, GITLAB, getServiceTypeByURL("https://gitlab.com/owner/repo.git"))
	})

	t.Run("should report unknown services", func(t *testing.T) {
		assert.Equal(t, UNKNOWN, getServiceTypeByURL("https://example.test/owner/repo.git"))
	})
}

func TestGetRemoteRepoFullProjectName(t *testing.T) {
	t.Run("should parse an SSH URL", func(t *testing.T) {
		// when
		fullProjectName, err := getRemoteRepoFullProjectName("git@github.com:owner/repo.git")

		// then
		require.NoError(t, err, "should not return an error")
		assert.Equal(t, "owner/repo", fullProjectName)
	})

	t.Run("should parse an HTTPS URL", func(t *testing.T) {
		// when
		fullProjectName, err := getRemoteRepoFullProjectName("https://gitlab.com/group/subgroup/repo.git")

		// then
		require.NoError(t, err, "should not return an error")
		assert.Equal(t, "group/subgroup/repo", fullProjectName)
	})

	t.Run("should reject other URL schemes", func(t *testing.T) {
		// when
		_, err := getRemoteRepoFullProjectName("ftp://example.test/owner/repo")

		// then
		require.ErrorIs(t, err, ErrUnsupportedRemoteURL, "should return ErrUnsupportedRemoteURL")
	})
}

func TestParseGitHubURL(t *testing.T) {
	t.Run("should extract owner and repository from an SSH URL", func(t *testing.T) {
		// when
		owner, repoName, err := parseGitHubURL("git@github.com:jupyterhub/some-proxy.git")

		// then
		require.NoError(t, err, "should not return an error")
		assert.Equal(t, "jupyterhub", owner)
		assert.Equal(t, "some-proxy", repoName)
	})

	t.Run("should extract owner and repository from an HTTPS URL", func(t *testing.T) {
		// when
		owner, repoName, err := parseGitHubURL("https://github.com/octocat/hello-world")

		// then
		require.NoError(t, err, "should not return an error")
		assert.Equal(t, "octocat", owner)
		assert.Equal(t, "hello-world", repoName)
	})
}

func TestGitHubAdapterAuthMethods(t *testing.T) {
	t.Run("should authenticate with the access token", func(t *testing.T) {
		// given
		token := faker.Password()
		adapter := &gitHubServiceAdapter{}
		globalConfig := &GlobalConfig{GitHubAccessToken: token}

		// when
		authMethods := adapter.GetAuthMethods("", globalConfig)

		// then
		require.Len(t, authMethods, 1)
		basicAuth, ok := authMethods[0].(*http.BasicAuth)
		require.True(t, ok, "auth method should be basic auth")
		assert.Equal(t, "x-access-token", basicAuth.Username)
		assert.Equal(t, token, basicAuth.Password)
	})

	t.Run("should return no auth methods without a token", func(t *testing.T) {
		// given
		adapter := &gitHubServiceAdapter{}

		// when
		authMethods := adapter.GetAuthMethods("", &GlobalConfig{})

		// then
		assert.Empty(t, authMethods)
	})
}

func TestGitLabAdapterAuthMethods(t *testing.T) {
	t.Run("should authenticate with the configured username and token", func(t *testing.T) {
		// given
		token := faker.Password()
		username := faker.Username()
		adapter := &gitLabServiceAdapter{}
		globalConfig := &GlobalConfig{GitLabAccessToken: token}

		// when
		authMethods := adapter.GetAuthMethods(username, globalConfig)

		// then
		require.Len(t, authMethods, 1)
		basicAuth, ok := authMethods[0].(*http.BasicAuth)
		require.True(t, ok, "auth method should be basic auth")
		assert.Equal(t, username, basicAuth.Username)
		assert.Equal(t, token, basicAuth.Password)
	})
}
