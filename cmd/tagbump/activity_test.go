package main

import (
	"context"
	"testing"

	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatActivityEntries(t *testing.T) {
	t.Run("should render merged pull requests as changelog bullets", func(t *testing.T) {
		// given
		activity := []pullRequestActivity{
			{Number: 12, Title: "Fix the widget", URL: "https://example.test/12"},
			{Number: 13, Title: "Add the gadget", URL: "https://example.test/13"},
		}

		// when
		entries := formatActivityEntries(activity)

		// then
		assert.Equal(t, []string{
			"- Fix the widget ([#12](https://example.test/12))",
			"- Add the gadget ([#13](https://example.test/13))",
		}, entries)
	})

	t.Run("should render nothing for empty activity", func(t *testing.T) {
		// when
		entries := formatActivityEntries(nil)

		// then
		assert.Empty(t, entries)
	})
}

func TestCollectActivitySince(t *testing.T) {
	t.Run("should reject a remote that is not hosted on GitHub", func(t *testing.T) {
		// given
		repo, _, _ := initTestRepo(t)
		_, err := repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: "origin",
			URLs: []string{"git@gitlab.com:owner/repo.git"},
		})
		require.NoError(t, err)

		globalConfig := &GlobalConfig{}
		applyConfigDefaults(globalConfig)

		// when
		_, err = collectActivitySince(context.Background(), globalConfig, repo)

		// then
		require.ErrorIs(t, err, ErrActivityNotSupported, "should return ErrActivityNotSupported")
	})
}
