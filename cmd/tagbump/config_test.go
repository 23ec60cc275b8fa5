package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	t.Run("should decode a valid config", func(t *testing.T) {
		// given
		data := []byte(`
main_branch: trunk
tag_template: "v{version}"
version_files:
  - path: pyproject.toml
    patterns:
      - '(version = ")[^"]+(")'
`)

		// when
		globalConfig, err := DecodeConfig(data, true)

		// then
		require.NoError(t, err, "should not return an error for valid config")
		assert.Equal(t, "trunk", globalConfig.MainBranch)
		assert.Equal(t, "v{version}", globalConfig.TagTemplate)
		require.Len(t, globalConfig.VersionFiles, 1)
		assert.Equal(t, "pyproject.toml", globalConfig.VersionFiles[0].Path)
	})

	t.Run("should reject unknown keys in strict mode", func(t *testing.T) {
		// given
		data := []byte("unknown_key: value\n")

		// when
		_, err := DecodeConfig(data, true)

		// then
		require.Error(t, err, "should return an error for unknown keys")
	})

	t.Run("should ignore unknown keys in lenient mode", func(t *testing.T) {
		// given
		data := []byte("unknown_key: value\nmain_branch: main\n")

		// when
		globalConfig, err := DecodeConfig(data, false)

		// then
		require.NoError(t, err, "should not return an error in lenient mode")
		assert.Equal(t, "main", globalConfig.MainBranch)
	})
}

func TestReadConfig(t *testing.T) {
	t.Run("should apply defaults for missing optional keys", func(t *testing.T) {
		// given
		configPath := filepath.Join(t.TempDir(), ".tagbump.yaml")
		data := "version_files:\n  - path: pyproject.toml\n    patterns:\n      - '(version = \")[^\"]+(\")'\n"
		require.NoError(t, os.WriteFile(configPath, []byte(data), 0o644))

		// when
		globalConfig, err := ReadConfig(configPath)

		// then
		require.NoError(t, err, "should not return an error")
		assert.Equal(t, "main", globalConfig.MainBranch)
		assert.Equal(t, "origin", globalConfig.Remote)
		assert.Equal(t, "{version}", globalConfig.TagTemplate)
		assert.Equal(t, ".dev0", globalConfig.DevSuffix)
		assert.Equal(t, "CHANGELOG.md", globalConfig.ChangelogPath)
	})

	t.Run("should read a token from a file when the value names one", func(t *testing.T) {
		// given
		tmpDir := t.TempDir()
		token := faker.Password()
		tokenPath := filepath.Join(tmpDir, "github-token")
		require.NoError(t, os.WriteFile(tokenPath, []byte(token+"\n"), 0o600))

		configPath := filepath.Join(tmpDir, ".tagbump.yaml")
		data := "github_access_token: " + tokenPath + "\n"
		require.NoError(t, os.WriteFile(configPath, []byte(data), 0o644))

		// when
		globalConfig, err := ReadConfig(configPath)

		// then
		require.NoError(t, err, "should not return an error")
		assert.Equal(t, token, globalConfig.GitHubAccessToken)
	})

	t.Run("should return an error when the file does not exist", func(t *testing.T) {
		// given
		configPath := filepath.Join(t.TempDir(), "missing.yaml")

		// when
		_, err := ReadConfig(configPath)

		// then
		require.Error(t, err, "should return an error for a missing file")
	})
}

func TestValidateGlobalConfig(t *testing.T) {
	t.Run("should validate successfully when version files are present", func(t *testing.T) {
		// given
		globalConfig := &GlobalConfig{
			VersionFiles: []VersionFile{
				{Path: "pyproject.toml", Patterns: []string{`(version = ")[^"]+(")`}},
			},
		}

		// when
		err := ValidateGlobalConfig(globalConfig)

		// then
		require.NoError(t, err, "should not return an error for valid config")
	})

	t.Run("should return error when version files are missing", func(t *testing.T) {
		// given
		globalConfig := &GlobalConfig{}

		// when
		err := ValidateGlobalConfig(globalConfig)

		// then
		require.ErrorIs(t, err, ErrConfigKeyMissing, "should return ErrConfigKeyMissing")
	})

	t.Run("should report every missing key at once", func(t *testing.T) {
		// given
		globalConfig := &GlobalConfig{
			VersionFiles: []VersionFile{
				{Path: "", Patterns: nil},
			},
		}

		// when
		err := ValidateGlobalConfig(globalConfig)

		// then
		require.ErrorIs(t, err, ErrConfigKeyMissing, "should return ErrConfigKeyMissing")
		assert.Contains(t, err.Error(), "version_files[0].path")
		assert.Contains(t, err.Error(), "version_files[0].patterns")
	})
}

func TestFindConfigOnMissing(t *testing.T) {
	t.Run("should keep a manually set config path", func(t *testing.T) {
		// given
		configPath := faker.Word() + ".yaml"

		// when
		result := FindConfigOnMissing(configPath)

		// then
		assert.Equal(t, configPath, result)
	})
}
