package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultConfigURL is the URL of the default configuration file, used as the
// last resort when no config file is found locally.
const DefaultConfigURL = "https://raw.githubusercontent.com/rios0rios0/" +
	"tagbump/main/configs/tagbump.yaml"

const (
	defaultMainBranch    = "main"
	defaultRemote        = "origin"
	defaultTagTemplate   = "{version}"
	defaultDevSuffix     = ".dev0"
	defaultChangelogPath = "CHANGELOG.md"
)

var ErrConfigKeyMissing = errors.New("missing config key")

// GlobalConfig represents the top-level configuration.
type GlobalConfig struct {
	ProjectName       string        `yaml:"project_name"`
	MainBranch        string        `yaml:"main_branch"`
	Remote            string        `yaml:"remote"`
	TagTemplate       string        `yaml:"tag_template"`
	DevSuffix         string        `yaml:"dev_suffix"`
	ChangelogPath     string        `yaml:"changelog_path"`
	VersionFiles      []VersionFile `yaml:"version_files"`
	GitHubAccessToken string        `yaml:"github_access_token"`
	GitLabAccessToken string        `yaml:"gitlab_access_token"`
	GpgKeyPath        string        `yaml:"gpg_key_path"`
}

// VersionFile describes a file that contains version information, together
// with the regex patterns that locate the version number inside it.
type VersionFile struct {
	Path     string   `yaml:"path"`
	Patterns []string `yaml:"patterns"`
}

// ReadConfig reads the config file (or URL, for the repository default) and
// returns a GlobalConfig struct.
func ReadConfig(configPath string) (*GlobalConfig, error) {
	var data []byte
	var err error

	if strings.HasPrefix(configPath, "https://") {
		data, err = downloadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to download default config: %w", err)
		}
		// the repository default may carry keys from newer releases
		return DecodeConfig(data, false)
	}

	data, err = os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	globalConfig, err := DecodeConfig(data, true)
	if err != nil {
		return nil, err
	}

	applyConfigDefaults(globalConfig)

	handleTokenFile("GitHub", &globalConfig.GitHubAccessToken)
	handleTokenFile("GitLab", &globalConfig.GitLabAccessToken)
	handleTokenEnv("TAGBUMP_GITHUB_TOKEN", &globalConfig.GitHubAccessToken)
	handleTokenEnv("TAGBUMP_GITLAB_TOKEN", &globalConfig.GitLabAccessToken)

	return globalConfig, nil
}

// DecodeConfig decodes the config file and returns a GlobalConfig struct.
// If strict is true, unknown fields will cause an error (for user config).
// If strict is false, unknown fields will be ignored (for the default config).
func DecodeConfig(data []byte, strict bool) (*GlobalConfig, error) {
	var globalConfig GlobalConfig

	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(strict)
	err := decoder.Decode(&globalConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &globalConfig, nil
}

// applyConfigDefaults fills the optional keys with their documented defaults.
func applyConfigDefaults(globalConfig *GlobalConfig) {
	if globalConfig.MainBranch == "" {
		globalConfig.MainBranch = defaultMainBranch
	}
	if globalConfig.Remote == "" {
		globalConfig.Remote = defaultRemote
	}
	if globalConfig.TagTemplate == "" {
		globalConfig.TagTemplate = defaultTagTemplate
	}
	if globalConfig.DevSuffix == "" {
		globalConfig.DevSuffix = defaultDevSuffix
	}
	if globalConfig.ChangelogPath == "" {
		globalConfig.ChangelogPath = defaultChangelogPath
	}
}

// handleTokenFile reads the token from a file if the value names one,
// replacing the token string with the file content.
func handleTokenFile(name string, token *string) {
	if *token == "" {
		return
	}
	if _, err := os.Stat(*token); !os.IsNotExist(err) {
		log.Infof("Reading %s access token from file %s", name, *token)
		fileToken, err := os.ReadFile(*token)
		if err != nil {
			log.Errorf("Failed to read %s access token: %v", name, err)
			return
		}
		*token = strings.TrimSpace(string(fileToken))
	}
}

// handleTokenEnv fills an empty token from the given environment variable.
func handleTokenEnv(envVar string, token *string) {
	if *token == "" {
		*token = os.Getenv(envVar)
	}
}

// ValidateGlobalConfig validates the global config and reports all the
// missing keys at once.
func ValidateGlobalConfig(globalConfig *GlobalConfig) error {
	var missingKeys []string

	if len(globalConfig.VersionFiles) == 0 {
		missingKeys = append(missingKeys, "version_files")
	}

	for index, versionFile := range globalConfig.VersionFiles {
		if versionFile.Path == "" {
			missingKeys = append(missingKeys, fmt.Sprintf("version_files[%d].path", index))
		}
		if len(versionFile.Patterns) == 0 {
			missingKeys = append(missingKeys, fmt.Sprintf("version_files[%d].patterns", index))
		}
	}

	if len(missingKeys) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigKeyMissing, strings.Join(missingKeys, ", "))
	}

	return nil
}

// FindConfigOnMissing finds the config file if not manually set. It looks at
// the repository root first, then the user config directory, and falls back
// to the published repository default.
func FindConfigOnMissing(configPath string) string {
	if configPath != "" {
		return configPath
	}

	log.Info("No config file specified, searching the default locations")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	locations := []string{
		".tagbump.yaml",
		".tagbump.yml",
	}
	if homeDir != "" {
		locations = append(
			locations,
			filepath.Join(homeDir, ".config", "tagbump", "tagbump.yaml"),
		)
	}

	configPath, err = findFile(locations, "config file")
	if err != nil {
		log.Warn(
			"Config file not found in default locations, " +
				"using the repository configuration as the last resort",
		)
		configPath = DefaultConfigURL
	}

	log.Infof("Using config file: \"%v\"", configPath)
	return configPath
}
