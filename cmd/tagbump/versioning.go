package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNoVersionFileFound = errors.New("no version file found")
	ErrVersionNotGreater  = errors.New("target version is not greater than the current one")
	ErrInvalidDevVersion  = errors.New("invalid dev version")
	ErrVersionNotInFile   = errors.New("version not found in file")
)

// parseReleaseVersion parses a strict semver release version.
func parseReleaseVersion(raw string) (*semver.Version, error) {
	version, err := semver.StrictNewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		return nil, fmt.Errorf("invalid version '%s': %w", raw, err)
	}
	return version, nil
}

// parseDevVersion validates a dev version of the form "<semver><suffix>"
// (e.g. "1.3.0.dev0") and returns its semver base.
func parseDevVersion(raw string, devSuffix string) (*semver.Version, error) {
	base, found := strings.CutSuffix(raw, devSuffix)
	if !found {
		return nil, fmt.Errorf("%w: '%s' does not end with '%s'", ErrInvalidDevVersion, raw, devSuffix)
	}

	version, err := parseReleaseVersion(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDevVersion, err)
	}
	return version, nil
}

// buildDevVersion renders the dev version string for the given base version.
func buildDevVersion(base *semver.Version, devSuffix string) string {
	return base.String() + devSuffix
}

// renderTagName renders the tag name for a version using the tag template.
func renderTagName(tagTemplate string, version string) string {
	return strings.ReplaceAll(tagTemplate, "{version}", version)
}

// getVersionFiles returns the files in the project that contain the
// software's version number, expanding globs and the {project_name}
// placeholder. A Python package directory uses underscores where the
// distribution name uses dashes.
func getVersionFiles(globalConfig *GlobalConfig, projectPath string) ([]VersionFile, error) {
	projectName := resolveProjectName(globalConfig, projectPath)
	projectName = strings.ReplaceAll(projectName, "-", "_")

	var versionFiles []VersionFile
	for _, versionFile := range globalConfig.VersionFiles {
		matches, err := filepath.Glob(
			filepath.Join(
				projectPath,
				strings.ReplaceAll(versionFile.Path, "{project_name}", projectName),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to expand version file glob: %w", err)
		}
		for _, match := range matches {
			versionFiles = append(versionFiles, VersionFile{
				Path:     match,
				Patterns: versionFile.Patterns,
			})
		}
	}
	return versionFiles, nil
}

// updateVersionFiles rewrites the version in every configured version file.
// This function fails fast upon the first error.
func updateVersionFiles(globalConfig *GlobalConfig, projectPath string, newVersion string) error {
	versionFiles, err := getVersionFiles(globalConfig, projectPath)
	if err != nil {
		return err
	}

	oneVersionFileExists := false
	for _, versionFile := range versionFiles {
		info, err := os.Stat(versionFile.Path)
		if os.IsNotExist(err) {
			log.Warnf("Version file %s does not exist", versionFile.Path)
			continue
		}
		log.Infof("Updating version file %s", versionFile.Path)

		originalFileMode := info.Mode()
		oneVersionFileExists = true

		content, err := os.ReadFile(versionFile.Path)
		if err != nil {
			return fmt.Errorf("failed to read version file: %w", err)
		}

		updatedContent := string(content)
		for _, pattern := range versionFile.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("invalid version pattern '%s': %w", pattern, err)
			}
			updatedContent = re.ReplaceAllString(updatedContent, "${1}"+newVersion+"${2}")
		}

		err = os.WriteFile(versionFile.Path, []byte(updatedContent), originalFileMode)
		if err != nil {
			return fmt.Errorf("failed to write version file: %w", err)
		}
	}

	if !oneVersionFileExists {
		return ErrNoVersionFileFound
	}

	return nil
}

// checkVersionFiles verifies that every existing version file matches at
// least one pattern against the current version. This is the sanity check the
// release flow runs before touching anything.
func checkVersionFiles(globalConfig *GlobalConfig, projectPath string, currentVersion string) error {
	versionFiles, err := getVersionFiles(globalConfig, projectPath)
	if err != nil {
		return err
	}

	oneVersionFileExists := false
	for _, versionFile := range versionFiles {
		if _, err := os.Stat(versionFile.Path); os.IsNotExist(err) {
			log.Warnf("Version file %s does not exist", versionFile.Path)
			continue
		}
		oneVersionFileExists = true

		content, err := os.ReadFile(versionFile.Path)
		if err != nil {
			return fmt.Errorf("failed to read version file: %w", err)
		}

		matched := false
		for _, pattern := range versionFile.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("invalid version pattern '%s': %w", pattern, err)
			}
			for _, match := range re.FindAllStringSubmatch(string(content), -1) {
				// the version sits between the two capture groups
				full := match[0]
				if strings.Contains(full, currentVersion) {
					matched = true
					break
				}
			}
		}
		if !matched {
			return fmt.Errorf("%w: %s does not contain version %s",
				ErrVersionNotInFile, versionFile.Path, currentVersion)
		}
	}

	if !oneVersionFileExists {
		return ErrNoVersionFileFound
	}

	return nil
}
