package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	log "github.com/sirupsen/logrus"
)

// defaultChangelogTemplateURL points at the empty changelog shipped with the
// repository, used when a project has no changelog yet.
const defaultChangelogTemplateURL = "https://raw.githubusercontent.com/rios0rios0/" +
	"tagbump/main/configs/CHANGELOG.template.md"

var (
	ErrNoVersionFoundInChangelog  = errors.New("no version found in the changelog")
	ErrNoChangesFoundInUnreleased = errors.New("no changes found in the unreleased section")
)

var (
	versionHeadingRegex    = regexp.MustCompile(`^\s*##\s*\[([^\]]+)\]`)
	unreleasedHeadingRegex = regexp.MustCompile(`^\s*##\s*\[Unreleased\]`)
)

// changelogSectionOrder is the Keep a Changelog section ordering.
var changelogSectionOrder = []string{"Added", "Changed", "Deprecated", "Fixed", "Removed", "Security"}

// updateChangelogFile rolls the unreleased section of the changelog into a
// new section for the given version and rewrites the file.
func updateChangelogFile(changelogPath string, version *semver.Version) error {
	lines, err := readLines(changelogPath)
	if err != nil {
		return err
	}

	newContent, err := rollUnreleased(lines, version)
	if err != nil {
		return err
	}

	return writeLines(changelogPath, newContent)
}

// createChangelogIfNotExists creates an empty changelog file if it doesn't
// exist, from the template shipped with the repository. It reports whether
// the file already existed.
func createChangelogIfNotExists(changelogPath string) (bool, error) {
	if _, err := os.Stat(changelogPath); os.IsNotExist(err) {
		log.Warnf("Creating empty changelog file at '%s'", changelogPath)
		fileContent, err := downloadFile(defaultChangelogTemplateURL)
		if err != nil {
			log.Errorf("It wasn't possible to download the changelog template: %v", err)
			fileContent = []byte(fallbackChangelogTemplate)
		}

		err = os.WriteFile(changelogPath, fileContent, 0o644) //nolint:gosec // the changelog is not sensitive
		if err != nil {
			return false, fmt.Errorf("error creating changelog file: %w", err)
		}

		return false, nil
	}

	return true, nil
}

const fallbackChangelogTemplate = `# Changelog

All notable changes to this project will be documented in this file.

The format is based on [Keep a Changelog](https://keepachangelog.com/en/1.1.0/),
and this project adheres to [Semantic Versioning](https://semver.org/spec/v2.0.0.html).

## [Unreleased]
`

// findLatestVersion finds the highest released version in the changelog.
func findLatestVersion(lines []string) (*semver.Version, error) {
	var latestVersion *semver.Version
	for _, line := range lines {
		versionMatch := versionHeadingRegex.FindStringSubmatch(line)
		if versionMatch == nil {
			continue
		}
		if versionMatch[1] == "Unreleased" {
			continue
		}

		version, err := semver.NewVersion(versionMatch[1])
		if err != nil {
			return nil, fmt.Errorf("error parsing version '%s': %w", versionMatch[1], err)
		}

		if latestVersion == nil || version.GreaterThan(latestVersion) {
			latestVersion = version
		}
	}

	if latestVersion == nil {
		return nil, ErrNoVersionFoundInChangelog
	}

	return latestVersion, nil
}

// isChangelogUnreleasedEmpty reports whether the unreleased section carries
// no entries.
func isChangelogUnreleasedEmpty(lines []string) (bool, error) {
	entryRegex := regexp.MustCompile(`^\s*-\s*[^ ]+`)

	unreleased := false
	for _, line := range lines {
		if unreleasedHeadingRegex.MatchString(line) {
			unreleased = true
			continue
		}
		if unreleased && versionHeadingRegex.MatchString(line) {
			break
		}

		if unreleased && entryRegex.MatchString(line) {
			return false, nil
		}
	}

	return true, nil
}

// rollUnreleased moves the unreleased section into a new "## [version] - date"
// section, leaving a fresh empty unreleased section on top.
func rollUnreleased(lines []string, version *semver.Version) ([]string, error) {
	var newContent []string
	var unreleasedSection []string
	unreleased := false
	rolled := false

	for _, line := range lines {
		if unreleasedHeadingRegex.MatchString(line) {
			unreleased = true
		} else if unreleased && versionHeadingRegex.MatchString(line) {
			unreleased = false
			newSection, err := makeReleaseSections(unreleasedSection, version)
			if err != nil {
				return nil, err
			}
			newContent = append(newContent, newSection...)
			unreleasedSection = nil
			rolled = true
		}

		if unreleased {
			unreleasedSection = append(unreleasedSection, line)
		} else {
			newContent = append(newContent, line)
		}
	}

	// changelog with no released versions yet: the unreleased section runs
	// until the end of the file
	if !rolled {
		newSection, err := makeReleaseSections(unreleasedSection, version)
		if err != nil {
			return nil, err
		}
		newContent = append(newContent, newSection...)
	}

	return newContent, nil
}

// makeReleaseSections renders the new unreleased header plus the release
// section built from the current unreleased content.
func makeReleaseSections(unreleasedSection []string, version *semver.Version) ([]string, error) {
	fixSectionHeadings(unreleasedSection)

	sections := map[string]*[]string{}
	for _, key := range changelogSectionOrder {
		sections[key] = &[]string{}
	}

	entries := parseUnreleasedIntoSections(unreleasedSection, sections)
	if entries == 0 {
		return nil, ErrNoChangesFoundInUnreleased
	}

	// sort the items inside the sections alphabetically
	for _, section := range sections {
		sort.Strings(*section)
	}

	newSection := []string{
		"## [Unreleased]",
		"",
		fmt.Sprintf("## [%s] - %s", version.String(), time.Now().Format("2006-01-02")),
		"",
	}

	for _, key := range changelogSectionOrder {
		section := sections[key]
		if len(*section) > 0 {
			newSection = append(newSection, "### "+key)
			newSection = append(newSection, "")
			newSection = append(newSection, *section...)
			newSection = append(newSection, "")
		}
	}

	return newSection, nil
}

// parseUnreleasedIntoSections distributes the unreleased entries into the
// Keep a Changelog sections and returns the number of entries found.
func parseUnreleasedIntoSections(
	unreleasedSection []string,
	sections map[string]*[]string,
) int {
	var currentSection *[]string
	entries := 0

	for _, line := range unreleasedSection {
		trimmedLine := strings.TrimSpace(line)

		for header := range sections {
			if strings.HasPrefix(trimmedLine, "### "+header) {
				currentSection = sections[header]
			}
		}

		if currentSection != nil && trimmedLine != "" && trimmedLine != "-" &&
			!strings.HasPrefix(trimmedLine, "##") {
			*currentSection = append(*currentSection, line)
			entries++
		}
	}

	return entries
}

// fixSectionHeadings normalizes the section headings in the unreleased section.
func fixSectionHeadings(unreleasedSection []string) {
	re := regexp.MustCompile(`(?i)^\s*#+\s*(Added|Changed|Deprecated|Removed|Fixed|Security)`)
	for i, line := range unreleasedSection {
		if re.MatchString(line) {
			correctedLine := "### " + strings.TrimSpace(strings.ReplaceAll(line, "#", ""))
			unreleasedSection[i] = correctedLine
		}
	}
}

// insertUnreleasedEntries adds the given entries under a "### Changed"
// heading inside the unreleased section, skipping entries already present
// anywhere in the changelog.
func insertUnreleasedEntries(lines []string, entries []string) ([]string, int) {
	var fresh []string
	for _, entry := range entries {
		duplicate := false
		for _, line := range lines {
			if strings.TrimSpace(line) == strings.TrimSpace(entry) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			fresh = append(fresh, entry)
		}
	}

	if len(fresh) == 0 {
		return lines, 0
	}

	if changedIndex := findUnreleasedChangedHeading(lines); changedIndex >= 0 {
		insertAt := changedIndex + 1
		if insertAt < len(lines) && strings.TrimSpace(lines[insertAt]) == "" {
			insertAt++
		}
		var newContent []string
		newContent = append(newContent, lines[:insertAt]...)
		newContent = append(newContent, fresh...)
		newContent = append(newContent, lines[insertAt:]...)
		return newContent, len(fresh)
	}

	var newContent []string
	inserted := false
	for _, line := range lines {
		newContent = append(newContent, line)
		if !inserted && unreleasedHeadingRegex.MatchString(line) {
			newContent = append(newContent, "")
			newContent = append(newContent, "### Changed")
			newContent = append(newContent, "")
			newContent = append(newContent, fresh...)
			inserted = true
		}
	}

	if !inserted {
		// no unreleased section at all, add one at the end
		newContent = append(newContent, "", "## [Unreleased]", "", "### Changed", "")
		newContent = append(newContent, fresh...)
	}

	return newContent, len(fresh)
}

// findUnreleasedChangedHeading returns the index of a "### Changed" heading
// inside the unreleased section, or -1 when there is none.
func findUnreleasedChangedHeading(lines []string) int {
	unreleased := false
	for i, line := range lines {
		if unreleasedHeadingRegex.MatchString(line) {
			unreleased = true
			continue
		}
		if unreleased && versionHeadingRegex.MatchString(line) {
			break
		}
		if unreleased && strings.HasPrefix(strings.TrimSpace(line), "### Changed") {
			return i
		}
	}
	return -1
}
