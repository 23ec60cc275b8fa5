package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

var ErrNoVersionInPyProject = errors.New("pyproject.toml has no project.version field")

// PyProject maps the subset of pyproject.toml this tool cares about.
type PyProject struct {
	Project Project `toml:"project"`
}

type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// readPyProject decodes the pyproject.toml of the package being released.
func readPyProject(projectPath string) (*PyProject, error) {
	pyprojectTomlPath := filepath.Join(projectPath, "pyproject.toml")

	if _, err := os.Stat(pyprojectTomlPath); err != nil {
		return nil, fmt.Errorf("failed to stat pyproject.toml: %w", err)
	}

	var pyProject PyProject
	if _, err := toml.DecodeFile(pyprojectTomlPath, &pyProject); err != nil {
		return nil, fmt.Errorf("failed to decode pyproject.toml: %w", err)
	}

	return &pyProject, nil
}

// resolveProjectName returns the configured project name, falling back to the
// pyproject.toml name and finally the directory basename.
func resolveProjectName(globalConfig *GlobalConfig, projectPath string) string {
	if globalConfig.ProjectName != "" {
		return globalConfig.ProjectName
	}

	if pyProject, err := readPyProject(projectPath); err == nil && pyProject.Project.Name != "" {
		return pyProject.Project.Name
	}

	return filepath.Base(projectPath)
}

// resolveCurrentVersion returns the version currently embedded in the package.
func resolveCurrentVersion(projectPath string) (string, error) {
	pyProject, err := readPyProject(projectPath)
	if err != nil {
		return "", err
	}
	if pyProject.Project.Version == "" {
		return "", ErrNoVersionInPyProject
	}
	return pyProject.Project.Version, nil
}
