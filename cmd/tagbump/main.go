package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// cliConfig holds the CLI-level configuration flags.
type cliConfig struct {
	configPath string
	noTag      bool
	assumeYes  bool
}

// loadConfigAndProject finds, reads and validates the config file and
// resolves the project path.
func loadConfigAndProject(configPath string) (*GlobalConfig, string, error) {
	configPath = FindConfigOnMissing(configPath)

	globalConfig, err := ReadConfig(configPath)
	if err != nil {
		return nil, "", err
	}

	if err = ValidateGlobalConfig(globalConfig); err != nil {
		return nil, "", fmt.Errorf("config validation failed: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get the current working directory: %w", err)
	}

	return globalConfig, cwd, nil
}

func initRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tagbump",
		Short: "tagbump cuts releases: bump, changelog, commit, tag, push",
		Long: `tagbump automates cutting a release of a Python package:
it resets the local main branch to the remote, rewrites the version in the
configured files, rolls the unreleased changelog section into the new
release, commits, creates the tag and pushes it so CI publishes the package.`,
	}
}

func initReleaseCmd(cfg *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release <version>",
		Short: "Cut a release: bump files, roll the changelog, commit, tag and push",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			globalConfig, projectPath, err := loadConfigAndProject(cfg.configPath)
			if err != nil {
				return err
			}

			return releaseProject(globalConfig, projectPath, args[0], &releaseOptions{
				NoTag:     cfg.noTag,
				AssumeYes: cfg.assumeYes,
			})
		},
	}
	cmd.Flags().BoolVar(&cfg.noTag, "no-tag", false, "bump and push without creating a tag")
	return cmd
}

func initDevCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "dev <version>",
		Short: "Set the post-release dev version (no tag is created)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			globalConfig, projectPath, err := loadConfigAndProject(cfg.configPath)
			if err != nil {
				return err
			}

			return bumpDevVersion(globalConfig, projectPath, args[0], &releaseOptions{
				AssumeYes: cfg.assumeYes,
			})
		},
	}
}

func initChangelogCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "changelog",
		Short: "Collect merged pull requests into the changelog and open a pull request",
		RunE: func(_ *cobra.Command, _ []string) error {
			globalConfig, projectPath, err := loadConfigAndProject(cfg.configPath)
			if err != nil {
				return err
			}

			return updateChangelogBranch(globalConfig, projectPath)
		},
	}
}

func initCheckCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the config and that the current version is findable in the version files",
		RunE: func(_ *cobra.Command, _ []string) error {
			globalConfig, projectPath, err := loadConfigAndProject(cfg.configPath)
			if err != nil {
				return err
			}

			return checkProject(globalConfig, projectPath)
		},
	}
}

func main() {
	cfg := &cliConfig{}

	rootCmd := initRootCmd()
	rootCmd.PersistentFlags().StringVarP(&cfg.configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&cfg.assumeYes, "yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(
		initReleaseCmd(cfg),
		initDevCmd(cfg),
		initChangelogCmd(cfg),
		initCheckCmd(cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
