package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
)

var ErrActivityNotSupported = errors.New("merged pull request collection is only supported for GitHub remotes")

// pullRequestActivity is a merged pull request worth a changelog entry.
type pullRequestActivity struct {
	Number int
	Title  string
	URL    string
}

// collectMergedPullRequests lists the pull requests merged into the project
// since the given date, newest last.
func collectMergedPullRequests(
	ctx context.Context,
	client *github.Client,
	owner string,
	repoName string,
	since time.Time,
) ([]pullRequestActivity, error) {
	query := fmt.Sprintf(
		"repo:%s/%s is:pr is:merged merged:>=%s",
		owner, repoName, since.Format("2006-01-02"),
	)
	log.Infof("Searching merged pull requests: %s", query)

	var activity []pullRequestActivity
	opts := &github.SearchOptions{
		Sort:        "created",
		Order:       "asc",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		result, resp, err := client.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search merged pull requests: %w", err)
		}

		for _, issue := range result.Issues {
			activity = append(activity, pullRequestActivity{
				Number: issue.GetNumber(),
				Title:  issue.GetTitle(),
				URL:    issue.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	log.Infof("Found %d merged pull requests since %s", len(activity), since.Format("2006-01-02"))
	return activity, nil
}

// formatActivityEntries renders the merged pull requests as changelog bullets.
func formatActivityEntries(activity []pullRequestActivity) []string {
	var entries []string
	for _, pr := range activity {
		entries = append(entries, fmt.Sprintf("- %s ([#%d](%s))", pr.Title, pr.Number, pr.URL))
	}
	return entries
}

// collectActivitySince gathers changelog bullets for everything merged since
// the latest release tag. A repository with no tags yet collects the whole
// history.
func collectActivitySince(
	ctx context.Context,
	globalConfig *GlobalConfig,
	repo *git.Repository,
) ([]string, error) {
	serviceType, err := getRemoteServiceType(repo, globalConfig.Remote)
	if err != nil {
		return nil, err
	}
	if serviceType != GITHUB {
		return nil, fmt.Errorf("%w: remote is %s", ErrActivityNotSupported, serviceType)
	}

	owner, repoName, err := getGitHubRepoInfo(repo, globalConfig.Remote)
	if err != nil {
		return nil, err
	}

	since := time.Time{}
	tag, err := getLatestTag(repo, globalConfig.TagTemplate)
	if err == nil {
		since = tag.Date
	} else {
		log.Warnf("No release tag found, collecting the whole pull request history: %v", err)
	}

	client := newGitHubClient(globalConfig.GitHubAccessToken)
	activity, err := collectMergedPullRequests(ctx, client, owner, repoName, since)
	if err != nil {
		return nil, err
	}

	return formatActivityEntries(activity), nil
}
