package model

import (
	"strings"
	"time"
)

// Author of a commit or build.
type Author struct {
	Name  string
	Email string
}

// Build is one CI run. Status is normalised to "success", "failed",
// "running", "pending", "canceled", "skipped" or "".
type Build struct {
	ID          string
	Name        string
	Status      string
	Tags        []string
	Cause       string // "push", "manual", "retry", "snapshot", ...
	Author      Author
	DateStarted time.Time
	Target      Target
	WebURL      string
}

// Target is what a build ran against: a code review diff or a commit.
type Target struct {
	Revision     string // commit SHA
	DiffID       string // e.g. "D1234"; empty for commits
	DiffURL      string
	ArcTestBuild bool // local `arc test` run, no meaningful target
}

// Commit with the builds that ran on it, most recent first.
type Commit struct {
	SHA           string
	Message       string
	Author        Author
	DateCommitted time.Time
	ExternalURL   string
	Builds        []Build
}

// ShortSHA is the first seven characters of the SHA.
func (c Commit) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// Title is the first line of the commit message.
func (c Commit) Title() string {
	title, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(title)
}

// SkippedQueue reports a commit that bypassed the commit queue.
func (c Commit) SkippedQueue() bool {
	return strings.Contains(c.Message, "#skipthequeue")
}

// LastBuild is the most recent build, nil if none ran.
func (c Commit) LastBuild() *Build {
	if len(c.Builds) == 0 {
		return nil
	}
	return &c.Builds[0]
}

// Repository backing a project.
type Repository struct {
	ID            string
	URL           string
	DefaultBranch string
}

// Project is the CI project the dashboard shows.
type Project struct {
	ID         string
	Slug       string
	Name       string
	Repository Repository
}

// Branch of the project's repository.
type Branch struct {
	Name string
}
