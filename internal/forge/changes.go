package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"cidash/internal/model"
	"cidash/internal/pagestate"
	"cidash/internal/params"
	"cidash/internal/transport"
)

// Changes talks to a Changes CI server over its REST API.
type Changes struct {
	loader transport.Loader
	logger logr.Logger
}

// NewChanges returns a Forge backed by loader.
func NewChanges(loader transport.Loader, logger logr.Logger) *Changes {
	return &Changes{loader: loader, logger: logger.WithName("forge")}
}

func (c *Changes) Kind() string { return "changes" }

// changesTime accepts the server's zone-less timestamps as UTC.
type changesTime struct{ time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func (t *changesTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// Wire types mirror the fields we care about from the API.

type changesTag struct {
	ID string `json:"id"`
}

type changesAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type changesBuild struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Status  changesTag    `json:"status"` // "queued", "in_progress", "finished"
	Result  changesTag    `json:"result"` // "passed", "failed", "aborted", ...
	Tags    []string      `json:"tags"`
	Cause   string        `json:"cause"`
	Author  changesAuthor `json:"author"`
	Started changesTime   `json:"dateStarted"`
	Project struct {
		Slug string `json:"slug"`
	} `json:"project"`
	Source struct {
		Patch    *struct{} `json:"patch"`
		Revision struct {
			SHA string `json:"sha"`
		} `json:"revision"`
		Data map[string]any `json:"data"`
	} `json:"source"`
}

type changesCommit struct {
	SHA       string        `json:"sha"`
	Message   string        `json:"message"`
	Author    changesAuthor `json:"author"`
	Committed changesTime   `json:"dateCommitted"`
	External  *struct {
		Link string `json:"link"`
	} `json:"external"`
	Builds []changesBuild `json:"builds"`
}

type changesProject struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Repository struct {
		ID            string `json:"id"`
		URL           string `json:"url"`
		DefaultBranch string `json:"defaultBranch"`
	} `json:"repository"`
}

type changesBranch struct {
	Name string `json:"name"`
}

// FetchProject loads the project detail.
func (c *Changes) FetchProject(ctx context.Context, slug string) (*model.Project, error) {
	var p changesProject
	if err := c.getJSON(ctx, ProjectEndpoint(slug), &p); err != nil {
		return nil, fmt.Errorf("fetch project %s: %w", slug, err)
	}
	return &model.Project{
		ID:   p.ID,
		Slug: p.Slug,
		Name: p.Name,
		Repository: model.Repository{
			ID:            p.Repository.ID,
			URL:           p.Repository.URL,
			DefaultBranch: p.Repository.DefaultBranch,
		},
	}, nil
}

// FetchBranches loads the branch list. The server answers 422 for
// repositories it cannot list branches for; that error carries the response.
func (c *Changes) FetchBranches(ctx context.Context, repoID string) ([]model.Branch, error) {
	var bs []changesBranch
	if err := c.getJSON(ctx, BranchesEndpoint(repoID), &bs); err != nil {
		return nil, fmt.Errorf("fetch branches: %w", err)
	}
	out := make([]model.Branch, len(bs))
	for i, b := range bs {
		out[i] = model.Branch{Name: b.Name}
	}
	return out, nil
}

func (c *Changes) getJSON(ctx context.Context, ref string, v any) error {
	resp, err := c.loader.Load(ctx, ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", ref, err)
	}
	return nil
}

// DecodeCommits is the page decoder for CommitsEndpoint.
func DecodeCommits(resp *transport.Response, current params.Params) (*pagestate.Result[model.Commit], error) {
	return decodePage(resp, current, toCommit)
}

// DecodeBuilds is the page decoder for BuildsEndpoint.
func DecodeBuilds(resp *transport.Response, current params.Params) (*pagestate.Result[model.Build], error) {
	return decodePage(resp, current, toBuild)
}

func toCommit(w changesCommit) model.Commit {
	c := model.Commit{
		SHA:           w.SHA,
		Message:       w.Message,
		Author:        model.Author(w.Author),
		DateCommitted: w.Committed.Time,
		Builds:        make([]model.Build, len(w.Builds)),
	}
	if w.External != nil {
		c.ExternalURL = w.External.Link
	}
	for i, b := range w.Builds {
		c.Builds[i] = toBuild(b)
	}
	return c
}

func toBuild(w changesBuild) model.Build {
	b := model.Build{
		ID:          w.ID,
		Name:        w.Name,
		Status:      buildStatus(w.Status.ID, w.Result.ID),
		Tags:        w.Tags,
		Cause:       w.Cause,
		Author:      model.Author(w.Author),
		DateStarted: w.Started.Time,
		Target:      model.Target{Revision: w.Source.Revision.SHA},
	}
	if w.Project.Slug != "" {
		b.WebURL = BuildHref(w.Project.Slug, w.ID)
	}
	for _, tag := range w.Tags {
		if tag == "arc test" {
			b.Target.ArcTestBuild = true
		}
	}
	if w.Source.Patch != nil {
		if id := dataString(w.Source.Data, "phabricator.revisionID"); id != "" {
			b.Target.DiffID = "D" + id
		}
		b.Target.DiffURL = dataString(w.Source.Data, "phabricator.revisionURL")
	}
	return b
}

func dataString(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// buildStatus maps the server's status/result pair to our pipeline status
// strings.
func buildStatus(status, result string) string {
	switch status {
	case "queued":
		return "pending"
	case "in_progress":
		return "running"
	}
	switch result {
	case "passed":
		return "success"
	case "failed", "infra_failed":
		return "failed"
	case "aborted":
		return "canceled"
	case "skipped":
		return "skipped"
	case "", "unknown":
		return ""
	default:
		return result
	}
}
