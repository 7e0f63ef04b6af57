package forge

import (
	"context"
	"fmt"
	"net/url"

	"cidash/internal/model"
)

// Forge abstracts the one-off lookups of a CI backend. Paginated listings go
// through interactive controllers using the endpoints and decoders below.
type Forge interface {
	Kind() string // "changes"
	FetchProject(ctx context.Context, slug string) (*model.Project, error)
	FetchBranches(ctx context.Context, repoID string) ([]model.Branch, error)
}

// ProjectEndpoint is the project detail path.
func ProjectEndpoint(slug string) string {
	return fmt.Sprintf("/api/0/projects/%s/", url.PathEscape(slug))
}

// CommitsEndpoint lists commits with every build that ran on each.
func CommitsEndpoint(slug string) string {
	return fmt.Sprintf("/api/0/projects/%s/commits/?all_builds=1", url.PathEscape(slug))
}

// BuildsEndpoint lists builds, most recent first.
func BuildsEndpoint(slug string) string {
	return fmt.Sprintf("/api/0/projects/%s/builds/", url.PathEscape(slug))
}

// BranchesEndpoint lists the repository's branches.
func BranchesEndpoint(repoID string) string {
	return fmt.Sprintf("/api/0/repositories/%s/branches", url.PathEscape(repoID))
}

// BuildHref is the web page of a build, relative to the backend root.
func BuildHref(slug, buildID string) string {
	return fmt.Sprintf("/projects/%s/builds/%s/", url.PathEscape(slug), url.PathEscape(buildID))
}
