package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fieldnotes-io/inat/internal/http"
	"github.com/fieldnotes-io/inat/pkg/inat"
)

// ProjectsClient implements inat.ProjectsClient.
type ProjectsClient struct {
	httpClient *http.Client
}

// NewProjectsClient creates a new projects client.
func NewProjectsClient(httpClient *http.Client) *ProjectsClient {
	return &ProjectsClient{
		httpClient: httpClient,
	}
}

// Get implements inat.ProjectsClient.Get.
func (c *ProjectsClient) Get(ctx context.Context, id int) (*inat.Project, error) {
	path := fmt.Sprintf("/projects/%d", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}

	result, err := inat.DecodeList[inat.Project](resp.Body)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("project %d: %w", id, inat.ErrSchemaMismatch)
	}

	return &result.Results[0], nil
}

// List implements inat.ProjectsClient.List.
func (c *ProjectsClient) List(ctx context.Context, params *inat.QueryParams) (*inat.ListResponse[inat.Project], error) {
	return c.ListWithPath(ctx, "/projects", params)
}

// ListWithPath implements the page fetch behind the pagination helpers.
func (c *ProjectsClient) ListWithPath(ctx context.Context, path string, params *inat.QueryParams) (*inat.ListResponse[inat.Project], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	return inat.DecodeList[inat.Project](resp.Body)
}

// Members implements inat.ProjectsClient.Members.
func (c *ProjectsClient) Members(ctx context.Context, id int, params *inat.QueryParams) (*inat.ListResponse[inat.UserCount], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	path := fmt.Sprintf("/projects/%d/members", id)

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing project members: %w", err)
	}

	return inat.DecodeList[inat.UserCount](resp.Body)
}
