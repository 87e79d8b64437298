package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fieldnotes-io/inat/internal/http"
	"github.com/fieldnotes-io/inat/pkg/inat"
)

// UsersClient implements inat.UsersClient.
type UsersClient struct {
	httpClient *http.Client
}

// NewUsersClient creates a new users client.
func NewUsersClient(httpClient *http.Client) *UsersClient {
	return &UsersClient{
		httpClient: httpClient,
	}
}

// Get implements inat.UsersClient.Get.
func (c *UsersClient) Get(ctx context.Context, id int) (*inat.User, error) {
	return c.get(ctx, fmt.Sprintf("/users/%d", id))
}

// GetByLogin implements inat.UsersClient.GetByLogin. The users endpoint
// accepts a login name in place of a numeric ID.
func (c *UsersClient) GetByLogin(ctx context.Context, login string) (*inat.User, error) {
	return c.get(ctx, "/users/"+url.PathEscape(login))
}

func (c *UsersClient) get(ctx context.Context, path string) (*inat.User, error) {
	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	result, err := inat.DecodeList[inat.User](resp.Body)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("user %s: %w", path, inat.ErrSchemaMismatch)
	}

	return &result.Results[0], nil
}

// Me implements inat.UsersClient.Me, returning the authenticated user.
func (c *UsersClient) Me(ctx context.Context) (*inat.User, error) {
	resp, err := c.httpClient.Get(ctx, "/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("getting current user: %w", err)
	}

	result, err := inat.DecodeList[inat.User](resp.Body)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("current user: %w", inat.ErrSchemaMismatch)
	}

	return &result.Results[0], nil
}

// Autocomplete implements inat.UsersClient.Autocomplete.
func (c *UsersClient) Autocomplete(ctx context.Context, query string, params *inat.QueryParams) (*inat.ListResponse[inat.User], error) {
	if params == nil {
		params = inat.NewQueryParams()
	}

	values := params.Clone().WithFilter("q", query).ToValues()

	resp, err := c.httpClient.Get(ctx, "/users/autocomplete", values)
	if err != nil {
		return nil, fmt.Errorf("autocompleting users: %w", err)
	}

	return inat.DecodeList[inat.User](resp.Body)
}
