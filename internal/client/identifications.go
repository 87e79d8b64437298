package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/fieldnotes-io/inat/internal/http"
	"github.com/fieldnotes-io/inat/pkg/inat"
)

// IdentificationsClient implements inat.IdentificationsClient.
type IdentificationsClient struct {
	httpClient *http.Client
}

// NewIdentificationsClient creates a new identifications client.
func NewIdentificationsClient(httpClient *http.Client) *IdentificationsClient {
	return &IdentificationsClient{
		httpClient: httpClient,
	}
}

// Get implements inat.IdentificationsClient.Get.
func (c *IdentificationsClient) Get(ctx context.Context, id int) (*inat.Identification, error) {
	path := fmt.Sprintf("/identifications/%d", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting identification: %w", err)
	}

	result, err := inat.DecodeList[inat.Identification](resp.Body)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("identification %d: %w", id, inat.ErrSchemaMismatch)
	}

	return &result.Results[0], nil
}

// List implements inat.IdentificationsClient.List.
func (c *IdentificationsClient) List(ctx context.Context, params *inat.QueryParams) (*inat.ListResponse[inat.Identification], error) {
	return c.ListWithPath(ctx, "/identifications", params)
}

// ListWithPath implements the page fetch behind the pagination helpers.
func (c *IdentificationsClient) ListWithPath(ctx context.Context, path string, params *inat.QueryParams) (*inat.ListResponse[inat.Identification], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing identifications: %w", err)
	}

	return inat.DecodeList[inat.Identification](resp.Body)
}

// Create implements inat.IdentificationsClient.Create.
func (c *IdentificationsClient) Create(ctx context.Context, request *inat.IdentificationCreateRequest) (*inat.Identification, error) {
	resp, err := c.httpClient.Post(ctx, "/identifications", map[string]interface{}{"identification": request})
	if err != nil {
		return nil, fmt.Errorf("creating identification: %w", err)
	}

	var identification inat.Identification

	err = json.Unmarshal(resp.Body, &identification)
	if err != nil {
		return nil, fmt.Errorf("parsing identification response: %w", err)
	}

	return &identification, nil
}

// Delete implements inat.IdentificationsClient.Delete.
func (c *IdentificationsClient) Delete(ctx context.Context, id int) error {
	path := fmt.Sprintf("/identifications/%d", id)

	_, err := c.httpClient.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("deleting identification: %w", err)
	}

	return nil
}
