package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fieldnotes-io/inat/internal/http"
	"github.com/fieldnotes-io/inat/pkg/inat"
)

// TaxaClient implements inat.TaxaClient.
type TaxaClient struct {
	httpClient *http.Client
}

// NewTaxaClient creates a new taxa client.
func NewTaxaClient(httpClient *http.Client) *TaxaClient {
	return &TaxaClient{
		httpClient: httpClient,
	}
}

// Get implements inat.TaxaClient.Get.
func (c *TaxaClient) Get(ctx context.Context, id int) (*inat.Taxon, error) {
	path := fmt.Sprintf("/taxa/%d", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		if inat.IsNotFound(err) {
			return nil, fmt.Errorf("taxon %d: %w", id, inat.ErrTaxonNotFound)
		}

		return nil, fmt.Errorf("getting taxon: %w", err)
	}

	result, err := inat.DecodeList[inat.Taxon](resp.Body)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("taxon %d: %w", id, inat.ErrTaxonNotFound)
	}

	return &result.Results[0], nil
}

// List implements inat.TaxaClient.List.
func (c *TaxaClient) List(ctx context.Context, params *inat.QueryParams) (*inat.ListResponse[inat.Taxon], error) {
	return c.ListWithPath(ctx, "/taxa", params)
}

// ListWithPath implements the page fetch behind the pagination helpers.
func (c *TaxaClient) ListWithPath(ctx context.Context, path string, params *inat.QueryParams) (*inat.ListResponse[inat.Taxon], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing taxa: %w", err)
	}

	return inat.DecodeList[inat.Taxon](resp.Body)
}

// Search implements inat.TaxaClient.Search.
func (c *TaxaClient) Search(ctx context.Context, query string, params *inat.QueryParams) (*inat.ListResponse[inat.Taxon], error) {
	if params == nil {
		params = inat.NewQueryParams()
	}

	return c.List(ctx, params.Clone().WithFilter("q", query))
}

// Autocomplete implements inat.TaxaClient.Autocomplete.
func (c *TaxaClient) Autocomplete(ctx context.Context, query string, params *inat.QueryParams) (*inat.ListResponse[inat.Taxon], error) {
	if params == nil {
		params = inat.NewQueryParams()
	}

	return c.ListWithPath(ctx, "/taxa/autocomplete", params.Clone().WithFilter("q", query))
}
