package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/fieldnotes-io/inat/internal/http"
	"github.com/fieldnotes-io/inat/pkg/inat"
)

// ObservationsClient implements inat.ObservationsClient.
type ObservationsClient struct {
	httpClient *http.Client
}

// NewObservationsClient creates a new observations client.
func NewObservationsClient(httpClient *http.Client) *ObservationsClient {
	return &ObservationsClient{
		httpClient: httpClient,
	}
}

// Get implements inat.ObservationsClient.Get.
func (c *ObservationsClient) Get(ctx context.Context, id int) (*inat.Observation, error) {
	path := fmt.Sprintf("/observations/%d", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		if inat.IsNotFound(err) {
			return nil, fmt.Errorf("observation %d: %w", id, inat.ErrObservationNotFound)
		}

		return nil, fmt.Errorf("getting observation: %w", err)
	}

	// Detail endpoints answer with a one-element results envelope.
	result, err := inat.DecodeList[inat.Observation](resp.Body)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("observation %d: %w", id, inat.ErrObservationNotFound)
	}

	return &result.Results[0], nil
}

// List implements inat.ObservationsClient.List.
func (c *ObservationsClient) List(ctx context.Context, params *inat.QueryParams) (*inat.ListResponse[inat.Observation], error) {
	return c.ListWithPath(ctx, "/observations", params)
}

// ListWithPath implements the page fetch behind the pagination helpers.
func (c *ObservationsClient) ListWithPath(ctx context.Context, path string, params *inat.QueryParams) (*inat.ListResponse[inat.Observation], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing observations: %w", err)
	}

	return inat.DecodeList[inat.Observation](resp.Body)
}

// ListAll fetches every page of results within the given bounds.
func (c *ObservationsClient) ListAll(ctx context.Context, params *inat.QueryParams, options *inat.PaginationOptions) ([]inat.Observation, error) {
	if params == nil {
		params = inat.NewQueryParams()
	}

	return inat.FetchAllPages(ctx, inat.PageLister[inat.Observation](c), "/observations", params, options)
}

// Iterate returns a lazy iterator over matching observations.
func (c *ObservationsClient) Iterate(ctx context.Context, params *inat.QueryParams) *inat.PageIterator[inat.Observation] {
	if params == nil {
		params = inat.NewQueryParams()
	}

	return inat.NewPaginationIterator(ctx, inat.PageLister[inat.Observation](c), "/observations", params)
}

// Create implements inat.ObservationsClient.Create.
func (c *ObservationsClient) Create(ctx context.Context, request *inat.ObservationCreateRequest) (*inat.Observation, error) {
	resp, err := c.httpClient.Post(ctx, "/observations", map[string]interface{}{"observation": request})
	if err != nil {
		return nil, fmt.Errorf("creating observation: %w", err)
	}

	var observation inat.Observation

	err = json.Unmarshal(resp.Body, &observation)
	if err != nil {
		return nil, fmt.Errorf("parsing observation response: %w", err)
	}

	return &observation, nil
}

// Update implements inat.ObservationsClient.Update.
func (c *ObservationsClient) Update(ctx context.Context, id int, request *inat.ObservationUpdateRequest) (*inat.Observation, error) {
	path := fmt.Sprintf("/observations/%d", id)

	resp, err := c.httpClient.Put(ctx, path, map[string]interface{}{"observation": request})
	if err != nil {
		return nil, fmt.Errorf("updating observation: %w", err)
	}

	var observation inat.Observation

	err = json.Unmarshal(resp.Body, &observation)
	if err != nil {
		return nil, fmt.Errorf("parsing observation response: %w", err)
	}

	return &observation, nil
}

// Delete implements inat.ObservationsClient.Delete.
func (c *ObservationsClient) Delete(ctx context.Context, id int) error {
	path := fmt.Sprintf("/observations/%d", id)

	_, err := c.httpClient.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("deleting observation: %w", err)
	}

	return nil
}

// Histogram implements inat.ObservationsClient.Histogram.
func (c *ObservationsClient) Histogram(ctx context.Context, params *inat.QueryParams) (*inat.HistogramResponse, error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, "/observations/histogram", query)
	if err != nil {
		return nil, fmt.Errorf("getting observation histogram: %w", err)
	}

	var histogram inat.HistogramResponse

	err = json.Unmarshal(resp.Body, &histogram)
	if err != nil {
		return nil, fmt.Errorf("parsing histogram response: %w", err)
	}

	return &histogram, nil
}

// SpeciesCounts implements inat.ObservationsClient.SpeciesCounts.
func (c *ObservationsClient) SpeciesCounts(ctx context.Context, params *inat.QueryParams) (*inat.ListResponse[inat.SpeciesCount], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, "/observations/species_counts", query)
	if err != nil {
		return nil, fmt.Errorf("getting species counts: %w", err)
	}

	return inat.DecodeList[inat.SpeciesCount](resp.Body)
}

// Taxonomy implements inat.ObservationsClient.Taxonomy. The tree covers
// every taxon with matching observations; filter by user_id for a life
// list.
func (c *ObservationsClient) Taxonomy(ctx context.Context, params *inat.QueryParams) (*inat.TaxonomyResponse, error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, "/observations/taxonomy", query)
	if err != nil {
		return nil, fmt.Errorf("getting observation taxonomy: %w", err)
	}

	var taxonomy inat.TaxonomyResponse

	err = json.Unmarshal(resp.Body, &taxonomy)
	if err != nil {
		return nil, fmt.Errorf("parsing taxonomy response: %w", err)
	}

	return &taxonomy, nil
}

// TaxonSummary implements inat.ObservationsClient.TaxonSummary.
func (c *ObservationsClient) TaxonSummary(ctx context.Context, id int) (*inat.TaxonSummary, error) {
	path := fmt.Sprintf("/observations/%d/taxon_summary", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		if inat.IsNotFound(err) {
			return nil, fmt.Errorf("observation %d: %w", id, inat.ErrObservationNotFound)
		}

		return nil, fmt.Errorf("getting taxon summary: %w", err)
	}

	var summary inat.TaxonSummary

	err = json.Unmarshal(resp.Body, &summary)
	if err != nil {
		return nil, fmt.Errorf("parsing taxon summary response: %w", err)
	}

	return &summary, nil
}

// Observers implements inat.ObservationsClient.Observers.
func (c *ObservationsClient) Observers(ctx context.Context, params *inat.QueryParams) (*inat.ListResponse[inat.UserCount], error) {
	return c.userCounts(ctx, "/observations/observers", params)
}

// Identifiers implements inat.ObservationsClient.Identifiers.
func (c *ObservationsClient) Identifiers(ctx context.Context, params *inat.QueryParams) (*inat.ListResponse[inat.UserCount], error) {
	return c.userCounts(ctx, "/observations/identifiers", params)
}

func (c *ObservationsClient) userCounts(ctx context.Context, path string, params *inat.QueryParams) (*inat.ListResponse[inat.UserCount], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("getting user counts: %w", err)
	}

	return inat.DecodeList[inat.UserCount](resp.Body)
}
