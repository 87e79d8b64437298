package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fieldnotes-io/inat/internal/http"
	"github.com/fieldnotes-io/inat/pkg/inat"
)

// PlacesClient implements inat.PlacesClient.
type PlacesClient struct {
	httpClient *http.Client
}

// NewPlacesClient creates a new places client.
func NewPlacesClient(httpClient *http.Client) *PlacesClient {
	return &PlacesClient{
		httpClient: httpClient,
	}
}

// Get implements inat.PlacesClient.Get.
func (c *PlacesClient) Get(ctx context.Context, id int) (*inat.Place, error) {
	path := fmt.Sprintf("/places/%d", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting place: %w", err)
	}

	result, err := inat.DecodeList[inat.Place](resp.Body)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("place %d: %w", id, inat.ErrSchemaMismatch)
	}

	return &result.Results[0], nil
}

// ListWithPath implements the page fetch behind the pagination helpers.
func (c *PlacesClient) ListWithPath(ctx context.Context, path string, params *inat.QueryParams) (*inat.ListResponse[inat.Place], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing places: %w", err)
	}

	return inat.DecodeList[inat.Place](resp.Body)
}

// Nearby implements inat.PlacesClient.Nearby, returning standard and
// community places within the bounding box.
func (c *PlacesClient) Nearby(ctx context.Context, swLat, swLng, neLat, neLng float64, params *inat.QueryParams) (*inat.NearbyPlaces, error) {
	if params == nil {
		params = inat.NewQueryParams()
	}

	values := params.Clone().
		WithFilter("swlat", formatCoord(swLat)).
		WithFilter("swlng", formatCoord(swLng)).
		WithFilter("nelat", formatCoord(neLat)).
		WithFilter("nelng", formatCoord(neLng)).
		ToValues()

	resp, err := c.httpClient.Get(ctx, "/places/nearby", values)
	if err != nil {
		return nil, fmt.Errorf("getting nearby places: %w", err)
	}

	var envelope struct {
		Results inat.NearbyPlaces `json:"results"`
	}

	err = json.Unmarshal(resp.Body, &envelope)
	if err != nil {
		return nil, fmt.Errorf("parsing nearby places response: %w", err)
	}

	return &envelope.Results, nil
}

// Autocomplete implements inat.PlacesClient.Autocomplete.
func (c *PlacesClient) Autocomplete(ctx context.Context, query string, params *inat.QueryParams) (*inat.ListResponse[inat.Place], error) {
	if params == nil {
		params = inat.NewQueryParams()
	}

	return c.ListWithPath(ctx, "/places/autocomplete", params.Clone().WithFilter("q", query))
}

func formatCoord(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
