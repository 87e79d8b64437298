package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/fieldnotes-io/inat/internal/client"
	"github.com/fieldnotes-io/inat/pkg/inat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client against server with caching disabled and a
// permissive rate limit, so tests observe every request.
func newTestClient(t *testing.T, server *httptest.Server) *client.Client {
	t.Helper()

	cli, err := client.New(&inat.Config{
		APIEndpoint: server.URL,
		PerSecond:   1000,
		CacheConfig: &inat.CacheConfig{Type: inat.CacheTypeNone},
	})
	require.NoError(t, err)

	return cli
}

func writeJSON(t *testing.T, writer http.ResponseWriter, v interface{}) {
	t.Helper()
	writer.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(writer).Encode(v))
}

func observationEnvelope(observations ...inat.Observation) map[string]interface{} {
	return map[string]interface{}{
		"total_results": len(observations),
		"page":          1,
		"per_page":      30,
		"results":       observations,
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestObservationsClient(t *testing.T) {
	t.Parallel()

	t.Run("Get unwraps the one-element envelope", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/observations/12345", request.URL.Path)
			writeJSON(t, writer, observationEnvelope(inat.Observation{
				ID:           12345,
				SpeciesGuess: "Monarch",
				QualityGrade: "research",
			}))
		}))
		defer server.Close()

		observation, err := newTestClient(t, server).Observations().Get(context.Background(), 12345)
		require.NoError(t, err)
		assert.Equal(t, 12345, observation.ID)
		assert.Equal(t, "Monarch", observation.SpeciesGuess)
	})

	t.Run("Get on missing id", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"errors": [{"message": "Not found"}]}`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server).Observations().Get(context.Background(), 1)
		assert.ErrorIs(t, err, inat.ErrObservationNotFound)
	})

	t.Run("Get on empty envelope", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(t, writer, observationEnvelope())
		}))
		defer server.Close()

		_, err := newTestClient(t, server).Observations().Get(context.Background(), 1)
		assert.ErrorIs(t, err, inat.ErrObservationNotFound)
	})

	t.Run("List passes filters through", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/observations", request.URL.Path)
			assert.Equal(t, "research", request.URL.Query().Get("quality_grade"))
			assert.Equal(t, "2", request.URL.Query().Get("page"))
			writeJSON(t, writer, observationEnvelope(inat.Observation{ID: 1}, inat.Observation{ID: 2}))
		}))
		defer server.Close()

		params := inat.NewQueryParams().WithPage(2).WithFilter("quality_grade", "research")

		result, err := newTestClient(t, server).Observations().List(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, 2, result.TotalResults)
		require.Len(t, result.Results, 2)
	})

	t.Run("ListAll walks every page", func(t *testing.T) {
		t.Parallel()

		var pages int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&pages, 1)

			page, _ := strconv.Atoi(request.URL.Query().Get("page"))

			var results []inat.Observation

			switch page {
			case 1:
				results = []inat.Observation{{ID: 1}, {ID: 2}}
			case 2:
				results = []inat.Observation{{ID: 3}}
			}

			writeJSON(t, writer, map[string]interface{}{
				"total_results": 3,
				"page":          page,
				"per_page":      2,
				"results":       results,
			})
		}))
		defer server.Close()

		observations, err := newTestClient(t, server).Observations().ListAll(context.Background(), nil,
			&inat.PaginationOptions{PageSize: 2})
		require.NoError(t, err)
		require.Len(t, observations, 3)
		assert.Equal(t, 3, observations[2].ID)
		assert.Equal(t, int32(2), atomic.LoadInt32(&pages))
	})

	t.Run("Iterate delivers items lazily", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(t, writer, observationEnvelope(inat.Observation{ID: 10}, inat.Observation{ID: 11}))
		}))
		defer server.Close()

		iterator := newTestClient(t, server).Observations().Iterate(context.Background(), nil)

		first, err := iterator.Next()
		require.NoError(t, err)
		assert.Equal(t, 10, first.ID)

		second, err := iterator.Next()
		require.NoError(t, err)
		assert.Equal(t, 11, second.ID)

		_, err = iterator.Next()
		assert.ErrorIs(t, err, inat.ErrNoMoreItems)
	})

	t.Run("Create posts the observation envelope", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPost, request.Method)
			assert.Equal(t, "/observations", request.URL.Path)

			var body map[string]inat.ObservationCreateRequest

			require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
			assert.Equal(t, "Danaus plexippus", body["observation"].SpeciesGuess)

			writeJSON(t, writer, inat.Observation{ID: 777, SpeciesGuess: "Danaus plexippus"})
		}))
		defer server.Close()

		observation, err := newTestClient(t, server).Observations().Create(context.Background(),
			&inat.ObservationCreateRequest{SpeciesGuess: "Danaus plexippus"})
		require.NoError(t, err)
		assert.Equal(t, 777, observation.ID)
	})

	t.Run("Update puts to the detail path", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPut, request.Method)
			assert.Equal(t, "/observations/42", request.URL.Path)
			writeJSON(t, writer, inat.Observation{ID: 42, Description: "updated"})
		}))
		defer server.Close()

		description := "updated"

		observation, err := newTestClient(t, server).Observations().Update(context.Background(), 42,
			&inat.ObservationUpdateRequest{Description: &description})
		require.NoError(t, err)
		assert.Equal(t, "updated", observation.Description)
	})

	t.Run("Delete", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodDelete, request.Method)
			assert.Equal(t, "/observations/42", request.URL.Path)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := newTestClient(t, server).Observations().Delete(context.Background(), 42)
		require.NoError(t, err)
	})

	t.Run("Histogram", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/observations/histogram", request.URL.Path)
			assert.Equal(t, "month_of_year", request.URL.Query().Get("interval"))
			writeJSON(t, writer, map[string]interface{}{
				"results": map[string]map[string]int{
					"month_of_year": {"6": 120},
				},
			})
		}))
		defer server.Close()

		histogram, err := newTestClient(t, server).Observations().Histogram(context.Background(),
			inat.NewQueryParams().WithFilter("interval", "month_of_year"))
		require.NoError(t, err)
		assert.Equal(t, 120, histogram.Results["month_of_year"]["6"])
	})

	t.Run("SpeciesCounts", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/observations/species_counts", request.URL.Path)
			writeJSON(t, writer, map[string]interface{}{
				"total_results": 1,
				"results": []inat.SpeciesCount{
					{Count: 57, Taxon: &inat.Taxon{ID: 48662, Name: "Danaus plexippus", Rank: "species"}},
				},
			})
		}))
		defer server.Close()

		counts, err := newTestClient(t, server).Observations().SpeciesCounts(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, counts.Results, 1)
		assert.Equal(t, 57, counts.Results[0].Count)
		assert.Equal(t, "Danaus plexippus", counts.Results[0].Taxon.Name)
	})

	t.Run("Taxonomy", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/observations/taxonomy", request.URL.Path)
			assert.Equal(t, "naturalist", request.URL.Query().Get("user_id"))
			writeJSON(t, writer, map[string]interface{}{
				"total_results":       2,
				"count_without_taxon": 1,
				"results": []map[string]interface{}{
					{
						"id": 47157, "name": "Lepidoptera", "rank": "order",
						"direct_obs_count": 0, "descendant_obs_count": 12,
					},
					{
						"id": 48662, "name": "Danaus plexippus", "rank": "species",
						"direct_obs_count": 12, "descendant_obs_count": 12,
					},
				},
			})
		}))
		defer server.Close()

		taxonomy, err := newTestClient(t, server).Observations().Taxonomy(context.Background(),
			inat.NewQueryParams().WithFilter("user_id", "naturalist"))
		require.NoError(t, err)
		assert.Equal(t, 1, taxonomy.CountWithoutTaxon)
		require.Len(t, taxonomy.Results, 2)
		assert.Equal(t, "Lepidoptera", taxonomy.Results[0].Name)
		assert.Equal(t, 0, taxonomy.Results[0].DirectObsCount)
		assert.Equal(t, 12, taxonomy.Results[1].DirectObsCount)
	})

	t.Run("TaxonSummary", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/observations/7849808/taxon_summary", request.URL.Path)
			writeJSON(t, writer, map[string]interface{}{
				"conservation_status": map[string]interface{}{
					"authority":   "IUCN Red List",
					"status":      "EN",
					"status_name": "endangered",
				},
				"listed_taxon": map[string]interface{}{
					"id":                  12345,
					"establishment_means": "native",
				},
				"wikipedia_summary": "The monarch butterfly...",
			})
		}))
		defer server.Close()

		summary, err := newTestClient(t, server).Observations().TaxonSummary(context.Background(), 7849808)
		require.NoError(t, err)
		require.NotNil(t, summary.ConservationStatus)
		assert.Equal(t, "endangered", summary.ConservationStatus.StatusName)
		require.NotNil(t, summary.ListedTaxon)
		assert.Equal(t, "native", summary.ListedTaxon.EstablishmentMeans)
		assert.Contains(t, summary.WikipediaSummary, "monarch")
	})

	t.Run("Observers and Identifiers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(t, writer, map[string]interface{}{
				"total_results": 1,
				"results": []inat.UserCount{
					{ObservationCount: 12, User: &inat.User{ID: 1, Login: "naturalist"}},
				},
			})
		}))
		defer server.Close()

		cli := newTestClient(t, server)

		observers, err := cli.Observations().Observers(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, observers.Results, 1)
		assert.Equal(t, "naturalist", observers.Results[0].User.Login)

		identifiers, err := cli.Observations().Identifiers(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, identifiers.Results, 1)
	})
}
