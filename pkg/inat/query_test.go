package inat_test

import (
	"testing"

	"github.com/fieldnotes-io/inat/pkg/inat"
	"github.com/stretchr/testify/assert"
)

func TestQueryParams_ToValues(t *testing.T) {
	t.Parallel()

	t.Run("empty params", func(t *testing.T) {
		t.Parallel()

		values := inat.NewQueryParams().ToValues()
		assert.Empty(t, values)
	})

	t.Run("nil params", func(t *testing.T) {
		t.Parallel()

		var params *inat.QueryParams

		values := params.ToValues()
		assert.Empty(t, values)
	})

	t.Run("pagination and ordering", func(t *testing.T) {
		t.Parallel()

		values := inat.NewQueryParams().
			WithPage(3).
			WithPerPage(50).
			WithOrderBy("observed_on").
			WithOrder("desc").
			ToValues()

		assert.Equal(t, "3", values.Get("page"))
		assert.Equal(t, "50", values.Get("per_page"))
		assert.Equal(t, "observed_on", values.Get("order_by"))
		assert.Equal(t, "desc", values.Get("order"))
	})

	t.Run("multi-value filters are comma-joined", func(t *testing.T) {
		t.Parallel()

		values := inat.NewQueryParams().
			WithFilter("taxon_id", "1", "47126").
			WithFilter("quality_grade", "research").
			ToValues()

		assert.Equal(t, "1,47126", values.Get("taxon_id"))
		assert.Equal(t, "research", values.Get("quality_grade"))
	})

	t.Run("repeated WithFilter appends", func(t *testing.T) {
		t.Parallel()

		values := inat.NewQueryParams().
			WithFilter("place_id", "1").
			WithFilter("place_id", "2").
			ToValues()

		assert.Equal(t, "1,2", values.Get("place_id"))
	})
}

func TestQueryParams_Clone(t *testing.T) {
	t.Parallel()

	t.Run("deep copy", func(t *testing.T) {
		t.Parallel()

		original := inat.NewQueryParams().
			WithPage(1).
			WithPerPage(30).
			WithFilter("taxon_id", "47126")

		clone := original.Clone()
		clone.WithPage(2).WithFilter("taxon_id", "1")

		assert.Equal(t, 1, original.Page)
		assert.Equal(t, []string{"47126"}, original.Filters["taxon_id"])
		assert.Equal(t, 2, clone.Page)
		assert.Equal(t, []string{"47126", "1"}, clone.Filters["taxon_id"])
	})

	t.Run("nil clone", func(t *testing.T) {
		t.Parallel()

		var params *inat.QueryParams

		clone := params.Clone()
		assert.NotNil(t, clone)
		assert.NotNil(t, clone.Filters)
	})
}
