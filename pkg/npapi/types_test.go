package npapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryParams_ToValues(t *testing.T) {
	t.Parallel()

	t.Run("nil receiver yields nil values", func(t *testing.T) {
		t.Parallel()

		var params *QueryParams

		assert.Nil(t, params.ToValues())
	})

	t.Run("empty params yield no values", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, NewQueryParams().ToValues())
	})

	t.Run("chained params map to wire names", func(t *testing.T) {
		t.Parallel()

		values := NewQueryParams().
			WithPageSize(25).
			WithCursor("0003a").
			WithFilter("include_mark_for_delete_objects", "true").
			ToValues()

		assert.Equal(t, "25", values.Get("page_size"))
		assert.Equal(t, "0003a", values.Get("cursor"))
		assert.Equal(t, "true", values.Get("include_mark_for_delete_objects"))
	})

	t.Run("sort ascending rides along with sort_by", func(t *testing.T) {
		t.Parallel()

		values := (&QueryParams{SortBy: "display_name", SortAscending: true}).ToValues()

		assert.Equal(t, "display_name", values.Get("sort_by"))
		assert.Equal(t, "true", values.Get("sort_ascending"))

		noSort := (&QueryParams{SortAscending: true}).ToValues()
		assert.Empty(t, noSort.Get("sort_ascending"), "sort_ascending without sort_by is meaningless")
	})

	t.Run("WithFilter initializes the map on a zero value", func(t *testing.T) {
		t.Parallel()

		params := (&QueryParams{}).WithFilter("key", "value")

		assert.Equal(t, "value", params.Filters["key"])
	})
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}
