package inat

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryParams represents query parameters for API list requests.
type QueryParams struct {
	// Page is the page number, 1-based. Zero means server default.
	Page int
	// PerPage is the page size. Zero means server default.
	PerPage int
	// OrderBy names the sort property (e.g. "created_at", "observed_on").
	OrderBy string
	// Order is the sort direction, "asc" or "desc".
	Order string
	// Filters holds endpoint-specific filter parameters. Multi-values are
	// comma-joined in the query string, iNaturalist style.
	Filters map[string][]string
}

// NewQueryParams creates an empty QueryParams.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Filters: make(map[string][]string),
	}
}

// WithPage sets the page number.
func (q *QueryParams) WithPage(page int) *QueryParams {
	q.Page = page

	return q
}

// WithPerPage sets the page size.
func (q *QueryParams) WithPerPage(perPage int) *QueryParams {
	q.PerPage = perPage

	return q
}

// WithOrderBy sets the sort property.
func (q *QueryParams) WithOrderBy(orderBy string) *QueryParams {
	q.OrderBy = orderBy

	return q
}

// WithOrder sets the sort direction.
func (q *QueryParams) WithOrder(order string) *QueryParams {
	q.Order = order

	return q
}

// WithFilter appends values to a filter parameter.
func (q *QueryParams) WithFilter(key string, values ...string) *QueryParams {
	if q.Filters == nil {
		q.Filters = make(map[string][]string)
	}

	q.Filters[key] = append(q.Filters[key], values...)

	return q
}

// Clone returns a deep copy, so iterators can advance the page without
// mutating the caller's params.
func (q *QueryParams) Clone() *QueryParams {
	if q == nil {
		return NewQueryParams()
	}

	clone := &QueryParams{
		Page:    q.Page,
		PerPage: q.PerPage,
		OrderBy: q.OrderBy,
		Order:   q.Order,
		Filters: make(map[string][]string, len(q.Filters)),
	}

	for key, values := range q.Filters {
		clone.Filters[key] = append([]string(nil), values...)
	}

	return clone
}

// ToValues converts QueryParams to url.Values. Multi-values are
// comma-joined so that semantically equal params always serialize the same
// way regardless of insertion order.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}

	if q == nil {
		return values
	}

	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}

	if q.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(q.PerPage))
	}

	if q.OrderBy != "" {
		values.Set("order_by", q.OrderBy)
	}

	if q.Order != "" {
		values.Set("order", q.Order)
	}

	for key, filterValues := range q.Filters {
		if len(filterValues) > 0 {
			values.Set(key, strings.Join(filterValues, ","))
		}
	}

	return values
}
