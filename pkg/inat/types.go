package inat

// ListResponse represents the paginated envelope returned by every v1 list
// endpoint.
type ListResponse[T any] struct {
	TotalResults int `json:"total_results" yaml:"total_results"`
	Page         int `json:"page"          yaml:"page"`
	PerPage      int `json:"per_page"      yaml:"per_page"`
	Results      []T `json:"results"       yaml:"results"`
}

// PageCursor tracks the position of a paginated sequence. It is mutated
// only by the page iterator as pages complete.
type PageCursor struct {
	// Page is the next page to request, 1-based.
	Page int
	// PerPage is the requested page size.
	PerPage int
	// Total is the server-reported total result count, -1 until the first
	// page has been decoded.
	Total int
	// Fetched is the number of items delivered so far.
	Fetched int
}

// HasMore reports whether the cursor expects further pages.
func (c *PageCursor) HasMore() bool {
	if c.Total < 0 {
		return true
	}

	return c.Fetched < c.Total
}

// Identifiable is implemented by every typed entity.
type Identifiable interface {
	EntityID() int
}

// Logger is the logging interface used throughout the client. The CLI
// provides a zap-backed implementation; libraries embedding the client can
// plug in their own.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}
