package inat

import (
	"context"
	"fmt"

	"github.com/fieldnotes-io/inat/internal/constants"
)

// PageLister is implemented by resource clients that can fetch one page of
// results for a path.
type PageLister[T any] interface {
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[T], error)
}

// PaginationOptions bounds a paginated fetch.
type PaginationOptions struct {
	// PageSize is the per_page to request. Zero uses the server default.
	PageSize int
	// MaxPages stops after this many page fetches. Zero means unbounded.
	MaxPages int
	// MaxItems stops after this many items. Zero means unbounded.
	MaxItems int
}

// DefaultPaginationOptions returns unbounded options with the default page
// size.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		PageSize: constants.DefaultPageSize,
	}
}

// PageIterator lazily walks a paginated result set, fetching one page at a
// time. Pages are delivered strictly in order; stopping early costs
// nothing beyond the pages already fetched. A failed fetch surfaces as a
// terminal error from Next without invalidating previously returned items.
// Re-create the iterator with the same arguments to restart the sequence.
//
// The iterator is not safe for concurrent use; each consumer should own
// its iterator.
type PageIterator[T any] struct {
	ctx    context.Context
	client PageLister[T]
	path   string
	params *QueryParams

	cursor  PageCursor
	buffer  []T
	fetched int // pages fetched
	done    bool
	err     error
}

// NewPaginationIterator creates an iterator over the list endpoint at path.
// The original params are cloned, so the caller's copy is never mutated.
func NewPaginationIterator[T any](ctx context.Context, client PageLister[T], path string, params *QueryParams) *PageIterator[T] {
	cloned := params.Clone()

	perPage := cloned.PerPage
	if perPage == 0 {
		perPage = constants.DefaultPageSize
	}

	return &PageIterator[T]{
		ctx:    ctx,
		client: client,
		path:   path,
		params: cloned,
		cursor: PageCursor{
			Page:    1,
			PerPage: perPage,
			Total:   -1,
		},
	}
}

// HasNext reports whether another item is expected. It does not perform
// network I/O.
func (it *PageIterator[T]) HasNext() bool {
	if len(it.buffer) > 0 {
		return true
	}

	return !it.done && it.cursor.HasMore()
}

// Next returns the next item, fetching the next page when the current one
// is exhausted. Once the sequence ends it returns ErrNoMoreItems.
func (it *PageIterator[T]) Next() (T, error) {
	var zero T

	if it.err != nil {
		return zero, it.err
	}

	if len(it.buffer) == 0 {
		if it.done || !it.cursor.HasMore() {
			return zero, ErrNoMoreItems
		}

		err := it.fetchPage()
		if err != nil {
			it.err = err

			return zero, err
		}

		if len(it.buffer) == 0 {
			it.done = true

			return zero, ErrNoMoreItems
		}
	}

	item := it.buffer[0]
	it.buffer = it.buffer[1:]
	it.cursor.Fetched++

	return item, nil
}

// fetchPage requests the page at the cursor and advances it.
func (it *PageIterator[T]) fetchPage() error {
	params := it.params.Clone().WithPage(it.cursor.Page).WithPerPage(it.cursor.PerPage)

	response, err := it.client.ListWithPath(it.ctx, it.path, params)
	if err != nil {
		return fmt.Errorf("fetching page %d: %w", it.cursor.Page, err)
	}

	it.buffer = response.Results
	it.cursor.Total = response.TotalResults
	it.cursor.Page++
	it.fetched++

	// Short page means the server has nothing further, regardless of the
	// reported total.
	if len(response.Results) < it.cursor.PerPage {
		it.done = true
	}

	return nil
}

// All consumes the remainder of the sequence and returns it as a slice.
func (it *PageIterator[T]) All() ([]T, error) {
	var items []T

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if err == ErrNoMoreItems {
				break
			}

			return items, err
		}

		items = append(items, item)
	}

	return items, nil
}

// ForEach applies fn to each remaining item, stopping on the first error.
func (it *PageIterator[T]) ForEach(fn func(T) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if err == ErrNoMoreItems {
				return nil
			}

			return err
		}

		err = fn(item)
		if err != nil {
			return err
		}
	}

	return nil
}

// FetchAllPages fetches every page within the given bounds and returns the
// combined results in order.
func FetchAllPages[T any](ctx context.Context, client PageLister[T], path string, params *QueryParams, options *PaginationOptions) ([]T, error) {
	if options == nil {
		options = &PaginationOptions{}
	}

	cloned := params.Clone()
	if options.PageSize > 0 {
		cloned.WithPerPage(options.PageSize)
	}

	iterator := NewPaginationIterator(ctx, client, path, cloned)

	var items []T

	for iterator.HasNext() {
		if options.MaxPages > 0 && iterator.fetched >= options.MaxPages && len(iterator.buffer) == 0 {
			break
		}

		item, err := iterator.Next()
		if err != nil {
			if err == ErrNoMoreItems {
				break
			}

			return items, err
		}

		items = append(items, item)

		if options.MaxItems > 0 && len(items) >= options.MaxItems {
			break
		}
	}

	return items, nil
}

// PageResult is one page delivered by StreamPages. Err is terminal: after a
// failed page the channel is closed.
type PageResult[T any] struct {
	Items []T
	Err   error
}

// StreamPages fetches pages sequentially and delivers each on the returned
// channel. Only one page is in flight at a time; abandoning the channel
// after cancelling ctx stops the producer.
func StreamPages[T any](ctx context.Context, client PageLister[T], path string, params *QueryParams, options *PaginationOptions) <-chan PageResult[T] {
	if options == nil {
		options = &PaginationOptions{}
	}

	results := make(chan PageResult[T])

	go func() {
		defer close(results)

		cloned := params.Clone()

		perPage := cloned.PerPage
		if options.PageSize > 0 {
			perPage = options.PageSize
		}

		if perPage == 0 {
			perPage = constants.DefaultPageSize
		}

		cursor := PageCursor{Page: 1, PerPage: perPage, Total: -1}
		pages := 0

		for cursor.HasMore() {
			if options.MaxPages > 0 && pages >= options.MaxPages {
				return
			}

			pageParams := cloned.Clone().WithPage(cursor.Page).WithPerPage(cursor.PerPage)

			response, err := client.ListWithPath(ctx, path, pageParams)
			if err != nil {
				select {
				case results <- PageResult[T]{Err: fmt.Errorf("fetching page %d: %w", cursor.Page, err)}:
				case <-ctx.Done():
				}

				return
			}

			if len(response.Results) == 0 {
				return
			}

			select {
			case results <- PageResult[T]{Items: response.Results}:
			case <-ctx.Done():
				return
			}

			cursor.Total = response.TotalResults
			cursor.Fetched += len(response.Results)
			cursor.Page++
			pages++

			if len(response.Results) < cursor.PerPage {
				return
			}
		}
	}()

	return results
}
