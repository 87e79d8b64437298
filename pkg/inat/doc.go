// Package inat provides types, interfaces, and helpers for working with the
// iNaturalist v1 API.
//
// # Overview
//
// The inat package defines the domain types (e.g., Observation, Taxon, User,
// Place, Project) and the interfaces for resource-oriented clients (e.g.,
// ObservationsClient, TaxaClient). A concrete implementation of these clients
// is provided by the inatclient package, which wires configuration,
// transport, authentication, rate limiting, and response caching. Most
// consumers should import inatclient to construct a client and then interact
// with the resource client interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fieldnotes-io/inat/pkg/inat"
//	  "github.com/fieldnotes-io/inat/pkg/inatclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := inatclient.New(&inat.Config{UserAgent: "my-app/1.0"})
//	  if err != nil { log.Fatal(err) }
//
//	  // List the first page of research-grade observations
//	  obs, err := cli.Observations().List(ctx,
//	    inat.NewQueryParams().WithFilter("quality_grade", "research").WithPerPage(50))
//	  if err != nil { log.Fatal(err) }
//	  _ = obs
//	}
//
// # Queries and pagination
//
// Use QueryParams to express common list options (page, per_page, order_by,
// filters). The package also provides helpers for iterating or collecting
// paginated results:
//
//	it := inat.NewPaginationIterator(ctx, cli.Observations(), "/observations", inat.NewQueryParams())
//	for it.HasNext() {
//	  o, err := it.Next()
//	  if err != nil { break }
//	  _ = o
//	}
//
// or fetch all results at once:
//
//	all, err := inat.FetchAllPages(ctx, cli.Observations(), "/observations", nil, inat.DefaultPaginationOptions())
//	if err != nil { /* handle error */ }
//	_ = all
//
// # Errors
//
// API errors are represented by APIError, classified into kinds (auth,
// rate limit, transient, client, server, schema mismatch). Helpers such as
// IsNotFound, IsRateLimited, and IsTransient make it easy to branch on
// common cases.
//
// # Resilience
//
// The package includes the building blocks the concrete client composes: a
// multi-scope token-bucket RateLimiter matching the published provider
// quotas, a RetryPolicy with Retry-After awareness and jittered exponential
// backoff, a pluggable response Cache with ETag revalidation (memory, NATS
// KV, SQLite, or chained backends), and request/response interceptors for
// logging, auth headers, request IDs, metrics, and circuit breaking.
// Applications with advanced needs can also use these primitives directly.
package inat
