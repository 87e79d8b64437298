package inat

import (
	"context"
	"errors"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrDeprecatedClientConstructor = errors.New("use github.com/fieldnotes-io/inat/pkg/inatclient.New to create a client")
)

// ObservationsClient provides access to observation records.
type ObservationsClient interface {
	Get(ctx context.Context, id int) (*Observation, error)
	List(ctx context.Context, params *QueryParams) (*ListResponse[Observation], error)
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[Observation], error)
	ListAll(ctx context.Context, params *QueryParams, options *PaginationOptions) ([]Observation, error)
	Iterate(ctx context.Context, params *QueryParams) *PageIterator[Observation]
	Create(ctx context.Context, request *ObservationCreateRequest) (*Observation, error)
	Update(ctx context.Context, id int, request *ObservationUpdateRequest) (*Observation, error)
	Delete(ctx context.Context, id int) error
	Histogram(ctx context.Context, params *QueryParams) (*HistogramResponse, error)
	SpeciesCounts(ctx context.Context, params *QueryParams) (*ListResponse[SpeciesCount], error)
	Observers(ctx context.Context, params *QueryParams) (*ListResponse[UserCount], error)
	Identifiers(ctx context.Context, params *QueryParams) (*ListResponse[UserCount], error)
	Taxonomy(ctx context.Context, params *QueryParams) (*TaxonomyResponse, error)
	TaxonSummary(ctx context.Context, id int) (*TaxonSummary, error)
}

// TaxaClient provides access to the taxonomy.
type TaxaClient interface {
	Get(ctx context.Context, id int) (*Taxon, error)
	List(ctx context.Context, params *QueryParams) (*ListResponse[Taxon], error)
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[Taxon], error)
	Search(ctx context.Context, query string, params *QueryParams) (*ListResponse[Taxon], error)
	Autocomplete(ctx context.Context, query string, params *QueryParams) (*ListResponse[Taxon], error)
}

// UsersClient provides access to user accounts.
type UsersClient interface {
	Get(ctx context.Context, id int) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	Me(ctx context.Context) (*User, error)
	Autocomplete(ctx context.Context, query string, params *QueryParams) (*ListResponse[User], error)
}

// PlacesClient provides access to geographic places.
type PlacesClient interface {
	Get(ctx context.Context, id int) (*Place, error)
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[Place], error)
	Nearby(ctx context.Context, swLat, swLng, neLat, neLng float64, params *QueryParams) (*NearbyPlaces, error)
	Autocomplete(ctx context.Context, query string, params *QueryParams) (*ListResponse[Place], error)
}

// ProjectsClient provides access to collection projects.
type ProjectsClient interface {
	Get(ctx context.Context, id int) (*Project, error)
	List(ctx context.Context, params *QueryParams) (*ListResponse[Project], error)
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[Project], error)
	Members(ctx context.Context, id int, params *QueryParams) (*ListResponse[UserCount], error)
}

// IdentificationsClient provides access to identifications.
type IdentificationsClient interface {
	Get(ctx context.Context, id int) (*Identification, error)
	List(ctx context.Context, params *QueryParams) (*ListResponse[Identification], error)
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[Identification], error)
	Create(ctx context.Context, request *IdentificationCreateRequest) (*Identification, error)
	Delete(ctx context.Context, id int) error
}

// NearbyPlaces is the envelope of the places/nearby endpoint.
type NearbyPlaces struct {
	Standard  []Place `json:"standard"  yaml:"standard"`
	Community []Place `json:"community" yaml:"community"`
}

// ObservationCreateRequest is the payload for creating an observation.
type ObservationCreateRequest struct {
	SpeciesGuess       string    `json:"species_guess,omitempty"       yaml:"species_guess,omitempty"`
	TaxonID            *int      `json:"taxon_id,omitempty"            yaml:"taxon_id,omitempty"`
	Description        string    `json:"description,omitempty"         yaml:"description,omitempty"`
	ObservedOnString   string    `json:"observed_on_string,omitempty"  yaml:"observed_on_string,omitempty"`
	Latitude           *float64  `json:"latitude,omitempty"            yaml:"latitude,omitempty"`
	Longitude          *float64  `json:"longitude,omitempty"           yaml:"longitude,omitempty"`
	PositionalAccuracy *int      `json:"positional_accuracy,omitempty" yaml:"positional_accuracy,omitempty"`
	Geoprivacy         string    `json:"geoprivacy,omitempty"          yaml:"geoprivacy,omitempty"`
	PlaceGuess         string    `json:"place_guess,omitempty"         yaml:"place_guess,omitempty"`
	Captive            *bool     `json:"captive_flag,omitempty"        yaml:"captive_flag,omitempty"`
	TagList            []string  `json:"tag_list,omitempty"            yaml:"tag_list,omitempty"`
}

// ObservationUpdateRequest is the payload for updating an observation. Only
// non-nil fields are sent, so unset fields are left untouched server-side.
type ObservationUpdateRequest struct {
	SpeciesGuess     *string  `json:"species_guess,omitempty"      yaml:"species_guess,omitempty"`
	TaxonID          *int     `json:"taxon_id,omitempty"           yaml:"taxon_id,omitempty"`
	Description      *string  `json:"description,omitempty"        yaml:"description,omitempty"`
	ObservedOnString *string  `json:"observed_on_string,omitempty" yaml:"observed_on_string,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"           yaml:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"          yaml:"longitude,omitempty"`
	Geoprivacy       *string  `json:"geoprivacy,omitempty"         yaml:"geoprivacy,omitempty"`
}

// IdentificationCreateRequest is the payload for creating an identification.
type IdentificationCreateRequest struct {
	ObservationID int    `json:"observation_id" yaml:"observation_id"`
	TaxonID       int    `json:"taxon_id"       yaml:"taxon_id"`
	Body          string `json:"body,omitempty" yaml:"body,omitempty"`
}

// Client provides access to all resource clients.
type Client interface {
	Observations() ObservationsClient
	Taxa() TaxaClient
	Users() UsersClient
	Places() PlacesClient
	Projects() ProjectsClient
	Identifications() IdentificationsClient
}

// Config represents client configuration for building an inat.Client.
//
// # Authentication precedence
//
// The following precedence is applied by the concrete client implementation
// (see pkg/inatclient and internal/client):
//  1. APIToken: if set, it is used directly as a static Bearer token.
//  2. ClientID/ClientSecret + Username/Password: uses the OAuth2 password
//     grant against TokenURL, refreshing automatically before expiry.
//  3. ClientID/ClientSecret: uses the client_credentials grant.
//  4. No credentials: requests are sent without authentication; write
//     operations will fail with an authentication error.
//
// # Timeouts and retries
//
// Per-request timeouts should generally be controlled via context passed to
// client methods. Retry behavior can be tuned via RetryMax/RetryWaitMin/
// RetryWaitMax; transient failures (connection errors, 429, 5xx) are the
// only ones retried.
type Config struct {
	// APIEndpoint: base URL for the API. Defaults to the public
	// iNaturalist v1 endpoint. inatclient.New normalizes this value by
	// trimming a trailing slash and adding "https://" if no scheme is
	// present.
	APIEndpoint string

	// Authentication options (provide one)
	// APIToken: if set, used directly as a Bearer token. Static tokens are
	// never refreshed.
	APIToken string
	// ClientID: OAuth2 application ID for the password or
	// client_credentials grant.
	ClientID string
	// ClientSecret: OAuth2 application secret used with ClientID.
	ClientSecret string
	// Username: account username for the OAuth2 password grant.
	Username string
	// Password: account password for the OAuth2 password grant.
	Password string
	// TokenURL: full OAuth2 token endpoint. Defaults to the public
	// iNaturalist token URL.
	TokenURL string

	// Optional configurations
	// UserAgent: identifies the application to the API, as the provider
	// requests. Defaults to the library identifier.
	UserAgent string
	// HTTPTimeout: optional default HTTP timeout where supported. Most
	// client calls should rely on context timeouts.
	HTTPTimeout time.Duration
	// RetryMax: maximum number of retries for transient failures. If 0, a
	// sensible default is used by the client.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries.
	RetryWaitMax time.Duration
	// PerSecond: sustained client-side requests-per-second quota. If 0,
	// the published provider quota is used.
	PerSecond int
	// PerDay: client-side requests-per-day quota. If 0, the published
	// provider quota is used.
	PerDay int
	// CacheConfig: response cache backend selection. If nil, an in-memory
	// cache with defaults is used. Use CacheTypeNone to disable caching.
	CacheConfig *CacheConfig
	// CacheTTL: overrides the default freshness window for cached
	// responses.
	CacheTTL time.Duration
	// DryRun: when true, write requests are logged and short-circuited
	// before reaching the network; reads proceed normally.
	DryRun bool
	// Debug: enables verbose HTTP request/response logging when a Logger
	// is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer.
	Logger Logger
}

// NewClient creates a new API client.
// Deprecated: Use github.com/fieldnotes-io/inat/pkg/inatclient.New instead.
func NewClient(config *Config) (Client, error) {
	return nil, ErrDeprecatedClientConstructor
}
