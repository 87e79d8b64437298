package inat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Location is a latitude/longitude pair. The API serializes coordinates
// either as a "lat,lng" string or as a [lat, lng] array depending on the
// endpoint; both decode into this type.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// UnmarshalJSON accepts both the string and the array coordinate forms.
func (l *Location) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parts := strings.SplitN(asString, ",", 2)
		if len(parts) != 2 {
			return fmt.Errorf("location %q: %w", asString, ErrSchemaMismatch)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return fmt.Errorf("location latitude %q: %w", parts[0], ErrSchemaMismatch)
		}

		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return fmt.Errorf("location longitude %q: %w", parts[1], ErrSchemaMismatch)
		}

		l.Latitude = lat
		l.Longitude = lng

		return nil
	}

	var asArray []float64
	if err := json.Unmarshal(data, &asArray); err == nil {
		if len(asArray) != 2 {
			return fmt.Errorf("location array of %d elements: %w", len(asArray), ErrSchemaMismatch)
		}

		l.Latitude = asArray[0]
		l.Longitude = asArray[1]

		return nil
	}

	return fmt.Errorf("unrecognized location encoding: %w", ErrSchemaMismatch)
}

// MarshalJSON emits the string form the write endpoints accept.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%g,%g", l.Latitude, l.Longitude))
}

// Photo represents an uploaded observation photo.
type Photo struct {
	ID          int    `json:"id"                     yaml:"id"`
	URL         string `json:"url,omitempty"          yaml:"url,omitempty"`
	Attribution string `json:"attribution,omitempty"  yaml:"attribution,omitempty"`
	LicenseCode string `json:"license_code,omitempty" yaml:"license_code,omitempty"`
}

// EntityID implements Identifiable.
func (p Photo) EntityID() int { return p.ID }

// User represents an iNaturalist user account.
type User struct {
	ID    int    `json:"id"             yaml:"id"`
	Login string `json:"login"          yaml:"login"`
	// Name is the display name; defaults to "" when the user has not set
	// one.
	Name              string     `json:"name,omitempty"               yaml:"name,omitempty"`
	IconURL           string     `json:"icon_url,omitempty"           yaml:"icon_url,omitempty"`
	ObservationsCount int        `json:"observations_count,omitempty" yaml:"observations_count,omitempty"`
	SpeciesCount      int        `json:"species_count,omitempty"      yaml:"species_count,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"         yaml:"created_at,omitempty"`
}

// EntityID implements Identifiable.
func (u User) EntityID() int { return u.ID }

// Taxon represents a node in the taxonomic tree. Its Rank is the
// polymorphism discriminant: payloads missing a recognized rank are
// rejected by the mapper.
type Taxon struct {
	ID        int     `json:"id"                   yaml:"id"`
	Name      string  `json:"name"                 yaml:"name"`
	Rank      string  `json:"rank"                 yaml:"rank"`
	RankLevel float64 `json:"rank_level,omitempty" yaml:"rank_level,omitempty"`
	// PreferredCommonName defaults to "" for taxa without a vernacular
	// name in the requested locale.
	PreferredCommonName string `json:"preferred_common_name,omitempty" yaml:"preferred_common_name,omitempty"`
	IconicTaxonName     string `json:"iconic_taxon_name,omitempty"     yaml:"iconic_taxon_name,omitempty"`
	AncestorIDs         []int  `json:"ancestor_ids,omitempty"          yaml:"ancestor_ids,omitempty"`
	ObservationsCount   int    `json:"observations_count,omitempty"    yaml:"observations_count,omitempty"`
	IsActive            *bool  `json:"is_active,omitempty"             yaml:"is_active,omitempty"`
	DefaultPhoto        *Photo `json:"default_photo,omitempty"         yaml:"default_photo,omitempty"`
	// Extinct defaults to false when the API omits it.
	Extinct bool `json:"extinct,omitempty" yaml:"extinct,omitempty"`
}

// EntityID implements Identifiable.
func (t Taxon) EntityID() int { return t.ID }

// Active reports whether the taxon concept is active, defaulting to true
// when the API omits the field.
func (t Taxon) Active() bool {
	if t.IsActive == nil {
		return true
	}

	return *t.IsActive
}

// TaxonRanks is the rank ladder recognized by the API, most general first.
var TaxonRanks = []string{
	"kingdom", "phylum", "subphylum", "superclass", "class", "subclass",
	"superorder", "order", "suborder", "infraorder", "superfamily",
	"epifamily", "family", "subfamily", "supertribe", "tribe", "subtribe",
	"genus", "genushybrid", "subgenus", "section", "subsection", "complex",
	"species", "hybrid", "subspecies", "variety", "form", "infrahybrid",
}

// IsKnownRank reports whether rank appears on the rank ladder.
func IsKnownRank(rank string) bool {
	for _, known := range TaxonRanks {
		if rank == known {
			return true
		}
	}

	return false
}

// Identification represents one identification attached to an observation.
type Identification struct {
	ID   int `json:"id" yaml:"id"`
	// Category is "improving", "supporting", "leading" or "maverick";
	// defaults to "" until the server computes it.
	Category  string     `json:"category,omitempty"   yaml:"category,omitempty"`
	Current   bool       `json:"current"              yaml:"current"`
	Taxon     *Taxon     `json:"taxon,omitempty"      yaml:"taxon,omitempty"`
	User      *User      `json:"user,omitempty"       yaml:"user,omitempty"`
	Body      string     `json:"body,omitempty"       yaml:"body,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// EntityID implements Identifiable.
func (i Identification) EntityID() int { return i.ID }

// Observation represents a single observation record.
type Observation struct {
	ID   int    `json:"id"             yaml:"id"`
	UUID string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	// SpeciesGuess defaults to "" when the observer did not enter one.
	SpeciesGuess string `json:"species_guess,omitempty" yaml:"species_guess,omitempty"`
	// Description defaults to "" when absent from the payload.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// QualityGrade is "casual", "needs_id" or "research".
	QualityGrade string     `json:"quality_grade,omitempty" yaml:"quality_grade,omitempty"`
	ObservedOn   string     `json:"observed_on,omitempty"   yaml:"observed_on,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"    yaml:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"    yaml:"updated_at,omitempty"`
	// Location is nil for obscured or coordinate-less observations.
	Location             *Location        `json:"location,omitempty"              yaml:"location,omitempty"`
	PlaceGuess           string           `json:"place_guess,omitempty"           yaml:"place_guess,omitempty"`
	PositionalAccuracy   *int             `json:"positional_accuracy,omitempty"   yaml:"positional_accuracy,omitempty"`
	Geoprivacy           string           `json:"geoprivacy,omitempty"            yaml:"geoprivacy,omitempty"`
	Taxon                *Taxon           `json:"taxon,omitempty"                 yaml:"taxon,omitempty"`
	User                 *User            `json:"user,omitempty"                  yaml:"user,omitempty"`
	Photos               []Photo          `json:"photos,omitempty"                yaml:"photos,omitempty"`
	Identifications      []Identification `json:"identifications,omitempty"       yaml:"identifications,omitempty"`
	IdentificationsCount int              `json:"identifications_count,omitempty" yaml:"identifications_count,omitempty"`
	CommentsCount        int              `json:"comments_count,omitempty"        yaml:"comments_count,omitempty"`
	// Captive defaults to false when omitted.
	Captive bool `json:"captive,omitempty" yaml:"captive,omitempty"`
}

// EntityID implements Identifiable.
func (o Observation) EntityID() int { return o.ID }

// Place represents a geographic place. AdminLevel selects the
// administrative variant (country, state, county...); community-curated
// places have no admin level.
type Place struct {
	ID          int    `json:"id"                     yaml:"id"`
	Name        string `json:"name"                   yaml:"name"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	// AdminLevel is nil for community-curated places.
	AdminLevel  *int      `json:"admin_level,omitempty"        yaml:"admin_level,omitempty"`
	PlaceType   int       `json:"place_type,omitempty"         yaml:"place_type,omitempty"`
	BBoxArea    float64   `json:"bbox_area,omitempty"          yaml:"bbox_area,omitempty"`
	Location    *Location `json:"location,omitempty"           yaml:"location,omitempty"`
	AncestorIDs []int     `json:"ancestor_place_ids,omitempty" yaml:"ancestor_place_ids,omitempty"`
}

// EntityID implements Identifiable.
func (p Place) EntityID() int { return p.ID }

// Admin levels distinguishing standard place variants.
const (
	AdminLevelContinent = -10
	AdminLevelCountry   = 0
	AdminLevelState     = 10
	AdminLevelCounty    = 20
	AdminLevelTown      = 30
	AdminLevelPark      = 100
)

// Project represents a collection project.
type Project struct {
	ID    int    `json:"id"    yaml:"id"`
	Title string `json:"title" yaml:"title"`
	// Description defaults to "" when absent.
	Description string     `json:"description,omitempty"  yaml:"description,omitempty"`
	Slug        string     `json:"slug,omitempty"         yaml:"slug,omitempty"`
	ProjectType string     `json:"project_type,omitempty" yaml:"project_type,omitempty"`
	PlaceID     *int       `json:"place_id,omitempty"     yaml:"place_id,omitempty"`
	Location    *Location  `json:"location,omitempty"     yaml:"location,omitempty"`
	User        *User      `json:"user,omitempty"         yaml:"user,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"   yaml:"created_at,omitempty"`
}

// EntityID implements Identifiable.
func (p Project) EntityID() int { return p.ID }

// SpeciesCount is one row of a species_counts aggregation.
type SpeciesCount struct {
	Count int    `json:"count" yaml:"count"`
	Taxon *Taxon `json:"taxon" yaml:"taxon"`
}

// HistogramResponse is the envelope of the observations histogram endpoint:
// interval key to observation count.
type HistogramResponse struct {
	Results map[string]map[string]int `json:"results" yaml:"results"`
}

// TaxonCount is one node of the observations taxonomy tree: a taxon
// annotated with how many matching observations sit on it directly and
// across its descendants.
type TaxonCount struct {
	Taxon
	DirectObsCount     int `json:"direct_obs_count,omitempty"     yaml:"direct_obs_count,omitempty"`
	DescendantObsCount int `json:"descendant_obs_count,omitempty" yaml:"descendant_obs_count,omitempty"`
}

// TaxonomyResponse is the envelope of the observations taxonomy endpoint.
// CountWithoutTaxon covers observations with no identification at all.
type TaxonomyResponse struct {
	TotalResults      int          `json:"total_results"                 yaml:"total_results"`
	CountWithoutTaxon int          `json:"count_without_taxon,omitempty" yaml:"count_without_taxon,omitempty"`
	Results           []TaxonCount `json:"results"                       yaml:"results"`
}

// ConservationStatus is a taxon's conservation listing within a place.
type ConservationStatus struct {
	Authority  string `json:"authority,omitempty"   yaml:"authority,omitempty"`
	Status     string `json:"status,omitempty"      yaml:"status,omitempty"`
	StatusName string `json:"status_name,omitempty" yaml:"status_name,omitempty"`
	IUCN       int    `json:"iucn,omitempty"        yaml:"iucn,omitempty"`
	Geoprivacy string `json:"geoprivacy,omitempty"  yaml:"geoprivacy,omitempty"`
	Place      *Place `json:"place,omitempty"       yaml:"place,omitempty"`
}

// ListedTaxon records a taxon's presence on a place checklist.
type ListedTaxon struct {
	ID                 int    `json:"id"                            yaml:"id"`
	EstablishmentMeans string `json:"establishment_means,omitempty" yaml:"establishment_means,omitempty"`
	Place              *Place `json:"place,omitempty"               yaml:"place,omitempty"`
	Taxon              *Taxon `json:"taxon,omitempty"               yaml:"taxon,omitempty"`
}

// TaxonSummary describes an observation's taxon in the context of the
// observation's location.
type TaxonSummary struct {
	ConservationStatus *ConservationStatus `json:"conservation_status,omitempty" yaml:"conservation_status,omitempty"`
	ListedTaxon        *ListedTaxon        `json:"listed_taxon,omitempty"        yaml:"listed_taxon,omitempty"`
	WikipediaSummary   string              `json:"wikipedia_summary,omitempty"   yaml:"wikipedia_summary,omitempty"`
}

// UserCount is one row of the observers/identifiers aggregations.
type UserCount struct {
	Count            int   `json:"count,omitempty"             yaml:"count,omitempty"`
	ObservationCount int   `json:"observation_count,omitempty" yaml:"observation_count,omitempty"`
	SpeciesCount     int   `json:"species_count,omitempty"     yaml:"species_count,omitempty"`
	User             *User `json:"user"                        yaml:"user"`
}
