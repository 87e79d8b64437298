package inat

import (
	"encoding/json"
	"fmt"
)

// EntityKind discriminates the record types the API returns.
type EntityKind string

const (
	KindObservation    EntityKind = "observation"
	KindTaxon          EntityKind = "taxon"
	KindUser           EntityKind = "user"
	KindPlace          EntityKind = "place"
	KindProject        EntityKind = "project"
	KindIdentification EntityKind = "identification"
	KindPhoto          EntityKind = "photo"
)

// ToEntity decodes a raw API record into the typed model for kind.
// Payloads that decode but violate the kind's shape (missing identifier,
// unknown taxon rank) are rejected with ErrSchemaMismatch; the raw payload
// is recoverable from the error message, never silently coerced.
func ToEntity(kind EntityKind, raw json.RawMessage) (Identifiable, error) {
	switch kind {
	case KindObservation:
		return decodeEntity[Observation](kind, raw, func(o *Observation) error {
			if o.ID == 0 {
				return fmt.Errorf("observation missing id: %w", ErrSchemaMismatch)
			}

			return nil
		})

	case KindTaxon:
		return decodeEntity[Taxon](kind, raw, validateTaxon)

	case KindUser:
		return decodeEntity[User](kind, raw, func(u *User) error {
			if u.ID == 0 || u.Login == "" {
				return fmt.Errorf("user missing id or login: %w", ErrSchemaMismatch)
			}

			return nil
		})

	case KindPlace:
		return decodeEntity[Place](kind, raw, func(p *Place) error {
			if p.ID == 0 || p.Name == "" {
				return fmt.Errorf("place missing id or name: %w", ErrSchemaMismatch)
			}

			return nil
		})

	case KindProject:
		return decodeEntity[Project](kind, raw, func(p *Project) error {
			if p.ID == 0 {
				return fmt.Errorf("project missing id: %w", ErrSchemaMismatch)
			}

			return nil
		})

	case KindIdentification:
		return decodeEntity[Identification](kind, raw, func(i *Identification) error {
			if i.ID == 0 {
				return fmt.Errorf("identification missing id: %w", ErrSchemaMismatch)
			}

			return nil
		})

	case KindPhoto:
		return decodeEntity[Photo](kind, raw, func(p *Photo) error {
			if p.ID == 0 {
				return fmt.Errorf("photo missing id: %w", ErrSchemaMismatch)
			}

			return nil
		})

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityKind, kind)
	}
}

// decodeEntity unmarshals raw into T and applies the kind's validation.
func decodeEntity[T Identifiable](kind EntityKind, raw json.RawMessage, validate func(*T) error) (Identifiable, error) {
	var entity T

	err := json.Unmarshal(raw, &entity)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %v: %w", kind, err, ErrSchemaMismatch)
	}

	if validate != nil {
		err = validate(&entity)
		if err != nil {
			return nil, err
		}
	}

	return entity, nil
}

func validateTaxon(t *Taxon) error {
	if t.ID == 0 {
		return fmt.Errorf("taxon missing id: %w", ErrSchemaMismatch)
	}

	// Rank is the taxon discriminant; records without a recognized rank
	// cannot be placed on the rank ladder.
	if t.Rank != "" && !IsKnownRank(t.Rank) {
		return fmt.Errorf("taxon %d has unknown rank %q: %w", t.ID, t.Rank, ErrSchemaMismatch)
	}

	return nil
}

// ToEntities maps a slice of raw records, failing on the first mismatch.
func ToEntities(kind EntityKind, raws []json.RawMessage) ([]Identifiable, error) {
	entities := make([]Identifiable, 0, len(raws))

	for i, raw := range raws {
		entity, err := ToEntity(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

// DecodeList decodes a full list envelope into typed results.
func DecodeList[T any](data []byte) (*ListResponse[T], error) {
	var response ListResponse[T]

	err := json.Unmarshal(data, &response)
	if err != nil {
		return nil, fmt.Errorf("decoding list response: %v: %w", err, ErrSchemaMismatch)
	}

	return &response, nil
}
