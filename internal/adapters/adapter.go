// Package adapters holds the stateless translators between local records and
// remote table rows, one per entity kind. Mappings are total: every local
// field has a remote column and empty optionals travel as explicit nulls.
package adapters

import (
	"encoding/json"
	"fmt"

	"tidesync/internal/models"
)

// Adapter converts between the local shape of one entity kind and its remote
// table rows, and names the conflict key its upserts are idempotent under.
type Adapter interface {
	Kind() models.EntityType
	Table() string
	ConflictKey() string

	// ToRemote converts local records into a slice of remote rows ready for
	// JSON encoding. The records must come from a payload of this kind.
	ToRemote(records []models.Record) (any, error)

	// FromRemote decodes one remote row into the local shape.
	FromRemote(raw json.RawMessage) (models.Record, error)

	// Key returns the conflict key value of a local record.
	Key(rec models.Record) (string, error)
}

// ForEntity resolves the adapter for a kind; the switch is exhaustive over
// the tagged union.
func ForEntity(t models.EntityType) (Adapter, error) {
	switch t {
	case models.EntityProduct:
		return ProductAdapter{}, nil
	case models.EntityCustomer:
		return CustomerAdapter{}, nil
	case models.EntityTransaction:
		return TransactionAdapter{}, nil
	case models.EntityDrop:
		return DropAdapter{}, nil
	case models.EntityStaff:
		return StaffAdapter{}, nil
	}
	return nil, fmt.Errorf("no adapter for entity type %q", t)
}

// All returns every adapter keyed by kind.
func All() map[models.EntityType]Adapter {
	out := make(map[models.EntityType]Adapter, len(models.EntityTypes()))
	for _, t := range models.EntityTypes() {
		a, err := ForEntity(t)
		if err != nil {
			panic(err)
		}
		out[t] = a
	}
	return out
}

func wrongKind(want models.EntityType, rec models.Record) error {
	return fmt.Errorf("adapter for %s received record %T", want, rec)
}
