package models

import (
	"fmt"
	"time"
)

// Action names the mutation an operation carries to the remote store.
type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionBatchCreate Action = "batch_create"
	ActionBatchUpdate Action = "batch_update"
	ActionBatchDelete Action = "batch_delete"
)

// Valid reports whether a names a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionBatchCreate, ActionBatchUpdate, ActionBatchDelete:
		return true
	}
	return false
}

// IsBatch reports whether the action operates on an array of records.
func (a Action) IsBatch() bool {
	switch a {
	case ActionBatchCreate, ActionBatchUpdate, ActionBatchDelete:
		return true
	}
	return false
}

// IsDelete reports whether the action is translated to a soft-delete flag
// update on the remote store.
func (a Action) IsDelete() bool {
	return a == ActionDelete || a == ActionBatchDelete
}

// OperationPayload is a tagged union over the five entity kinds. Exactly one
// slice is populated, matching Entity; decoding and adapter dispatch switch on
// the tag exhaustively.
type OperationPayload struct {
	Entity       EntityType    `json:"entity"`
	Products     []Product     `json:"products,omitempty"`
	Customers    []Customer    `json:"customers,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
	Drops        []Drop        `json:"drops,omitempty"`
	Staff        []Staff       `json:"staff,omitempty"`
}

func ProductPayload(records ...Product) OperationPayload {
	return OperationPayload{Entity: EntityProduct, Products: records}
}

func CustomerPayload(records ...Customer) OperationPayload {
	return OperationPayload{Entity: EntityCustomer, Customers: records}
}

func TransactionPayload(records ...Transaction) OperationPayload {
	return OperationPayload{Entity: EntityTransaction, Transactions: records}
}

func DropPayload(records ...Drop) OperationPayload {
	return OperationPayload{Entity: EntityDrop, Drops: records}
}

func StaffPayload(records ...Staff) OperationPayload {
	return OperationPayload{Entity: EntityStaff, Staff: records}
}

// Records returns the populated slice as the generic Record contract,
// preserving order.
func (p OperationPayload) Records() []Record {
	switch p.Entity {
	case EntityProduct:
		out := make([]Record, len(p.Products))
		for i, r := range p.Products {
			out[i] = r
		}
		return out
	case EntityCustomer:
		out := make([]Record, len(p.Customers))
		for i, r := range p.Customers {
			out[i] = r
		}
		return out
	case EntityTransaction:
		out := make([]Record, len(p.Transactions))
		for i, r := range p.Transactions {
			out[i] = r
		}
		return out
	case EntityDrop:
		out := make([]Record, len(p.Drops))
		for i, r := range p.Drops {
			out[i] = r
		}
		return out
	case EntityStaff:
		out := make([]Record, len(p.Staff))
		for i, r := range p.Staff {
			out[i] = r
		}
		return out
	}
	return nil
}

// Len returns the number of records carried by the payload.
func (p OperationPayload) Len() int {
	switch p.Entity {
	case EntityProduct:
		return len(p.Products)
	case EntityCustomer:
		return len(p.Customers)
	case EntityTransaction:
		return len(p.Transactions)
	case EntityDrop:
		return len(p.Drops)
	case EntityStaff:
		return len(p.Staff)
	}
	return 0
}

// Validate checks that the tag is known and the matching slice is non-empty.
func (p OperationPayload) Validate() error {
	if !p.Entity.Valid() {
		return fmt.Errorf("unknown entity type: %q", p.Entity)
	}
	if p.Len() == 0 {
		return fmt.Errorf("empty payload for entity %s", p.Entity)
	}
	return nil
}

// Operation is one pending mutation awaiting remote confirmation.
type Operation struct {
	ID         string           `json:"id"`
	Entity     EntityType       `json:"entity"`
	Action     Action           `json:"action"`
	Payload    OperationPayload `json:"payload"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
	RetryCount int              `json:"retry_count"`
}

// DeadLetterEntry is an operation removed from the active retry path after
// exhausting its retry budget, held for manual replay.
type DeadLetterEntry struct {
	Op       Operation `json:"operation"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
