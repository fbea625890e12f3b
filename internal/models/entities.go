package models

import "time"

// EntityType identifies one of the five synchronized record kinds.
type EntityType string

const (
	EntityProduct     EntityType = "product"
	EntityCustomer    EntityType = "customer"
	EntityTransaction EntityType = "transaction"
	EntityDrop        EntityType = "drop"
	EntityStaff       EntityType = "staff"
)

// EntityTypes lists all kinds in a stable order.
func EntityTypes() []EntityType {
	return []EntityType{EntityProduct, EntityCustomer, EntityTransaction, EntityDrop, EntityStaff}
}

// Valid reports whether t names a known entity kind.
func (t EntityType) Valid() bool {
	switch t {
	case EntityProduct, EntityCustomer, EntityTransaction, EntityDrop, EntityStaff:
		return true
	}
	return false
}

// Record is the contract every synchronized entity satisfies: an immutable id,
// a monotonically increasing modification timestamp used as the LWW tiebreaker,
// and a soft-delete flag instead of physical deletion.
type Record interface {
	RecordID() string
	ModifiedAt() time.Time
	IsDeleted() bool
}

// Product is a sellable item, usually belonging to a drop.
type Product struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SKU        *string    `json:"sku"`
	PriceCents int64      `json:"price_cents"`
	Quantity   int        `json:"quantity"`
	DropID     *string    `json:"drop_id"`
	Category   *string    `json:"category"`
	Deleted    bool       `json:"deleted"`
	DeletedAt  *time.Time `json:"deleted_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (p Product) RecordID() string      { return p.ID }
func (p Product) ModifiedAt() time.Time { return p.UpdatedAt }
func (p Product) IsDeleted() bool       { return p.Deleted }

// Customer is a registered buyer or consignor contact.
type Customer struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Phone     *string    `json:"phone"`
	Email     *string    `json:"email"`
	Notes     *string    `json:"notes"`
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c Customer) RecordID() string      { return c.ID }
func (c Customer) ModifiedAt() time.Time { return c.UpdatedAt }
func (c Customer) IsDeleted() bool       { return c.Deleted }

// TransactionLine is one product position inside a sale.
type TransactionLine struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// Transaction is an append-only sale record; CreatedAt doubles as its
// modification timestamp because finished sales are never edited.
type Transaction struct {
	ID            string            `json:"id"`
	CustomerID    *string           `json:"customer_id"`
	StaffID       *string           `json:"staff_id"`
	Lines         []TransactionLine `json:"lines"`
	TotalCents    int64             `json:"total_cents"`
	PaymentMethod string            `json:"payment_method"`
	Deleted       bool              `json:"deleted"`
	DeletedAt     *time.Time        `json:"deleted_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (t Transaction) RecordID() string      { return t.ID }
func (t Transaction) ModifiedAt() time.Time { return t.CreatedAt }
func (t Transaction) IsDeleted() bool       { return t.Deleted }

// Drop is an externally numbered batch of incoming products. DropNumber is
// assigned outside the system and is the conflict key used for remote upserts,
// so re-importing the same drop never creates duplicates.
type Drop struct {
	ID            string     `json:"id"`
	DropNumber    string     `json:"drop_number"`
	ConsignorName string     `json:"consignor_name"`
	Notes         *string    `json:"notes"`
	ReceivedAt    time.Time  `json:"received_at"`
	Deleted       bool       `json:"deleted"`
	DeletedAt     *time.Time `json:"deleted_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (d Drop) RecordID() string      { return d.ID }
func (d Drop) ModifiedAt() time.Time { return d.UpdatedAt }
func (d Drop) IsDeleted() bool       { return d.Deleted }

// Staff is an employee account allowed to operate the register.
type Staff struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	PINHash   *string    `json:"pin_hash"`
	Active    bool       `json:"active"`
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s Staff) RecordID() string      { return s.ID }
func (s Staff) ModifiedAt() time.Time { return s.UpdatedAt }
func (s Staff) IsDeleted() bool       { return s.Deleted }
