package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"tidesync/internal/models"
)

// productRow is the remote products table shape. No omitempty: absent
// optionals must serialize as null, never disappear.
type productRow struct {
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

type ProductAdapter struct{}

func (ProductAdapter) Kind() models.EntityType { return models.EntityProduct }
func (ProductAdapter) Table() string           { return "products" }
func (ProductAdapter) ConflictKey() string     { return "id" }

func (a ProductAdapter) ToRemote(records []models.Record) (any, error) {
	rows := make([]productRow, 0, len(records))
	for _, rec := range records {
		p, ok := rec.(models.Product)
		if !ok {
			return nil, wrongKind(a.Kind(), rec)
		}
		rows = append(rows, productRow{
			ID:         p.ID,
			Name:       p.Name,
			SKU:        p.SKU,
			PriceCents: p.PriceCents,
			Quantity:   p.Quantity,
			DropID:     p.DropID,
			Category:   p.Category,
			Deleted:    p.Deleted,
			DeletedAt:  p.DeletedAt,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
		})
	}
	return rows, nil
}

func (ProductAdapter) FromRemote(raw json.RawMessage) (models.Record, error) {
	var row productRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode product row: %w", err)
	}
	return models.Product{
		ID:         row.ID,
		Name:       row.Name,
		SKU:        row.SKU,
		PriceCents: row.PriceCents,
		Quantity:   row.Quantity,
		DropID:     row.DropID,
		Category:   row.Category,
		Deleted:    row.Deleted,
		DeletedAt:  row.DeletedAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (a ProductAdapter) Key(rec models.Record) (string, error) {
	if _, ok := rec.(models.Product); !ok {
		return "", wrongKind(a.Kind(), rec)
	}
	return rec.RecordID(), nil
}
