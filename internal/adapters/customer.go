package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"tidesync/internal/models"
)

type customerRow struct {
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

type CustomerAdapter struct{}

func (CustomerAdapter) Kind() models.EntityType { return models.EntityCustomer }
func (CustomerAdapter) Table() string           { return "customers" }
func (CustomerAdapter) ConflictKey() string     { return "id" }

func (a CustomerAdapter) ToRemote(records []models.Record) (any, error) {
	rows := make([]customerRow, 0, len(records))
	for _, rec := range records {
		c, ok := rec.(models.Customer)
		if !ok {
			return nil, wrongKind(a.Kind(), rec)
		}
		rows = append(rows, customerRow{
			ID:        c.ID,
			Name:      c.Name,
			Phone:     c.Phone,
			Email:     c.Email,
			Notes:     c.Notes,
			Deleted:   c.Deleted,
			DeletedAt: c.DeletedAt,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return rows, nil
}

func (CustomerAdapter) FromRemote(raw json.RawMessage) (models.Record, error) {
	var row customerRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode customer row: %w", err)
	}
	return models.Customer{
		ID:        row.ID,
		Name:      row.Name,
		Phone:     row.Phone,
		Email:     row.Email,
		Notes:     row.Notes,
		Deleted:   row.Deleted,
		DeletedAt: row.DeletedAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (a CustomerAdapter) Key(rec models.Record) (string, error) {
	if _, ok := rec.(models.Customer); !ok {
		return "", wrongKind(a.Kind(), rec)
	}
	return rec.RecordID(), nil
}
