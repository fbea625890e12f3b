package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"tidesync/internal/models"
)

type dropRow struct {
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

// DropAdapter upserts by drop_number, the externally assigned business key,
// so re-importing the same numbered drop never creates a duplicate row.
type DropAdapter struct{}

func (DropAdapter) Kind() models.EntityType { return models.EntityDrop }
func (DropAdapter) Table() string           { return "drops" }
func (DropAdapter) ConflictKey() string     { return "drop_number" }

func (a DropAdapter) ToRemote(records []models.Record) (any, error) {
	rows := make([]dropRow, 0, len(records))
	for _, rec := range records {
		d, ok := rec.(models.Drop)
		if !ok {
			return nil, wrongKind(a.Kind(), rec)
		}
		rows = append(rows, dropRow{
			ID:            d.ID,
			DropNumber:    d.DropNumber,
			ConsignorName: d.ConsignorName,
			Notes:         d.Notes,
			ReceivedAt:    d.ReceivedAt,
			Deleted:       d.Deleted,
			DeletedAt:     d.DeletedAt,
			CreatedAt:     d.CreatedAt,
			UpdatedAt:     d.UpdatedAt,
		})
	}
	return rows, nil
}

func (DropAdapter) FromRemote(raw json.RawMessage) (models.Record, error) {
	var row dropRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode drop row: %w", err)
	}
	return models.Drop{
		ID:            row.ID,
		DropNumber:    row.DropNumber,
		ConsignorName: row.ConsignorName,
		Notes:         row.Notes,
		ReceivedAt:    row.ReceivedAt,
		Deleted:       row.Deleted,
		DeletedAt:     row.DeletedAt,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (a DropAdapter) Key(rec models.Record) (string, error) {
	d, ok := rec.(models.Drop)
	if !ok {
		return "", wrongKind(a.Kind(), rec)
	}
	return d.DropNumber, nil
}
