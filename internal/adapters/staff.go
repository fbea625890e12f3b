package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"tidesync/internal/models"
)

type staffRow struct {
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

type StaffAdapter struct{}

func (StaffAdapter) Kind() models.EntityType { return models.EntityStaff }
func (StaffAdapter) Table() string           { return "staff" }
func (StaffAdapter) ConflictKey() string     { return "id" }

func (a StaffAdapter) ToRemote(records []models.Record) (any, error) {
	rows := make([]staffRow, 0, len(records))
	for _, rec := range records {
		s, ok := rec.(models.Staff)
		if !ok {
			return nil, wrongKind(a.Kind(), rec)
		}
		rows = append(rows, staffRow{
			ID:        s.ID,
			Name:      s.Name,
			Role:      s.Role,
			PINHash:   s.PINHash,
			Active:    s.Active,
			Deleted:   s.Deleted,
			DeletedAt: s.DeletedAt,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return rows, nil
}

func (StaffAdapter) FromRemote(raw json.RawMessage) (models.Record, error) {
	var row staffRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode staff row: %w", err)
	}
	return models.Staff{
		ID:        row.ID,
		Name:      row.Name,
		Role:      row.Role,
		PINHash:   row.PINHash,
		Active:    row.Active,
		Deleted:   row.Deleted,
		DeletedAt: row.DeletedAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (a StaffAdapter) Key(rec models.Record) (string, error) {
	if _, ok := rec.(models.Staff); !ok {
		return "", wrongKind(a.Kind(), rec)
	}
	return rec.RecordID(), nil
}
