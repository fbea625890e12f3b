package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"tidesync/internal/models"
)

type transactionLineRow struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

type transactionRow struct {
	ID            string               `json:"id"`
	CustomerID    *string              `json:"customer_id"`
	StaffID       *string              `json:"staff_id"`
	Lines         []transactionLineRow `json:"lines"`
	TotalCents    int64                `json:"total_cents"`
	PaymentMethod string               `json:"payment_method"`
	Deleted       bool                 `json:"deleted"`
	DeletedAt     *time.Time           `json:"deleted_at"`
	CreatedAt     time.Time            `json:"created_at"`
}

type TransactionAdapter struct{}

func (TransactionAdapter) Kind() models.EntityType { return models.EntityTransaction }
func (TransactionAdapter) Table() string           { return "transactions" }
func (TransactionAdapter) ConflictKey() string     { return "id" }

func (a TransactionAdapter) ToRemote(records []models.Record) (any, error) {
	rows := make([]transactionRow, 0, len(records))
	for _, rec := range records {
		t, ok := rec.(models.Transaction)
		if !ok {
			return nil, wrongKind(a.Kind(), rec)
		}
		lines := make([]transactionLineRow, len(t.Lines))
		for i, l := range t.Lines {
			lines[i] = transactionLineRow(l)
		}
		rows = append(rows, transactionRow{
			ID:            t.ID,
			CustomerID:    t.CustomerID,
			StaffID:       t.StaffID,
			Lines:         lines,
			TotalCents:    t.TotalCents,
			PaymentMethod: t.PaymentMethod,
			Deleted:       t.Deleted,
			DeletedAt:     t.DeletedAt,
			CreatedAt:     t.CreatedAt,
		})
	}
	return rows, nil
}

func (TransactionAdapter) FromRemote(raw json.RawMessage) (models.Record, error) {
	var row transactionRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode transaction row: %w", err)
	}
	lines := make([]models.TransactionLine, len(row.Lines))
	for i, l := range row.Lines {
		lines[i] = models.TransactionLine(l)
	}
	return models.Transaction{
		ID:            row.ID,
		CustomerID:    row.CustomerID,
		StaffID:       row.StaffID,
		Lines:         lines,
		TotalCents:    row.TotalCents,
		PaymentMethod: row.PaymentMethod,
		Deleted:       row.Deleted,
		DeletedAt:     row.DeletedAt,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func (a TransactionAdapter) Key(rec models.Record) (string, error) {
	if _, ok := rec.(models.Transaction); !ok {
		return "", wrongKind(a.Kind(), rec)
	}
	return rec.RecordID(), nil
}
