package adapters

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidesync/internal/models"
)

func TestForEntityCoversAllKinds(t *testing.T) {
	for _, kind := range models.EntityTypes() {
		t.Run(string(kind), func(t *testing.T) {
			a, err := ForEntity(kind)
			require.NoError(t, err)
			assert.Equal(t, kind, a.Kind())
			assert.NotEmpty(t, a.Table())
			assert.NotEmpty(t, a.ConflictKey())
		})
	}

	_, err := ForEntity(models.EntityType("unknown"))
	assert.Error(t, err)
}

func TestProductRoundTrip(t *testing.T) {
	sku := "SKU-42"
	dropID := "drop-1"
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := models.Product{
		ID:         "prod-1",
		Name:       "Vintage denim jacket",
		SKU:        &sku,
		PriceCents: 4500,
		Quantity:   2,
		DropID:     &dropID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	a := ProductAdapter{}
	rows, err := a.ToRemote([]models.Record{p})
	require.NoError(t, err)

	raw, err := json.Marshal(rows)
	require.NoError(t, err)

	var decoded []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)

	back, err := a.FromRemote(decoded[0])
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestProductNullFieldsStayExplicit(t *testing.T) {
	a := ProductAdapter{}
	rows, err := a.ToRemote([]models.Record{models.Product{ID: "prod-1", Name: "bare"}})
	require.NoError(t, err)

	raw, err := json.Marshal(rows)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)

	// Absent optionals must be present as null, not dropped.
	for _, field := range []string{"sku", "drop_id", "category", "deleted_at"} {
		val, ok := decoded[0][field]
		require.True(t, ok, "field %s missing", field)
		assert.Nil(t, val, "field %s should be null", field)
	}
}

func TestDropConflictKeyIsDropNumber(t *testing.T) {
	a := DropAdapter{}
	assert.Equal(t, "drop_number", a.ConflictKey())

	d := models.Drop{ID: "drop-uuid", DropNumber: "D-2026-014", ConsignorName: "R. Mercer"}
	key, err := a.Key(d)
	require.NoError(t, err)
	assert.Equal(t, "D-2026-014", key)
}

func TestDropRoundTrip(t *testing.T) {
	notes := "mixed lot"
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	d := models.Drop{
		ID:            "drop-uuid",
		DropNumber:    "D-2026-014",
		ConsignorName: "R. Mercer",
		Notes:         &notes,
		ReceivedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	a := DropAdapter{}
	rows, err := a.ToRemote([]models.Record{d})
	require.NoError(t, err)

	raw, err := json.Marshal(rows)
	require.NoError(t, err)

	var decoded []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)

	back, err := a.FromRemote(decoded[0])
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestTransactionLinesSurviveRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 15, 16, 45, 0, 0, time.UTC)
	tx := models.Transaction{
		ID: "tx-1",
		Lines: []models.TransactionLine{
			{ProductID: "prod-1", Quantity: 1, PriceCents: 4500},
			{ProductID: "prod-2", Quantity: 3, PriceCents: 900},
		},
		TotalCents:    7200,
		PaymentMethod: "card",
		CreatedAt:     now,
	}

	a := TransactionAdapter{}
	rows, err := a.ToRemote([]models.Record{tx})
	require.NoError(t, err)

	raw, err := json.Marshal(rows)
	require.NoError(t, err)

	var decoded []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)

	back, err := a.FromRemote(decoded[0])
	require.NoError(t, err)
	assert.Equal(t, tx, back)
}

func TestWrongKindRejected(t *testing.T) {
	a := ProductAdapter{}

	_, err := a.ToRemote([]models.Record{models.Customer{ID: "cust-1"}})
	assert.Error(t, err)

	_, err = a.Key(models.Staff{ID: "staff-1"})
	assert.Error(t, err)
}
