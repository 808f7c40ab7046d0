package domain

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The bus and websocket feeds carry marshaled Events, so their field names
// must match the REST responses.
func TestEventJSONFieldNames(t *testing.T) {
	evt := Event{
		ID:         "ev-1",
		Type:       EventWithdrawal,
		ClaimID:    7,
		PositionID: 107,
		Recipient:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Amount:     big.NewInt(2500),
		CreatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{"id", "type", "claim_id", "position_id", "recipient", "amount", "created_at"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "ClaimID")
	assert.Equal(t, float64(7), m["claim_id"])

	// Amount is omitted for event types that carry none.
	evt.Amount = nil
	data, err = json.Marshal(evt)
	require.NoError(t, err)
	m = map[string]any{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.NotContains(t, m, "amount")
}
