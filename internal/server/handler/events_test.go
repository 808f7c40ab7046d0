package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/store/memory"
)

func seedEvents(t *testing.T, store *memory.EventStore, at ...time.Time) {
	t.Helper()
	for i, ts := range at {
		evt := domain.Event{
			ID:         string(rune('a' + i)),
			Type:       domain.EventWithdrawal,
			ClaimID:    domain.ClaimID(i + 1),
			PositionID: domain.PositionID(100 + i),
			Recipient:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
			Amount:     big.NewInt(int64(1000 * (i + 1))),
			CreatedAt:  ts,
		}
		require.NoError(t, store.Append(context.Background(), evt))
	}
}

func listEvents(t *testing.T, h *EventsHandler, target string) []eventResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []eventResponse `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Events
}

func TestListEventsTimeWindow(t *testing.T) {
	store := memory.NewEventStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seedEvents(t, store,
		base,
		base.Add(1*time.Hour),
		base.Add(2*time.Hour),
	)
	h := NewEventsHandler(store, slog.New(slog.DiscardHandler))

	// No filters: all three, newest first.
	all := listEvents(t, h, "/api/events")
	require.Len(t, all, 3)
	assert.Equal(t, uint64(3), all[0].ClaimID)
	assert.Equal(t, uint64(1), all[2].ClaimID)

	// since excludes events created before it.
	since := base.Add(30 * time.Minute).Format(time.RFC3339)
	got := listEvents(t, h, "/api/events?since="+since)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].ClaimID)
	assert.Equal(t, uint64(2), got[1].ClaimID)

	// until excludes events created after it.
	until := base.Add(90 * time.Minute).Format(time.RFC3339)
	got = listEvents(t, h, "/api/events?until="+until)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].ClaimID)
	assert.Equal(t, uint64(1), got[1].ClaimID)

	// A closed window keeps only the middle event.
	got = listEvents(t, h, "/api/events?since="+since+"&until="+until)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].ClaimID)

	// Malformed timestamps are ignored rather than rejected.
	got = listEvents(t, h, "/api/events?since=not-a-time")
	assert.Len(t, got, 3)
}

func TestListEventsPagination(t *testing.T) {
	store := memory.NewEventStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seedEvents(t, store, base, base.Add(time.Hour), base.Add(2*time.Hour))
	h := NewEventsHandler(store, slog.New(slog.DiscardHandler))

	got := listEvents(t, h, "/api/events?limit=1&offset=1")
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].ClaimID)
	assert.Equal(t, "2000", got[0].Amount)
}
