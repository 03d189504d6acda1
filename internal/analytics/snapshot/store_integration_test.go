//go:build integration

package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres/postgrestest"
)

func TestStore_SaveLatestList(t *testing.T) {
	db := postgrestest.Open(t, "analytics_snapshots")
	store := NewStore(db)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.Save(ctx, analytics.AggregatedStats{TotalSearches: 1}))
	require.NoError(t, store.Save(ctx, analytics.AggregatedStats{TotalSearches: 2}))

	latest, err = store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(2), latest.TotalSearches)

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	rec := httptest.NewRecorder()
	store.HistoryHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_searches":2`)

	rec = httptest.NewRecorder()
	store.HistoryHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
