package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskpos/pos-backend/pkg/db/models"
)

type stubStockReader struct {
	items     []models.Ingredient
	lastLimit int
}

func (s *stubStockReader) LowStock(_ context.Context, limit int) ([]models.Ingredient, error) {
	s.lastLimit = limit
	return s.items, nil
}

func TestLowStockListsIngredients(t *testing.T) {
	t.Parallel()
	reader := &stubStockReader{items: []models.Ingredient{{ID: 3, Name: "Tortilla", Stock: 2, MinThreshold: 5}}}

	resp := httptest.NewRecorder()
	LowStock(reader, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock?limit=10", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 10, reader.lastLimit)

	var body struct {
		Data []lowStockItem `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, lowStockItem{IngredientID: 3, Name: "Tortilla", Stock: 2, MinThreshold: 5}, body.Data[0])
}

func TestLowStockDefaultsAndBounds(t *testing.T) {
	t.Parallel()
	reader := &stubStockReader{}

	resp := httptest.NewRecorder()
	LowStock(reader, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 50, reader.lastLimit)
	assert.JSONEq(t, `{"data":[]}`, resp.Body.String())

	resp = httptest.NewRecorder()
	LowStock(reader, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
