package search

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDecodeHits(t *testing.T) {
	t.Parallel()

	lampID, mugID := uuid.New(), uuid.New()
	body := fmt.Sprintf(`{
		"took": 3,
		"hits": {
			"total": {"value": 2, "relation": "eq"},
			"hits": [
				{
					"_index": "products",
					"_id": %[1]q,
					"_score": 1.7,
					"_source": {
						"id": %[1]q,
						"name": "desk lamp",
						"description": "a lamp for desks",
						"slug": "desk-lamp",
						"price": "49.99",
						"discount": "5",
						"stock": 12,
						"is_active": true
					}
				},
				{
					"_index": "products",
					"_id": %[2]q,
					"_score": 0.9,
					"_source": {
						"id": %[2]q,
						"name": "mug",
						"slug": "mug",
						"price": "9.99",
						"stock": 40,
						"is_active": true
					}
				}
			]
		}
	}`, lampID, mugID)

	total, prods, err := decodeHits(strings.NewReader(body))
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, prods, 2)

	require.Equal(t, lampID, prods[0].ID)
	require.Equal(t, "desk lamp", prods[0].Name)
	require.True(t, prods[0].Price.Equal(decimal.RequireFromString("49.99")))
	require.Equal(t, 12, prods[0].Stock)

	require.Equal(t, mugID, prods[1].ID)
	require.Equal(t, "mug", prods[1].Name)
}

func TestDecodeHitsEmpty(t *testing.T) {
	t.Parallel()

	body := `{"hits": {"total": {"value": 0, "relation": "eq"}, "hits": []}}`

	total, prods, err := decodeHits(strings.NewReader(body))
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, prods)
}
