package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

func paperItem() pricing.Item {
	return pricing.Item{
		ID:                  "item-1",
		Name:                "copy paper",
		ReferencePrice:      decimal.RequireFromString("50.00"),
		QuantityPerOrder:    2,
		ReorderIntervalDays: 15,
	}
}

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.SeedItem(paperItem()))

	item, err := store.FindItem(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, "copy paper", item.Name)

	_, err = store.FindItem(ctx, "missing")
	require.ErrorIs(t, err, pricing.ErrItemNotFound)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.CreatePriceRecord(ctx, pricing.PriceRecord{
		ItemID: "item-1", Retailer: "walmart", Price: decimal.RequireFromString("47"), RecordedAt: now,
	}))
	require.NoError(t, store.CreateAlert(ctx, pricing.Alert{
		ItemID: "item-1", Retailer: "walmart", NewPrice: decimal.RequireFromString("47"), AlertDate: now,
	}))

	records := store.PriceRecords("item-1")
	require.Len(t, records, 1)
	records[0].Retailer = "changed"
	require.Equal(t, "walmart", store.PriceRecords("item-1")[0].Retailer)
	require.Len(t, store.Alerts("item-1"), 1)
	require.Empty(t, store.Alerts("other"))
}

func TestStoreRejectsInvalidWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.SeedItem(paperItem()))

	tests := []struct {
		name string
		run  func() error
		is   error
	}{
		{name: "seed without id", run: func() error { return store.SeedItem(pricing.Item{}) }},
		{name: "seed invalid item", run: func() error {
			item := paperItem()
			item.QuantityPerOrder = 0
			return store.SeedItem(item)
		}},
		{name: "record without retailer", run: func() error {
			return store.CreatePriceRecord(ctx, pricing.PriceRecord{ItemID: "item-1"})
		}},
		{name: "record unknown item", run: func() error {
			return store.CreatePriceRecord(ctx, pricing.PriceRecord{ItemID: "nope", Retailer: "target"})
		}, is: pricing.ErrItemNotFound},
		{name: "alert unknown item", run: func() error {
			return store.CreateAlert(ctx, pricing.Alert{ItemID: "nope", Retailer: "target"})
		}, is: pricing.ErrItemNotFound},
		{name: "alert without item", run: func() error {
			return store.CreateAlert(ctx, pricing.Alert{Retailer: "target"})
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.run()
			require.Error(t, err)
			if tc.is != nil {
				require.ErrorIs(t, err, tc.is)
			}
		})
	}
}
