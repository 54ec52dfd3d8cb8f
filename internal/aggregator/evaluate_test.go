package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/seapigy/procuro-site-sub000/internal/alert"
	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

type fakeStore struct {
	mu          sync.Mutex
	items       map[string]pricing.Item
	records     []pricing.PriceRecord
	alerts      []pricing.Alert
	failRecords map[string]bool
	failAlerts  bool
}

func (s *fakeStore) FindItem(_ context.Context, id string) (pricing.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return pricing.Item{}, pricing.ErrItemNotFound
	}
	return item, nil
}

func (s *fakeStore) CreatePriceRecord(_ context.Context, record pricing.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecords[record.Retailer] {
		return errors.New("insert failed")
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) CreateAlert(_ context.Context, a pricing.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAlerts {
		return errors.New("insert failed")
	}
	s.alerts = append(s.alerts, a)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []any
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return "msg-1", nil
}

type frozenClock struct{ t time.Time }

func (c frozenClock) Now() time.Time { return c.t }

func newEvalFixture(t *testing.T, store *fakeStore, deps Deps) *Aggregator {
	t.Helper()
	if store.items == nil {
		store.items = map[string]pricing.Item{
			"item-1": {
				ID:                  "item-1",
				Name:                "HP Printer Paper",
				ReferencePrice:      decimal.RequireFromString("50.00"),
				QuantityPerOrder:    2,
				ReorderIntervalDays: 15,
			},
		}
	}
	deps.Store = store
	agg, err := New(adapters(
		&fakeAdapter{name: "walmart", price: "47.00"},
		&fakeAdapter{name: "target", price: "48.50"},
		&fakeAdapter{name: "amazon"},
	), Config{EvaluationEnabled: true, AlertTopic: "price-alerts"}, deps)
	require.NoError(t, err)
	return agg
}

func TestEvaluateItemPersistsAndAlerts(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	pub := &fakePublisher{}
	clock := frozenClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	agg := newEvalFixture(t, store, Deps{Publisher: pub, Clock: clock})

	summary, err := agg.EvaluateItem(context.Background(), "item-1", Options{})
	require.NoError(t, err)

	require.Equal(t, "item-1", summary.ItemID)
	require.Len(t, summary.Result.Quotes, 3)
	require.Equal(t, 2, summary.PricesPersisted)
	require.Equal(t, 1, summary.AlertsCreated)
	require.Zero(t, summary.Failures)

	require.Len(t, store.records, 2)
	require.Equal(t, "walmart", store.records[0].Retailer)
	require.Equal(t, clock.t, store.records[0].RecordedAt)
	require.Equal(t, "target", store.records[1].Retailer)

	require.Len(t, store.alerts, 1)
	created := store.alerts[0]
	require.Equal(t, "walmart", created.Retailer)
	require.Equal(t, "3.00", created.SavingsPerOrder.StringFixed(2))
	require.Equal(t, "12.00", created.EstimatedMonthlySavings.StringFixed(2))
	require.Equal(t, "https://walmart.example/p/1", created.URL)

	require.Equal(t, []string{"price-alerts"}, pub.topics)
	require.Equal(t, created, pub.payloads[0])
}

func TestEvaluateItemDedupSuppressesRepeat(t *testing.T) {
	t.Parallel()

	dedup, err := alert.NewMemoryDeduper(time.Hour, nil)
	require.NoError(t, err)
	store := &fakeStore{}
	agg := newEvalFixture(t, store, Deps{Dedup: dedup})

	first, err := agg.EvaluateItem(context.Background(), "item-1", Options{})
	require.NoError(t, err)
	require.Equal(t, 1, first.AlertsCreated)

	second, err := agg.EvaluateItem(context.Background(), "item-1", Options{})
	require.NoError(t, err)
	require.Zero(t, second.AlertsCreated)
	require.Equal(t, 1, second.AlertsSuppressed)
	require.Equal(t, 2, second.PricesPersisted)
	require.Len(t, store.alerts, 1)
}

func TestEvaluateItemFailedAlertWriteReleasesDedupClaim(t *testing.T) {
	t.Parallel()

	dedup, err := alert.NewMemoryDeduper(time.Hour, nil)
	require.NoError(t, err)
	store := &fakeStore{failAlerts: true}
	agg := newEvalFixture(t, store, Deps{Dedup: dedup})

	first, err := agg.EvaluateItem(context.Background(), "item-1", Options{})
	require.NoError(t, err)
	require.Zero(t, first.AlertsCreated)
	require.Equal(t, 1, first.Failures)
	require.Zero(t, dedup.Len())

	store.mu.Lock()
	store.failAlerts = false
	store.mu.Unlock()

	second, err := agg.EvaluateItem(context.Background(), "item-1", Options{})
	require.NoError(t, err)
	require.Equal(t, 1, second.AlertsCreated)
	require.Zero(t, second.AlertsSuppressed)
	require.Len(t, store.alerts, 1)
}

func TestEvaluateItemWithoutDedupAlertsEveryRun(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	agg := newEvalFixture(t, store, Deps{})

	for range 2 {
		summary, err := agg.EvaluateItem(context.Background(), "item-1", Options{})
		require.NoError(t, err)
		require.Equal(t, 1, summary.AlertsCreated)
	}
	require.Len(t, store.alerts, 2)
}

func TestEvaluateItemContinuesPastFailures(t *testing.T) {
	t.Parallel()

	store := &fakeStore{failRecords: map[string]bool{"walmart": true}}
	pub := &fakePublisher{err: errors.New("topic missing")}
	agg := newEvalFixture(t, store, Deps{Publisher: pub})

	summary, err := agg.EvaluateItem(context.Background(), "item-1", Options{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failures)
	require.Equal(t, 1, summary.PricesPersisted)
	require.Equal(t, 1, summary.AlertsCreated, "alert still raised when its price record failed")
	require.Equal(t, "target", store.records[0].Retailer)

	store = &fakeStore{failAlerts: true}
	agg = newEvalFixture(t, store, Deps{})
	summary, err = agg.EvaluateItem(context.Background(), "item-1", Options{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failures)
	require.Zero(t, summary.AlertsCreated)
	require.Equal(t, 2, summary.PricesPersisted)
}

func TestEvaluateItemErrors(t *testing.T) {
	t.Parallel()

	disabled, err := New(adapters(&fakeAdapter{name: "walmart"}), Config{}, Deps{Store: &fakeStore{}})
	require.NoError(t, err)
	_, err = disabled.EvaluateItem(context.Background(), "item-1", Options{})
	require.ErrorIs(t, err, pricing.ErrEvaluationDisabled)

	noStore, err := New(adapters(&fakeAdapter{name: "walmart"}), Config{EvaluationEnabled: true}, Deps{})
	require.NoError(t, err)
	_, err = noStore.EvaluateItem(context.Background(), "item-1", Options{})
	require.Error(t, err)

	agg := newEvalFixture(t, &fakeStore{}, Deps{})
	_, err = agg.EvaluateItem(context.Background(), "missing", Options{})
	require.ErrorIs(t, err, pricing.ErrItemNotFound)

	invalid := &fakeStore{items: map[string]pricing.Item{
		"bad": {ID: "bad", Name: "x", ReferencePrice: decimal.Zero, QuantityPerOrder: 1, ReorderIntervalDays: 1},
	}}
	agg = newEvalFixture(t, invalid, Deps{})
	_, err = agg.EvaluateItem(context.Background(), "bad", Options{})
	require.ErrorContains(t, err, "reference price")
}
