package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
	gcppublisher "github.com/seapigy/procuro-site-sub000/internal/publisher/pubsub"
)

func newFakeClient(t *testing.T, topics ...string) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	for _, topic := range topics {
		_, err := srv.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: "projects/test-project/topics/" + topic})
		require.NoError(t, err)
	}

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublisherPublishesAlertJSON(t *testing.T) {
	t.Parallel()

	client, srv := newFakeClient(t, "price-alerts")
	pub := gcppublisher.New(client)
	t.Cleanup(pub.Stop)

	alert := pricing.Alert{
		ItemID:          "item-1",
		Retailer:        "walmart",
		OldPrice:        decimal.RequireFromString("50"),
		NewPrice:        decimal.RequireFromString("47"),
		SavingsPerOrder: decimal.RequireFromString("3"),
		AlertDate:       time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := pub.Publish(ctx, "price-alerts", alert)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "item-1", msgs[0].Attributes["item_id"])
	require.Equal(t, "walmart", msgs[0].Attributes["retailer"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	require.Equal(t, "item-1", decoded["itemId"])
	require.Equal(t, "47", decoded["newPrice"])
}

func TestPublisherErrors(t *testing.T) {
	t.Parallel()

	_, err := gcppublisher.New(nil).Publish(context.Background(), "t", "x")
	require.ErrorContains(t, err, "not configured")

	client, _ := newFakeClient(t)
	pub := gcppublisher.New(client)
	t.Cleanup(pub.Stop)

	_, err = pub.Publish(context.Background(), " ", "x")
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(context.Background(), "t", func() {})
	require.ErrorContains(t, err, "marshal payload")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = pub.Publish(ctx, "missing-topic", "x")
	require.ErrorContains(t, err, "publish message")
}
