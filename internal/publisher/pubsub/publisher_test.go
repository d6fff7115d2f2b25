package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"jobhound/internal/crawler"
	"jobhound/internal/publisher/pubsub"
)

func TestPublisherRoundTrip(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := gcppubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "jobhound-records")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "sub-id", gcppubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	pub := pubsub.NewWithTopic(topic)
	defer pub.Close()

	rec := crawler.Record{
		Title:      "Go Engineer",
		SourceURL:  "https://example.com/jdp/1",
		PageNumber: 3,
	}
	id, err := pub.Publish(ctx, rec)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	received := make(chan *gcppubsub.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *gcppubsub.Message) {
			msg.Ack()
			received <- msg
			cancel()
		})
	}()

	msg := <-received
	var got crawler.Record
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, rec.SourceURL, msg.Attributes["source_url"])
	assert.Equal(t, "3", msg.Attributes["page_number"])
}

func TestPublisherUnconfigured(t *testing.T) {
	t.Parallel()

	var pub *pubsub.Publisher
	_, err := pub.Publish(context.Background(), crawler.Record{})
	require.Error(t, err)
	require.NoError(t, pub.Close())
}
