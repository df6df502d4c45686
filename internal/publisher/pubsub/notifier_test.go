package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/calfire-history/internal/dataset"
	"github.com/JakeFAU/calfire-history/internal/incident"
)

func newTestTopic(t *testing.T) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "calfire-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "snapshots")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	return topic, srv
}

func TestNotifierPublishesSummary(t *testing.T) {
	topic, srv := newTestTopic(t)
	notifier, err := New(topic, nil)
	require.NoError(t, err)

	runID := uuid.New()
	capturedAt := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	err = notifier.Publish(context.Background(), dataset.Publication{
		RunID:    runID,
		Decision: dataset.PatchActive,
		Path:     "data/2024-08-20_calfire_history.csv",
		Snapshot: incident.Snapshot{
			CapturedAt: capturedAt,
			Records:    []incident.Record{{Name: "Park Fire"}, {Name: "Borel Fire"}},
		},
	})
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "patch_active", msgs[0].Attributes["decision"])

	var got Message
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, Message{
		RunID:      runID.String(),
		CapturedAt: capturedAt,
		Records:    2,
		Decision:   "patch_active",
		Path:       "data/2024-08-20_calfire_history.csv",
	}, got)
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestCarrierKeys(t *testing.T) {
	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
