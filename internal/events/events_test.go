package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	eventType string
	key       string
	payload   []byte
	err       error
}

func (r *recordingPublisher) Publish(_ context.Context, eventType string, payload []byte, key string) error {
	r.eventType, r.payload, r.key = eventType, payload, key
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestPublishJSON(t *testing.T) {
	rec := &recordingPublisher{}
	err := PublishJSON(context.Background(), rec, TypeMessagesSeen, "conv-1", MessagesSeen{
		ConversationID: "conv-1",
		ViewerID:       "bob",
		Updated:        3,
	})
	require.NoError(t, err)
	require.Equal(t, TypeMessagesSeen, rec.eventType)
	require.Equal(t, "conv-1", rec.key)

	var got MessagesSeen
	require.NoError(t, json.Unmarshal(rec.payload, &got))
	require.EqualValues(t, 3, got.Updated)
	require.Equal(t, "bob", got.ViewerID)
}

func TestPublishJSONWrapsError(t *testing.T) {
	boom := errors.New("broker down")
	err := PublishJSON(context.Background(), &recordingPublisher{err: boom}, TypeMessageCreated, "k", MessageCreated{})
	require.ErrorIs(t, err, boom)
}

func TestTopicMap(t *testing.T) {
	m := TopicMap("chatrocket.")
	require.Equal(t, "chatrocket.message.created", m[TypeMessageCreated])
	require.Equal(t, "chatrocket.messages.seen", m[TypeMessagesSeen])
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "")
	require.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "x.")
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
