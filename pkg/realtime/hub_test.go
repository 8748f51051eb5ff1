package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversOnlyToTopicSubscribers(t *testing.T) {
	hub := NewHub(nil)
	var got []Event
	cancel := hub.Subscribe(TopicUser("u1"), func(evt Event) { got = append(got, evt) })
	hub.Subscribe(TopicUser("u2"), func(Event) { t.Fatal("wrong topic delivered") })

	require.NoError(t, hub.Publish(context.Background(), Event{Topic: TopicUser("u1"), Type: EventUpdated, ID: "u1"}))
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].ID)
	assert.False(t, got[0].At.IsZero())

	cancel()
	cancel()
	hub.Dispatch(Event{Topic: TopicUser("u1"), Type: EventUpdated})
	assert.Len(t, got, 1)
	assert.Equal(t, 0, hub.Subscribers(TopicUser("u1")))
}

func TestHubRecoversFromPanickingSubscriber(t *testing.T) {
	hub := NewHub(nil)
	delivered := false
	hub.Subscribe(TopicAnnouncements, func(Event) { panic("boom") })
	hub.Subscribe(TopicAnnouncements, func(Event) { delivered = true })

	assert.NotPanics(t, func() { hub.Dispatch(Event{Topic: TopicAnnouncements}) })
	assert.True(t, delivered)
}

func TestRedisBridgeIgnoresOwnEchoes(t *testing.T) {
	hub := NewHub(nil)
	bridge := NewRedisBridge(nil, "test", hub, nil)
	count := 0
	hub.Subscribe(TopicMessages, func(Event) { count++ })

	own, err := json.Marshal(envelope{Origin: bridge.origin, Event: Event{Topic: TopicMessages}})
	require.NoError(t, err)
	bridge.handle(string(own))
	assert.Equal(t, 0, count)

	peer, err := json.Marshal(envelope{Origin: "peer", Event: Event{Topic: TopicMessages}})
	require.NoError(t, err)
	bridge.handle(string(peer))
	assert.Equal(t, 1, count)

	bridge.handle("{not json")
	assert.Equal(t, 1, count)
}
