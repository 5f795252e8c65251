package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := NewService(mr.Addr(), "")
	require.NoError(t, err)

	return svc, mr
}

func testEnvelope(t *testing.T) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(protocol.EventChatDeliver, protocol.ChatMessage{
		ID:      "conn-1-42",
		Content: "hello",
	})
	require.NoError(t, err)
	return env
}

func TestNewService(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	assert.NotNil(t, svc.Client())
	err := svc.Ping(context.Background())
	assert.NoError(t, err)
}

func TestNewService_BadAddr(t *testing.T) {
	_, err := NewService("127.0.0.1:1", "")
	assert.Error(t, err)
}

func TestPublishDirect(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	target := "conn-target"

	// Subscribe manually to check if message arrives
	sub := svc.Client().Subscribe(ctx, "telehealth:conn:"+target)
	defer func() { _ = sub.Close() }()

	// Wait for subscription to be active
	time.Sleep(50 * time.Millisecond)

	err := svc.PublishDirect(ctx, target, testEnvelope(t), "instance-a")
	assert.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	assert.NoError(t, err)

	var payload PubSubPayload
	err = json.Unmarshal([]byte(msg.Payload), &payload)
	assert.NoError(t, err)

	assert.Equal(t, "instance-a", payload.Origin)
	assert.Equal(t, protocol.EventChatDeliver, payload.Envelope.Event)
}

func TestPublishLobby(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()

	sub := svc.Client().Subscribe(ctx, lobbyChannel)
	defer func() { _ = sub.Close() }()
	time.Sleep(50 * time.Millisecond)

	err := svc.PublishLobby(ctx, testEnvelope(t), "instance-a")
	assert.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	assert.NoError(t, err)

	var payload PubSubPayload
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, "instance-a", payload.Origin)
}

func TestSubscribeDirect(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan protocol.Envelope, 1)
	svc.SubscribeDirect(ctx, "conn-42", func(env protocol.Envelope) {
		received <- env
	})
	time.Sleep(50 * time.Millisecond)

	err := svc.PublishDirect(ctx, "conn-42", testEnvelope(t), "instance-b")
	require.NoError(t, err)

	select {
	case env := <-received:
		assert.Equal(t, protocol.EventChatDeliver, env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for direct envelope")
	}
}

func TestSubscribeLobby_SkipsOwnOrigin(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan protocol.Envelope, 2)
	svc.SubscribeLobby(ctx, "instance-a", func(env protocol.Envelope) {
		received <- env
	})
	time.Sleep(50 * time.Millisecond)

	// Own broadcast must be filtered out.
	require.NoError(t, svc.PublishLobby(ctx, testEnvelope(t), "instance-a"))
	// Foreign broadcast must come through.
	require.NoError(t, svc.PublishLobby(ctx, testEnvelope(t), "instance-b"))

	select {
	case env := <-received:
		assert.Equal(t, protocol.EventChatDeliver, env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lobby envelope")
	}

	select {
	case <-received:
		t.Fatal("received an envelope that should have been filtered by origin")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_StopsOnContextCancel(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan protocol.Envelope, 1)
	svc.SubscribeDirect(ctx, "conn-stop", func(env protocol.Envelope) {
		received <- env
	})
	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)

	_ = svc.PublishDirect(context.Background(), "conn-stop", testEnvelope(t), "instance-a")

	select {
	case <-received:
		t.Fatal("listener should have stopped after cancel")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestNilService_Noops(t *testing.T) {
	var svc *Service
	ctx := context.Background()

	assert.NoError(t, svc.PublishDirect(ctx, "x", protocol.Envelope{}, "i"))
	assert.NoError(t, svc.PublishLobby(ctx, protocol.Envelope{}, "i"))
	assert.NoError(t, svc.Ping(ctx))
	assert.NoError(t, svc.Close())
	svc.SubscribeDirect(ctx, "x", nil)
	svc.SubscribeLobby(ctx, "i", nil)
	assert.Nil(t, svc.Client())
}
