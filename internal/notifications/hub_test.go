package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bloghub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterLimits(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	var clients []*Client
	for i := 0; i < maxConnsPerUser; i++ {
		c, err := hub.Register(7, nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserFull)
	assert.Equal(t, maxConnsPerUser, hub.Connections(7))

	hub.UnregisterClient(clients[0])
	hub.UnregisterClient(clients[0])
	assert.Equal(t, maxConnsPerUser-1, hub.Connections(7))

	_, err = hub.Register(7, nil)
	assert.NoError(t, err)
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(3, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	_, open := <-c.Send
	assert.False(t, open)
	assert.Zero(t, hub.Connections(3))

	_, err = hub.Register(3, nil)
	assert.ErrorIs(t, err, ErrServerFull)
	assert.NoError(t, hub.Shutdown(context.Background()))
}

func TestHub_DeliverOnlyToTargetUser(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	a1, _ := hub.Register(1, nil)
	a2, _ := hub.Register(1, nil)
	b, _ := hub.Register(2, nil)

	hub.Deliver(1, []byte("hello"))
	assert.Equal(t, "hello", string(<-a1.Send))
	assert.Equal(t, "hello", string(<-a2.Send))
	assert.Empty(t, b.Send)
}

func TestClient_TrySendBackpressure(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(5, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer; i++ {
		c.TrySend([]byte("x"))
	}
	assert.NotPanics(t, func() { c.TrySend([]byte("overflow")) })
	assert.Len(t, c.Send, sendBuffer)

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestHub_WiringDeliversPublishedNotifications(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()
	notifier := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, notifier))

	reader, err := hub.Register(42, nil)
	require.NoError(t, err)
	bystander, err := hub.Register(43, nil)
	require.NoError(t, err)

	n := &models.Notification{Title: "Your post was liked", Message: "Someone liked it", IsImportant: true}
	n.ID = 9
	require.NoError(t, notifier.PublishNotification(ctx, []uint{42}, n))

	var raw []byte
	assert.Eventually(t, func() bool {
		select {
		case raw = <-reader.Send:
			return true
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "notification", ev.Type)
	assert.Equal(t, uint(9), ev.Payload.ID)
	assert.Equal(t, "Your post was liked", ev.Payload.Title)
	assert.True(t, ev.Payload.IsImportant)
	assert.Empty(t, bystander.Send)
}
