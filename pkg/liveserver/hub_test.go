package liveserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub, _ := runHub(t)

	client := NewClient("c1")
	require.True(t, hub.Register(client))
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, client.Send(NewMessage(TypeScan, nil)), "closed client refuses sends")
}

func TestHub_PublishReachesEveryClient(t *testing.T) {
	hub, _ := runHub(t)

	a, b := NewClient("a"), NewClient("b")
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	hub.Publish("set_slippage", map[string]int{"slippage": 5})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Messages():
			assert.Equal(t, "set_slippage", msg.Type)
			assert.NotZero(t, msg.Time)
			assert.Equal(t, map[string]int{"slippage": 5}, msg.Data)
		case <-time.After(time.Second):
			t.Fatalf("client %s got nothing", c.id)
		}
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub, _ := runHub(t)

	slow := NewClient("slow")
	require.True(t, hub.Register(slow))
	for i := 0; i < clientBuffer; i++ {
		require.True(t, slow.Send(NewMessage(TypeScan, i)))
	}

	hub.Publish(TypeScan, "overflow")
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := runHub(t)

	client := NewClient("c1")
	require.True(t, hub.Register(client))
	cancel()

	select {
	case _, ok := <-client.Messages():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("client not closed on stop")
	}

	assert.Eventually(t, func() bool { return !hub.Register(NewClient("late")) }, time.Second, 5*time.Millisecond)
	hub.Unregister(client)
}
