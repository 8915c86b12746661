package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/locomote-server/internal/core"
)

func TestBusPublishNotifiesInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var order []string
	b.Subscribe(core.RepoUpdateListenerFunc(func(core.RepoUpdateEvent) { order = append(order, "first") }))
	b.Subscribe(core.RepoUpdateListenerFunc(func(core.RepoUpdateEvent) { order = append(order, "second") }))

	b.Publish(core.RepoUpdateEvent{Account: "a", Repo: "r", Branch: "master", Key: "a/r/master"})

	require.Equal(t, []string{"first", "second"}, order)
}

func TestBusPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := NewBus()
	require.NotPanics(t, func() {
		b.Publish(core.RepoUpdateEvent{Key: "a/r/master"})
	})
}

func TestBusSubscribeAfterFirstPublishStillReceivesLater(t *testing.T) {
	b := NewBus()
	var got []core.RepoUpdateEvent
	b.Publish(core.RepoUpdateEvent{Key: "early"})

	b.Subscribe(core.RepoUpdateListenerFunc(func(evt core.RepoUpdateEvent) { got = append(got, evt) }))
	b.Publish(core.RepoUpdateEvent{Key: "late"})

	require.Len(t, got, 1)
	require.Equal(t, "late", got[0].Key)
}
