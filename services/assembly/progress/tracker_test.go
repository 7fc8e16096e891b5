package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitWithoutSubscriberDoesNotBlock(t *testing.T) {
	tracker := NewTracker(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			tracker.Emit(Event{SessionID: "s1", BlockID: "b1", Percent: i % 100, Phase: PhaseProcessing})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked with no subscriber connected")
	}
}

func TestSubscribeReceivesEventsInOrder(t *testing.T) {
	tracker := NewTracker(nil)
	ch, cancel := tracker.Subscribe("s1", "b1")
	defer cancel()

	tracker.Emit(Event{SessionID: "s1", BlockID: "b1", Percent: 0, Phase: PhaseInitializing})
	tracker.Emit(Event{SessionID: "s1", BlockID: "b1", Percent: 50, Phase: PhaseProcessing, StationName: "Grammar Pass"})
	tracker.Emit(Event{SessionID: "s1", BlockID: "b1", Percent: 100, Phase: PhaseCompleted})

	first := <-ch
	second := <-ch
	third := <-ch
	assert.Equal(t, PhaseInitializing, first.Phase)
	assert.Equal(t, 50, second.Percent)
	assert.Equal(t, "Grammar Pass", second.StationName)
	assert.Equal(t, 100, third.Percent)
	assert.Equal(t, PhaseCompleted, third.Phase)
}

func TestEmitIsScopedToStream(t *testing.T) {
	tracker := NewTracker(nil)
	ch, cancel := tracker.Subscribe("s1", "b1")
	defer cancel()

	tracker.Emit(Event{SessionID: "s1", BlockID: "other", Percent: 10, Phase: PhaseProcessing})
	tracker.Emit(Event{SessionID: "s2", BlockID: "b1", Percent: 20, Phase: PhaseProcessing})

	select {
	case ev := <-ch:
		t.Fatalf("received event for foreign stream: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFullSubscriberDropsNotBlocks(t *testing.T) {
	tracker := NewTracker(nil)
	ch, cancel := tracker.Subscribe("s1", "b1")
	defer cancel()

	// Overfill the buffer without draining.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			tracker.Emit(Event{SessionID: "s1", BlockID: "b1", Percent: i, Phase: PhaseProcessing})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber buffer")
	}

	// The buffered prefix is intact and ordered; the rest was dropped.
	require.Equal(t, subscriberBuffer, len(ch))
	prev := -1
	for i := 0; i < subscriberBuffer; i++ {
		ev := <-ch
		assert.Greater(t, ev.Percent, prev)
		prev = ev.Percent
	}
}

func TestCancelUnregistersAndCloses(t *testing.T) {
	tracker := NewTracker(nil)
	ch, cancel := tracker.Subscribe("s1", "b1")
	require.Equal(t, 1, tracker.SubscriberCount("s1", "b1"))

	cancel()
	cancel() // safe to call twice

	assert.Equal(t, 0, tracker.SubscriberCount("s1", "b1"))
	_, open := <-ch
	assert.False(t, open)
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	tracker := NewTracker(nil)
	ch1, cancel1 := tracker.Subscribe("s1", "b1")
	ch2, cancel2 := tracker.Subscribe("s1", "b1")
	defer cancel1()
	defer cancel2()

	tracker.Emit(Event{SessionID: "s1", BlockID: "b1", Percent: 33, Phase: PhaseRouting})

	assert.Equal(t, 33, (<-ch1).Percent)
	assert.Equal(t, 33, (<-ch2).Percent)
}
