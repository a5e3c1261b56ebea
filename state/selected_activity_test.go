package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedActivityStoreSetAndGet(t *testing.T) {
	store := NewSelectedActivityStore()
	assert.Zero(t, store.Get().ActivityID)

	store.Set(SelectedActivity{ActivityID: 7, Name: "Climbing", SkillLevel: "Beginner", Emoji: "🧗"})
	got := store.Get()
	assert.Equal(t, uint(7), got.ActivityID)
	assert.Equal(t, "Climbing", got.Name)
}

func TestSelectedActivityStoreNoOpOnSameValue(t *testing.T) {
	store := NewSelectedActivityStore()

	calls := 0
	unsubscribe := store.Subscribe(func(SelectedActivity) { calls++ })
	defer unsubscribe()

	value := SelectedActivity{ActivityID: 7, Name: "Climbing", SkillLevel: "Beginner", Emoji: "🧗"}
	store.Set(value)
	require.Equal(t, 1, calls)

	// Re-setting the identical value must not notify anyone
	store.Set(value)
	assert.Equal(t, 1, calls)

	// Any field change does
	value.SkillLevel = "Advanced"
	store.Set(value)
	assert.Equal(t, 2, calls)
}

func TestSelectedActivityStoreUnsubscribe(t *testing.T) {
	store := NewSelectedActivityStore()

	calls := 0
	unsubscribe := store.Subscribe(func(SelectedActivity) { calls++ })

	store.Set(SelectedActivity{ActivityID: 1})
	require.Equal(t, 1, calls)

	unsubscribe()
	store.Set(SelectedActivity{ActivityID: 2})
	assert.Equal(t, 1, calls)
}

func TestActiveChatTracker(t *testing.T) {
	tracker := NewActiveChatTracker()
	assert.Zero(t, tracker.Active())

	tracker.Set(42)
	assert.Equal(t, uint(42), tracker.Active())

	// Last write wins on quick screen switches
	tracker.Set(43)
	assert.Equal(t, uint(43), tracker.Active())

	tracker.Clear()
	assert.Zero(t, tracker.Active())
}
