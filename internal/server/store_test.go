package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vibechat/relay/internal/testutil"
	"github.com/vibechat/relay/internal/types"
)

func newTestStore(t *testing.T) *MessageStore {
	return NewMessageStore(testutil.TestLogger(t))
}

func TestStoreAppend(t *testing.T) {
	t.Run("appends in order", func(t *testing.T) {
		ms := newTestStore(t)

		for i := 0; i < 3; i++ {
			ok := ms.Append(types.Message{Id: fmt.Sprintf("m%d", i)})
			assert.True(t, ok, "expected append %d to succeed", i)
		}

		history := ms.History()
		assert.Len(t, history, 3)
		assert.Equal(t, "m0", history[0].Id)
		assert.Equal(t, "m2", history[2].Id)
	})

	t.Run("duplicate id leaves history unchanged", func(t *testing.T) {
		ms := newTestStore(t)

		assert.True(t, ms.Append(types.Message{Id: "m1", Content: "first"}))
		assert.False(t, ms.Append(types.Message{Id: "m1", Content: "second"}))

		history := ms.History()
		assert.Len(t, history, 1)
		assert.Equal(t, "first", history[0].Content)
	})
}

func TestStoreAddReaction(t *testing.T) {
	t.Run("appends a reaction", func(t *testing.T) {
		ms := newTestStore(t)
		ms.Append(types.Message{Id: "m1"})

		m, ok := ms.AddReaction("m1", "bob", "👍")
		assert.True(t, ok)
		assert.Equal(t, []types.Reaction{{Username: "bob", Reaction: "👍"}}, m.Reactions)
	})

	t.Run("re-reacting replaces the prior entry for that username", func(t *testing.T) {
		ms := newTestStore(t)
		ms.Append(types.Message{Id: "m1"})

		ms.AddReaction("m1", "bob", "👍")
		m, ok := ms.AddReaction("m1", "bob", "❤️")
		assert.True(t, ok)
		assert.Len(t, m.Reactions, 1, "expected exactly one reaction entry per username")
		assert.Equal(t, "❤️", m.Reactions[0].Reaction)
	})

	t.Run("reactions from different users accumulate", func(t *testing.T) {
		ms := newTestStore(t)
		ms.Append(types.Message{Id: "m1"})

		ms.AddReaction("m1", "alice", "😀")
		ms.AddReaction("m1", "bob", "👍")
		ms.AddReaction("m1", "alice", "😢")

		m, _ := ms.AddReaction("m1", "carol", "🎉")
		assert.Len(t, m.Reactions, 3)
		// alice's replacement moved her entry after bob's
		assert.Equal(t, "bob", m.Reactions[0].Username)
		assert.Equal(t, "alice", m.Reactions[1].Username)
		assert.Equal(t, "carol", m.Reactions[2].Username)
	})

	t.Run("unknown message signals not found", func(t *testing.T) {
		ms := newTestStore(t)

		_, ok := ms.AddReaction("missing", "bob", "👍")
		assert.False(t, ok)
	})
}

func TestStoreDelete(t *testing.T) {
	ms := newTestStore(t)
	ms.Append(types.Message{Id: "m1"})
	ms.Append(types.Message{Id: "m2"})

	assert.True(t, ms.Delete("m1"))
	assert.False(t, ms.Delete("m1"), "expected second delete to report nothing removed")

	history := ms.History()
	assert.Len(t, history, 1)
	assert.Equal(t, "m2", history[0].Id)
}

func TestStoreHistoryIsACopy(t *testing.T) {
	ms := newTestStore(t)
	ms.Append(types.Message{Id: "m1", Content: "original"})

	history := ms.History()
	history[0].Content = "mutated"

	assert.Equal(t, "original", ms.History()[0].Content)
}
