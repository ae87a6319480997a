package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryUpsert(t *testing.T) {
	t.Run("new participant is appended", func(t *testing.T) {
		r := NewRegistry()

		p := r.Upsert("alice", "avatar-a", "conn-1")
		assert.Equal(t, "alice", p.Username)
		assert.Equal(t, "conn-1", p.ConnectionId)
		assert.Equal(t, "avatar-a", p.Avatar)
		assert.True(t, p.Online, "expected new participant to be online")

		roster := r.Snapshot()
		assert.Len(t, roster, 1)
	})

	t.Run("rejoin replaces connection id, never duplicates", func(t *testing.T) {
		r := NewRegistry()
		r.Upsert("alice", "", "conn-1")
		r.MarkOffline("conn-1")

		p := r.Upsert("alice", "avatar-new", "conn-2")
		assert.Equal(t, "conn-2", p.ConnectionId)
		assert.True(t, p.Online, "expected rejoined participant to be online")

		roster := r.Snapshot()
		assert.Len(t, roster, 1, "expected exactly one entry per username")
		assert.Equal(t, "conn-2", roster[0].ConnectionId)
	})

	t.Run("username match is case-sensitive", func(t *testing.T) {
		r := NewRegistry()
		r.Upsert("alice", "", "conn-1")
		r.Upsert("Alice", "", "conn-2")

		assert.Len(t, r.Snapshot(), 2, "expected distinct entries for differently-cased usernames")
	})

	t.Run("roster preserves join order", func(t *testing.T) {
		r := NewRegistry()
		r.Upsert("alice", "", "conn-1")
		r.Upsert("bob", "", "conn-2")
		r.Upsert("carol", "", "conn-3")
		// rejoin must not move alice to the end
		r.Upsert("alice", "", "conn-4")

		roster := r.Snapshot()
		assert.Equal(t, []string{"alice", "bob", "carol"}, []string{
			roster[0].Username, roster[1].Username, roster[2].Username,
		})
	})
}

func TestRegistryMarkOffline(t *testing.T) {
	t.Run("flags participant offline", func(t *testing.T) {
		r := NewRegistry()
		r.Upsert("alice", "", "conn-1")

		p, ok := r.MarkOffline("conn-1")
		assert.True(t, ok)
		assert.False(t, p.Online)

		roster := r.Snapshot()
		assert.Len(t, roster, 1, "expected offline participant to remain in roster")
		assert.False(t, roster[0].Online)
	})

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		r := NewRegistry()
		r.Upsert("alice", "", "conn-1")

		_, ok := r.MarkOffline("conn-unknown")
		assert.False(t, ok)
		assert.True(t, r.Snapshot()[0].Online)
	})

	t.Run("superseded connection does not affect rejoined entry", func(t *testing.T) {
		r := NewRegistry()
		r.Upsert("alice", "", "conn-1")
		r.Upsert("alice", "", "conn-2")

		// stale disconnect for the replaced connection
		_, ok := r.MarkOffline("conn-1")
		assert.False(t, ok)
		assert.True(t, r.Snapshot()[0].Online, "expected rejoined participant to stay online")
	})
}

func TestRegistryUpdateProfile(t *testing.T) {
	t.Run("replaces username and avatar", func(t *testing.T) {
		r := NewRegistry()
		r.Upsert("alice", "old-avatar", "conn-1")

		p, ok := r.UpdateProfile("conn-1", "alice2", "new-avatar")
		assert.True(t, ok)
		assert.Equal(t, "alice2", p.Username)
		assert.Equal(t, "new-avatar", p.Avatar)

		roster := r.Snapshot()
		assert.Equal(t, "alice2", roster[0].Username)
	})

	t.Run("unknown connection signals not found", func(t *testing.T) {
		r := NewRegistry()

		_, ok := r.UpdateProfile("conn-unknown", "alice", "")
		assert.False(t, ok)
	})
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Upsert("alice", "", "conn-1")

	roster := r.Snapshot()
	roster[0].Username = "mallory"

	assert.Equal(t, "alice", r.Snapshot()[0].Username, "expected snapshot mutation not to affect registry")
}
