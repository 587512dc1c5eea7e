package cache_test

import (
	"testing"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/cache"
	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryValidWithinTTLAndVersion(t *testing.T) {
	m := cache.NewManager(nil)
	entry := cache.NewEntry(m, "recs:u1", []string{"b1", "b2"})
	assert.True(t, entry.Valid(m, time.Hour))
}

func TestInvalidateAllVoidsEntryBeforeTTL(t *testing.T) {
	m := cache.NewManager(nil)
	entry := cache.NewEntry(m, "recs:u1", "data")
	require.True(t, entry.Valid(m, time.Hour))

	m.Invalidate(cache.ScopeAll)

	assert.False(t, entry.Valid(m, time.Hour), "invalidation voids entries inside their TTL")
}

func TestEntryExpiresByTTLWithoutInvalidation(t *testing.T) {
	m := cache.NewManager(nil)
	entry := cache.NewEntry(m, "recs:u1", "data")
	entry.FetchedAt = time.Now().Add(-2 * time.Hour)

	assert.False(t, entry.Valid(m, time.Hour))
	assert.Equal(t, uint64(0), m.Version(), "no invalidation happened")
}

func TestInvalidateMatchesTypedScopes(t *testing.T) {
	m := cache.NewManager(nil)

	var userHits, bookHits int
	m.Register("recommendations", cache.ScopeUser, func() { userHits++ })
	m.Register("catalog-search", cache.ScopeBook, func() { bookHits++ })

	m.Invalidate(cache.ScopeUser)
	assert.Equal(t, 1, userHits)
	assert.Equal(t, 0, bookHits)

	m.Invalidate(cache.ScopeAll)
	assert.Equal(t, 2, userHits)
	assert.Equal(t, 1, bookHits)
}

func TestUnregisterStopsCallbacks(t *testing.T) {
	m := cache.NewManager(nil)

	hits := 0
	remove := m.Register("recommendations", cache.ScopeUser, func() { hits++ })
	m.Invalidate(cache.ScopeUser)
	remove()
	m.Invalidate(cache.ScopeUser)

	assert.Equal(t, 1, hits)
}

func TestOnRemoteSnapshotBumpsVersionAndHitsUserScope(t *testing.T) {
	m := cache.NewManager(nil)

	hits := 0
	m.Register("recommendations", cache.ScopeUser, func() { hits++ })

	entry := cache.NewEntry(m, "recs:u1", "data")
	before := m.Version()

	m.OnRemoteSnapshot("u1", domain.NewUserSnapshot())

	assert.Greater(t, m.Version(), before)
	assert.Equal(t, 1, hits)
	assert.False(t, entry.Valid(m, time.Hour))
}

func TestScopeValid(t *testing.T) {
	assert.True(t, cache.ScopeUser.Valid())
	assert.True(t, cache.ScopeAll.Valid())
	assert.False(t, cache.Scope("session").Valid())
}
