package merge_test

import (
	"testing"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) domain.FlexTime {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return domain.At(t)
}

func ratingIDs(rs []domain.Rating) []string {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestMergeNilRemoteReturnsLocal(t *testing.T) {
	local := domain.NewUserSnapshot()
	local.BookRatings = append(local.BookRatings, domain.NewRating("a", "b1", 5, true))

	got := merge.Snapshots(local, nil)

	require.Len(t, got.BookRatings, 1)
	assert.NotNil(t, got.UserBooks)
	assert.NotNil(t, got.BuddyReads)

	// Result is a copy, not an alias.
	got.BookRatings[0].Score = 1
	assert.Equal(t, 5, local.BookRatings[0].Score)
}

func TestMergeRatingsUnionLocalWins(t *testing.T) {
	local := domain.NewUserSnapshot()
	local.BookRatings = []domain.Rating{domain.NewRating("a", "b1", 5, true)}

	remote := domain.NewUserSnapshot()
	remote.BookRatings = []domain.Rating{
		domain.NewRating("a", "b1", 2, false),
		domain.NewRating("b", "b2", 3, false),
	}

	got := merge.Snapshots(local, remote)

	assert.ElementsMatch(t, []string{"a", "b"}, ratingIDs(got.BookRatings))
	for _, r := range got.BookRatings {
		if r.ID == "a" {
			assert.Equal(t, 5, r.Score, "local value must win on overlap")
			assert.True(t, r.Liked)
		}
	}
}

func TestMergeRatingsDisjointKeepsBoth(t *testing.T) {
	local := domain.NewUserSnapshot()
	local.AuthorRatings = []domain.Rating{domain.NewRating("x", "auth-1", 4, true)}

	remote := domain.NewUserSnapshot()
	remote.AuthorRatings = []domain.Rating{domain.NewRating("y", "auth-2", 1, false)}

	got := merge.Snapshots(local, remote)
	assert.ElementsMatch(t, []string{"x", "y"}, ratingIDs(got.AuthorRatings))
}

func TestMergeUserBooksMostRecentWins(t *testing.T) {
	local := domain.NewUserSnapshot()
	local.UserBooks = []domain.LibraryEntry{{
		ID: "b1", Status: domain.StatusWantToRead, DateAdded: at("2024-01-01T00:00:00Z"),
	}}

	remote := domain.NewUserSnapshot()
	remote.UserBooks = []domain.LibraryEntry{{
		ID: "b1", Status: domain.StatusRead, DateAdded: at("2024-06-01T00:00:00Z"),
	}}

	got := merge.Snapshots(local, remote)
	require.Len(t, got.UserBooks, 1)
	assert.Equal(t, domain.StatusRead, got.UserBooks[0].Status, "later DateAdded wins regardless of side")

	// Swap sides: the same entry must still win.
	got = merge.Snapshots(remote, local)
	require.Len(t, got.UserBooks, 1)
	assert.Equal(t, domain.StatusRead, got.UserBooks[0].Status)
}

func TestMergeUserBooksTieKeepsRemote(t *testing.T) {
	when := at("2024-03-01T00:00:00Z")
	local := domain.NewUserSnapshot()
	local.UserBooks = []domain.LibraryEntry{{ID: "b1", Status: domain.StatusCurrentlyReading, DateAdded: when}}

	remote := domain.NewUserSnapshot()
	remote.UserBooks = []domain.LibraryEntry{{ID: "b1", Status: domain.StatusRead, DateAdded: when}}

	got := merge.Snapshots(local, remote)
	require.Len(t, got.UserBooks, 1)
	assert.Equal(t, domain.StatusRead, got.UserBooks[0].Status)
}

func TestMergeUserBooksMalformedDateLoses(t *testing.T) {
	local := domain.NewUserSnapshot()
	local.UserBooks = []domain.LibraryEntry{{ID: "b1", Status: domain.StatusWantToRead}} // zero DateAdded

	remote := domain.NewUserSnapshot()
	remote.UserBooks = []domain.LibraryEntry{{
		ID: "b1", Status: domain.StatusRead, DateAdded: at("2020-01-01T00:00:00Z"),
	}}

	got := merge.Snapshots(local, remote)
	require.Len(t, got.UserBooks, 1)
	assert.Equal(t, domain.StatusRead, got.UserBooks[0].Status, "well-formed side wins over zero time")
}

func TestMergeOnboardingSticky(t *testing.T) {
	done := domain.NewUserSnapshot()
	done.OnboardingCompleted = true
	fresh := domain.NewUserSnapshot()

	assert.True(t, merge.Snapshots(done, fresh).OnboardingCompleted)
	assert.True(t, merge.Snapshots(fresh, done).OnboardingCompleted)
	assert.False(t, merge.Snapshots(fresh, fresh).OnboardingCompleted)
}

func TestMergePreferencesRemoteWinsIfPresent(t *testing.T) {
	local := domain.NewUserSnapshot()
	local.Preferences = &domain.Preferences{Genres: []string{"local"}}

	remote := domain.NewUserSnapshot()
	remote.Preferences = &domain.Preferences{Genres: []string{"remote"}}

	got := merge.Snapshots(local, remote)
	assert.Equal(t, []string{"remote"}, got.Preferences.Genres)

	remote.Preferences = nil
	got = merge.Snapshots(local, remote)
	assert.Equal(t, []string{"local"}, got.Preferences.Genres)
}

func TestMergeLeaveClubNotResurrected(t *testing.T) {
	// The user left on this device: IsActive false with a fresh JoinedAt.
	local := domain.NewUserSnapshot()
	local.BookClubMemberships = []domain.Membership{{
		ClubID: "club-1", JoinedAt: at("2024-06-01T00:00:00Z"), IsActive: false,
	}}

	// A stale remote copy still shows the membership active.
	remote := domain.NewUserSnapshot()
	remote.BookClubMemberships = []domain.Membership{{
		ClubID: "club-1", JoinedAt: at("2024-01-01T00:00:00Z"), IsActive: true, Role: "member",
	}}

	got := merge.Snapshots(local, remote)
	require.Len(t, got.BookClubMemberships, 1)
	assert.False(t, got.BookClubMemberships[0].IsActive, "leave is the most recent event and must survive")

	// Repeated merges keep the entry present and inactive.
	got = merge.Snapshots(got, remote)
	require.Len(t, got.BookClubMemberships, 1)
	assert.False(t, got.BookClubMemberships[0].IsActive)
}

func TestMergeBuddyReadMostRecentWins(t *testing.T) {
	local := domain.NewUserSnapshot()
	local.BuddyReads = []domain.Participation{{
		BuddyReadID: "br-1", JoinedAt: at("2024-02-01T00:00:00Z"), Progress: 0.5, IsActive: true,
	}}

	remote := domain.NewUserSnapshot()
	remote.BuddyReads = []domain.Participation{
		{BuddyReadID: "br-1", JoinedAt: at("2024-01-01T00:00:00Z"), Progress: 0.1, IsActive: true},
		{BuddyReadID: "br-2", JoinedAt: at("2024-03-01T00:00:00Z"), IsActive: true},
	}

	got := merge.Snapshots(local, remote)
	require.Len(t, got.BuddyReads, 2)
	for _, p := range got.BuddyReads {
		if p.BuddyReadID == "br-1" {
			assert.InDelta(t, 0.5, p.Progress, 1e-9)
		}
	}
}

func TestMergeEmptyBothSidesYieldsEmptyNotNil(t *testing.T) {
	got := merge.Snapshots(domain.NewUserSnapshot(), domain.NewUserSnapshot())
	require.NotNil(t, got.BookRatings)
	require.NotNil(t, got.UserBooks)
	require.NotNil(t, got.ReadingGoals)
	assert.Empty(t, got.BookRatings)
	assert.Empty(t, got.UserBooks)
}

func TestMergeGoalsLocalWins(t *testing.T) {
	local := domain.NewUserSnapshot()
	local.ReadingGoals = []domain.Goal{{ID: "2026", Target: 30, Current: 12}}

	remote := domain.NewUserSnapshot()
	remote.ReadingGoals = []domain.Goal{
		{ID: "2026", Target: 30, Current: 8},
		{ID: "2025", Target: 24, Current: 24},
	}

	got := merge.Snapshots(local, remote)
	require.Len(t, got.ReadingGoals, 2)
	for _, g := range got.ReadingGoals {
		if g.ID == "2026" {
			assert.Equal(t, 12, g.Current)
		}
	}
}
