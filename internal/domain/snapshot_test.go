package domain_test

import (
	"encoding/json/v2"
	"testing"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRatingDerivesWeight(t *testing.T) {
	r := domain.NewRating("rat-1", "book-42", 4, true)
	assert.Equal(t, 8, r.Weight)
	assert.Equal(t, 4, r.Score)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestNewUserSnapshotHasEmptyCollections(t *testing.T) {
	s := domain.NewUserSnapshot()

	require.NotNil(t, s.BookRatings)
	require.NotNil(t, s.UserBooks)
	require.NotNil(t, s.BookClubMemberships)
	assert.Empty(t, s.BookRatings)
	assert.Nil(t, s.Preferences)
}

func TestSnapshotMarshalsEmptyListsNotNull(t *testing.T) {
	data, err := json.Marshal(domain.NewUserSnapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"book_ratings":[]`)
	assert.Contains(t, string(data), `"user_books":[]`)
}

func TestCloneIsDeep(t *testing.T) {
	s := domain.NewUserSnapshot()
	s.Preferences = &domain.Preferences{Genres: []string{"sci-fi"}}
	s.UserBooks = append(s.UserBooks, domain.LibraryEntry{
		ID:        "b1",
		Status:    domain.StatusRead,
		DateAdded: domain.Now(),
	})

	clone := s.Clone()
	clone.Preferences.Genres[0] = "horror"
	clone.UserBooks[0].Status = domain.StatusWantToRead

	assert.Equal(t, "sci-fi", s.Preferences.Genres[0])
	assert.Equal(t, domain.StatusRead, s.UserBooks[0].Status)
}

func TestFlexTimeFormats(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2024-06-01T10:00:00Z"`, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
		{"epoch ms number", `1717236000000`, time.UnixMilli(1717236000000)},
		{"epoch ms string", `"1717236000000"`, time.UnixMilli(1717236000000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft domain.FlexTime
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ft))
			assert.True(t, ft.Equal(tt.want), "got %v want %v", ft.Time, tt.want)
		})
	}
}

func TestFlexTimeMalformedBecomesZero(t *testing.T) {
	var ft domain.FlexTime
	require.NoError(t, json.Unmarshal([]byte(`"not-a-date"`), &ft))
	assert.True(t, ft.IsZero())

	// Zero compares as oldest: any real time wins.
	assert.True(t, domain.Now().After(ft))
	assert.False(t, ft.After(domain.Now()))
}

func TestBookStatusValid(t *testing.T) {
	assert.True(t, domain.StatusCurrentlyReading.Valid())
	assert.False(t, domain.BookStatus("dnf").Valid())
}
