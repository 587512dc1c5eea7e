// Package domain defines the entities synced between the local store and the
// per-user remote document.
package domain

// BookStatus is the shelf a library entry lives on.
type BookStatus string

const (
	// StatusWantToRead marks a book the user intends to read.
	StatusWantToRead BookStatus = "want-to-read"
	// StatusCurrentlyReading marks a book in progress.
	StatusCurrentlyReading BookStatus = "currently-reading"
	// StatusRead marks a finished book.
	StatusRead BookStatus = "read"
)

// Valid reports whether s is a known shelf status.
func (s BookStatus) Valid() bool {
	switch s {
	case StatusWantToRead, StatusCurrentlyReading, StatusRead:
		return true
	}
	return false
}

// Preferences holds the user's reading profile collected during onboarding.
// A nil Preferences on a snapshot means onboarding has not completed anywhere.
type Preferences struct {
	Genres       []string `json:"genres"`
	Topics       []string `json:"topics"`
	Languages    []string `json:"languages"`
	Formats      []string `json:"formats"`
	ReadingPace  string   `json:"reading_pace,omitempty"`
	BooksPerYear int      `json:"books_per_year,omitempty"`
}

// Rating is a 1-5 star rating of a book or an author.
type Rating struct {
	ID        string   `json:"id"`
	SubjectID string   `json:"subject_id"`
	Score     int      `json:"score" validate:"min=1,max=5"`
	Liked     bool     `json:"liked"`
	Weight    int      `json:"weight"`
	CreatedAt FlexTime `json:"created_at"`
	UpdatedAt FlexTime `json:"updated_at"`
}

// WeightForScore derives the recommendation weight from a score.
// Weight is never mutated independently of the score.
func WeightForScore(score int) int {
	return score * 2
}

// NewRating creates a rating with the weight derived from the score.
func NewRating(id, subjectID string, score int, liked bool) Rating {
	now := Now()
	return Rating{
		ID:        id,
		SubjectID: subjectID,
		Score:     score,
		Liked:     liked,
		Weight:    WeightForScore(score),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LibraryEntry is a book on one of the user's shelves.
// ID is the catalog identifier of the book.
type LibraryEntry struct {
	ID        string     `json:"id"`
	Status    BookStatus `json:"status"`
	DateAdded FlexTime   `json:"date_added"`
	Rating    int        `json:"rating,omitempty"`
	Progress  float64    `json:"progress,omitempty"`
}

// Goal is a reading goal, conventionally one per year (ID "2026" etc.).
type Goal struct {
	ID      string `json:"id"`
	Target  int    `json:"target"`
	Current int    `json:"current"`
}

// Membership is the user's participation in a book club.
// IsActive false is a logical delete: the entry stays so an older remote
// copy can never resurrect the membership as active.
type Membership struct {
	ClubID   string   `json:"club_id"`
	JoinedAt FlexTime `json:"joined_at"`
	Role     string   `json:"role,omitempty"`
	IsActive bool     `json:"is_active"`
}

// Participation is the user's participation in a buddy read.
// Logical delete works the same way as Membership.
type Participation struct {
	BuddyReadID string   `json:"buddy_read_id"`
	JoinedAt    FlexTime `json:"joined_at"`
	Progress    float64  `json:"progress,omitempty"`
	Role        string   `json:"role,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// UserSnapshot is the complete per-user state unit synced between the local
// store and the remote document. It is JSON-serializable as a whole.
type UserSnapshot struct {
	OnboardingCompleted bool            `json:"onboarding_completed"`
	Preferences         *Preferences    `json:"preferences,omitempty"`
	BookRatings         []Rating        `json:"book_ratings"`
	AuthorRatings       []Rating        `json:"author_ratings"`
	UserBooks           []LibraryEntry  `json:"user_books"`
	ReadingGoals        []Goal          `json:"reading_goals"`
	BookClubMemberships []Membership    `json:"book_club_memberships"`
	BuddyReads          []Participation `json:"buddy_reads"`
	UpdatedAt           FlexTime        `json:"updated_at"`
}

// NewUserSnapshot returns an empty snapshot with non-nil collections.
func NewUserSnapshot() *UserSnapshot {
	s := &UserSnapshot{UpdatedAt: Now()}
	s.Normalize()
	return s
}

// Normalize replaces nil collections with empty slices so that merges and
// JSON round-trips never produce null lists.
func (s *UserSnapshot) Normalize() {
	if s.BookRatings == nil {
		s.BookRatings = []Rating{}
	}
	if s.AuthorRatings == nil {
		s.AuthorRatings = []Rating{}
	}
	if s.UserBooks == nil {
		s.UserBooks = []LibraryEntry{}
	}
	if s.ReadingGoals == nil {
		s.ReadingGoals = []Goal{}
	}
	if s.BookClubMemberships == nil {
		s.BookClubMemberships = []Membership{}
	}
	if s.BuddyReads == nil {
		s.BuddyReads = []Participation{}
	}
}

// Clone returns a deep copy. The local store hands out clones so callers can
// never mutate persisted state without going through a setter.
func (s *UserSnapshot) Clone() *UserSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Preferences != nil {
		p := *s.Preferences
		p.Genres = append([]string(nil), s.Preferences.Genres...)
		p.Topics = append([]string(nil), s.Preferences.Topics...)
		p.Languages = append([]string(nil), s.Preferences.Languages...)
		p.Formats = append([]string(nil), s.Preferences.Formats...)
		out.Preferences = &p
	}
	out.BookRatings = append([]Rating{}, s.BookRatings...)
	out.AuthorRatings = append([]Rating{}, s.AuthorRatings...)
	out.UserBooks = append([]LibraryEntry{}, s.UserBooks...)
	out.ReadingGoals = append([]Goal{}, s.ReadingGoals...)
	out.BookClubMemberships = append([]Membership{}, s.BookClubMemberships...)
	out.BuddyReads = append([]Participation{}, s.BuddyReads...)
	return &out
}
