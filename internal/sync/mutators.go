package sync

import (
	"context"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/id"
	"github.com/shelfsyncapp/shelfsync-server/internal/normalize"
)

// pushTimeout bounds a single background field push.
const pushTimeout = 15 * time.Second

// ratingInput carries a validated rating mutation.
type ratingInput struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Score     int    `json:"score" validate:"min=1,max=5"`
}

// SetBookRating creates or updates the user's rating for a book. Weight is
// always re-derived from the score. Returns the committed snapshot.
func (s *Session) SetBookRating(ctx context.Context, subjectID string, score int, liked bool) (*domain.UserSnapshot, error) {
	if err := s.validate.Validate(ratingInput{SubjectID: subjectID, Score: score}); err != nil {
		return nil, err
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		snap.BookRatings = upsertRating(snap.BookRatings, subjectID, score, liked)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "book_ratings")
	return snap, nil
}

// SetAuthorRating creates or updates the user's rating for an author.
func (s *Session) SetAuthorRating(ctx context.Context, subjectID string, score int, liked bool) (*domain.UserSnapshot, error) {
	if err := s.validate.Validate(ratingInput{SubjectID: subjectID, Score: score}); err != nil {
		return nil, err
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		snap.AuthorRatings = upsertRating(snap.AuthorRatings, subjectID, score, liked)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "author_ratings")
	return snap, nil
}

// AddLibraryEntry puts a book on a shelf. Adding a book that is already in
// the library moves it to the given shelf and refreshes DateAdded, so the
// move wins any later most-recent merge.
func (s *Session) AddLibraryEntry(ctx context.Context, bookID string, status domain.BookStatus) (*domain.UserSnapshot, error) {
	if bookID == "" {
		return nil, errors.Validation("book id is required")
	}
	if !status.Valid() {
		return nil, errors.Validationf("unknown shelf status %q", string(status))
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		for i := range snap.UserBooks {
			if snap.UserBooks[i].ID == bookID {
				snap.UserBooks[i].Status = status
				snap.UserBooks[i].DateAdded = domain.Now()
				return nil
			}
		}
		snap.UserBooks = append(snap.UserBooks, domain.LibraryEntry{
			ID:        bookID,
			Status:    status,
			DateAdded: domain.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "user_books")
	return snap, nil
}

// UpdateLibraryEntry mutates an existing entry in place via fn and refreshes
// its DateAdded so the edit is the most recent event for that book.
func (s *Session) UpdateLibraryEntry(ctx context.Context, bookID string, fn func(*domain.LibraryEntry)) (*domain.UserSnapshot, error) {
	if bookID == "" {
		return nil, errors.Validation("book id is required")
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		for i := range snap.UserBooks {
			if snap.UserBooks[i].ID == bookID {
				fn(&snap.UserBooks[i])
				if !snap.UserBooks[i].Status.Valid() {
					return errors.Validationf("unknown shelf status %q", string(snap.UserBooks[i].Status))
				}
				snap.UserBooks[i].DateAdded = domain.Now()
				return nil
			}
		}
		return errors.NotFoundf("book %s is not in the library", bookID)
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "user_books")
	return snap, nil
}

// SetPreferences replaces the user's reading profile. Languages are
// normalized to ISO 639-1 codes so every device stores the same form.
func (s *Session) SetPreferences(ctx context.Context, prefs domain.Preferences) (*domain.UserSnapshot, error) {
	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		p := prefs
		p.Languages = normalize.Languages(p.Languages)
		snap.Preferences = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "preferences")
	return snap, nil
}

// CompleteOnboarding records the onboarding preferences and marks onboarding
// done. The flag only ever moves to true; merges keep it sticky.
func (s *Session) CompleteOnboarding(ctx context.Context, prefs domain.Preferences) (*domain.UserSnapshot, error) {
	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		p := prefs
		p.Languages = normalize.Languages(p.Languages)
		snap.Preferences = &p
		snap.OnboardingCompleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "preferences", "onboarding_completed")
	return snap, nil
}

// SetReadingGoal creates or updates a goal by ID (conventionally the year).
func (s *Session) SetReadingGoal(ctx context.Context, goalID string, target, current int) (*domain.UserSnapshot, error) {
	if goalID == "" {
		return nil, errors.Validation("goal id is required")
	}
	if target <= 0 {
		return nil, errors.Validation("goal target must be positive")
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		for i := range snap.ReadingGoals {
			if snap.ReadingGoals[i].ID == goalID {
				snap.ReadingGoals[i].Target = target
				snap.ReadingGoals[i].Current = current
				return nil
			}
		}
		snap.ReadingGoals = append(snap.ReadingGoals, domain.Goal{ID: goalID, Target: target, Current: current})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "reading_goals")
	return snap, nil
}

// JoinClub adds or re-activates a book club membership.
func (s *Session) JoinClub(ctx context.Context, clubID, role string) (*domain.UserSnapshot, error) {
	if clubID == "" {
		return nil, errors.Validation("club id is required")
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		for i := range snap.BookClubMemberships {
			if snap.BookClubMemberships[i].ClubID == clubID {
				snap.BookClubMemberships[i].IsActive = true
				snap.BookClubMemberships[i].Role = role
				snap.BookClubMemberships[i].JoinedAt = domain.Now()
				return nil
			}
		}
		snap.BookClubMemberships = append(snap.BookClubMemberships, domain.Membership{
			ClubID:   clubID,
			JoinedAt: domain.Now(),
			Role:     role,
			IsActive: true,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "book_club_memberships")
	return snap, nil
}

// LeaveClub logically deletes a membership: the entry stays with
// IsActive=false and a refreshed JoinedAt, so an older remote copy can never
// resurrect it as active.
func (s *Session) LeaveClub(ctx context.Context, clubID string) (*domain.UserSnapshot, error) {
	if clubID == "" {
		return nil, errors.Validation("club id is required")
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		for i := range snap.BookClubMemberships {
			if snap.BookClubMemberships[i].ClubID == clubID {
				snap.BookClubMemberships[i].IsActive = false
				snap.BookClubMemberships[i].JoinedAt = domain.Now()
				return nil
			}
		}
		return errors.NotFoundf("no membership for club %s", clubID)
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "book_club_memberships")
	return snap, nil
}

// JoinBuddyRead adds or re-activates a buddy read participation.
func (s *Session) JoinBuddyRead(ctx context.Context, buddyReadID, role string) (*domain.UserSnapshot, error) {
	if buddyReadID == "" {
		return nil, errors.Validation("buddy read id is required")
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		for i := range snap.BuddyReads {
			if snap.BuddyReads[i].BuddyReadID == buddyReadID {
				snap.BuddyReads[i].IsActive = true
				snap.BuddyReads[i].Role = role
				snap.BuddyReads[i].JoinedAt = domain.Now()
				return nil
			}
		}
		snap.BuddyReads = append(snap.BuddyReads, domain.Participation{
			BuddyReadID: buddyReadID,
			JoinedAt:    domain.Now(),
			Role:        role,
			IsActive:    true,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "buddy_reads")
	return snap, nil
}

// LeaveBuddyRead logically deletes a participation, same scheme as LeaveClub.
func (s *Session) LeaveBuddyRead(ctx context.Context, buddyReadID string) (*domain.UserSnapshot, error) {
	if buddyReadID == "" {
		return nil, errors.Validation("buddy read id is required")
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		for i := range snap.BuddyReads {
			if snap.BuddyReads[i].BuddyReadID == buddyReadID {
				snap.BuddyReads[i].IsActive = false
				snap.BuddyReads[i].JoinedAt = domain.Now()
				return nil
			}
		}
		return errors.NotFoundf("no participation for buddy read %s", buddyReadID)
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "buddy_reads")
	return snap, nil
}

// SetBuddyReadProgress updates reading progress within an active buddy read.
func (s *Session) SetBuddyReadProgress(ctx context.Context, buddyReadID string, progress float64) (*domain.UserSnapshot, error) {
	if progress < 0 || progress > 1 {
		return nil, errors.Validation("progress must be between 0 and 1")
	}

	snap, err := s.local.Mutate(ctx, s.userID, func(snap *domain.UserSnapshot) error {
		for i := range snap.BuddyReads {
			if snap.BuddyReads[i].BuddyReadID == buddyReadID && snap.BuddyReads[i].IsActive {
				snap.BuddyReads[i].Progress = progress
				snap.BuddyReads[i].JoinedAt = domain.Now()
				return nil
			}
		}
		return errors.NotFoundf("no active participation for buddy read %s", buddyReadID)
	})
	if err != nil {
		return nil, err
	}

	s.pushFields(snap, "buddy_reads")
	return snap, nil
}

// upsertRating updates the rating for subjectID in place or appends a new
// one. Weight always tracks the score.
func upsertRating(list []domain.Rating, subjectID string, score int, liked bool) []domain.Rating {
	for i := range list {
		if list[i].SubjectID == subjectID {
			list[i].Score = score
			list[i].Liked = liked
			list[i].Weight = domain.WeightForScore(score)
			list[i].UpdatedAt = domain.Now()
			return list
		}
	}
	return append(list, domain.NewRating(id.MustGenerate("rat"), subjectID, score, liked))
}

// pushFields sends the named top-level fields (plus updated_at) to the remote
// document in the background. The local write has already committed; the push
// never blocks the caller. While offline the push is skipped entirely — the
// offline monitor's catch-up cycle reconciles accumulated changes on
// reconnect. A failed push is logged and left for the next merge cycle; it is
// not retried, since retrying a non-idempotent write risks clobbering a
// concurrent device's update.
func (s *Session) pushFields(snap *domain.UserSnapshot, names ...string) {
	if !s.monitor.Online() {
		s.logger.Debug("offline, deferring remote push", "user_id", s.userID, "fields", names)
		return
	}

	all, err := snapshotFields(snap)
	if err != nil {
		s.logger.Error("failed to encode snapshot for push", "user_id", s.userID, "error", err)
		return
	}
	partial := map[string]any{"updated_at": all["updated_at"]}
	for _, name := range names {
		partial[name] = all[name]
	}

	s.pushes.Add(1)
	go func() {
		defer s.pushes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		if err := s.remote.UpdateFields(ctx, s.userID, partial); err != nil {
			s.logger.Warn("remote push failed, next sync cycle will reconcile",
				"user_id", s.userID, "fields", names, "error", err)
		}
	}()
}
