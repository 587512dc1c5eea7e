// Package merge reconciles a local and a remote UserSnapshot into one.
//
// All functions are pure and synchronous. Each collection is merged by a
// named strategy so the conflict rules stay auditable in one place:
//
//	book/author ratings, goals  localWins   (session edits are freshest)
//	user books                  mostRecent  (later DateAdded wins, ties remote)
//	club memberships            mostRecent  (later JoinedAt wins, ties remote)
//	buddy reads                 mostRecent  (later JoinedAt wins, ties remote)
package merge

import "github.com/shelfsyncapp/shelfsync-server/internal/domain"

// unionByKey merges remote then local entries into a single list keyed by
// key(). Remote entries are inserted first; a local entry with a matching key
// either overwrites in place (keepLocal true) or is dropped. Output order is
// insertion order and carries no meaning.
func unionByKey[T any](local, remote []T, key func(T) string, keepLocal func(localEntry, remoteEntry T) bool) []T {
	out := make([]T, 0, len(local)+len(remote))
	index := make(map[string]int, len(local)+len(remote))

	for _, entry := range remote {
		index[key(entry)] = len(out)
		out = append(out, entry)
	}
	for _, entry := range local {
		k := key(entry)
		if i, ok := index[k]; ok {
			if keepLocal(entry, out[i]) {
				out[i] = entry
			}
			continue
		}
		index[k] = len(out)
		out = append(out, entry)
	}
	return out
}

// localWins always prefers the local entry on a key collision.
func localWins[T any](T, T) bool { return true }

// ratings merges rating lists, local wins on collision.
func ratings(local, remote []domain.Rating) []domain.Rating {
	return unionByKey(local, remote, func(r domain.Rating) string { return r.ID }, localWins)
}

// goals merges reading goals, local wins on collision.
func goals(local, remote []domain.Goal) []domain.Goal {
	return unionByKey(local, remote, func(g domain.Goal) string { return g.ID }, localWins)
}

// userBooks merges library entries; on collision the later DateAdded wins and
// ties keep the remote value. Malformed dates are zero and therefore lose.
func userBooks(local, remote []domain.LibraryEntry) []domain.LibraryEntry {
	return unionByKey(local, remote,
		func(e domain.LibraryEntry) string { return e.ID },
		func(l, r domain.LibraryEntry) bool { return l.DateAdded.After(r.DateAdded) })
}

// memberships merges club memberships; the later JoinedAt wins, ties remote.
// A "leave" refreshes JoinedAt, so a recent leave beats a stale active copy.
func memberships(local, remote []domain.Membership) []domain.Membership {
	return unionByKey(local, remote,
		func(m domain.Membership) string { return m.ClubID },
		func(l, r domain.Membership) bool { return l.JoinedAt.After(r.JoinedAt) })
}

// participations merges buddy-read participations, same rule as memberships.
func participations(local, remote []domain.Participation) []domain.Participation {
	return unionByKey(local, remote,
		func(p domain.Participation) string { return p.BuddyReadID },
		func(l, r domain.Participation) bool { return l.JoinedAt.After(r.JoinedAt) })
}

// Snapshots merges local and remote into a new snapshot. Neither input is
// mutated. A nil remote (brand-new user) yields local with normalized
// collections; the caller persists that as the initial remote document.
func Snapshots(local, remote *domain.UserSnapshot) *domain.UserSnapshot {
	if local == nil {
		local = domain.NewUserSnapshot()
	}
	if remote == nil {
		out := local.Clone()
		out.Normalize()
		return out
	}

	out := &domain.UserSnapshot{
		// Sticky: once onboarding completed on any device, it stays completed.
		OnboardingCompleted: remote.OnboardingCompleted || local.OnboardingCompleted,
		BookRatings:         ratings(local.BookRatings, remote.BookRatings),
		AuthorRatings:       ratings(local.AuthorRatings, remote.AuthorRatings),
		UserBooks:           userBooks(local.UserBooks, remote.UserBooks),
		ReadingGoals:        goals(local.ReadingGoals, remote.ReadingGoals),
		BookClubMemberships: memberships(local.BookClubMemberships, remote.BookClubMemberships),
		BuddyReads:          participations(local.BuddyReads, remote.BuddyReads),
		UpdatedAt:           domain.Now(),
	}

	// Remote preferences reflect the latest completed onboarding elsewhere.
	if remote.Preferences != nil {
		out.Preferences = remote.Preferences
	} else {
		out.Preferences = local.Preferences
	}

	out.Normalize()
	return out
}
