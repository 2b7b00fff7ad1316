// Package contacts merges role-scoped contact sources into one directory.
package contacts

import (
	"strings"

	"github.com/matheus3301/fitmsg/internal/model"
)

// RosterLabel is the label given to a trainer's own trainees.
const RosterLabel = "My Trainee"

// Resolve merges the roster with the generic contact list. Roster entries come
// first in input order, then generic entries whose id is not already present.
// The result never contains duplicate ids and is never nil.
func Resolve(roster, generic []model.Contact) []model.Contact {
	out := make([]model.Contact, 0, len(roster)+len(generic))
	seen := make(map[int64]struct{}, len(roster)+len(generic))
	for _, src := range [][]model.Contact{roster, generic} {
		for _, c := range src {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// TraineeRow is a roster row as returned by the trainer endpoint. UserID is the
// messaging identity; ID is the trainee profile id and only a fallback.
type TraineeRow struct {
	ID     int64
	UserID int64
	Name   string
	Email  string
}

// FromTrainees converts roster rows into contacts. Rows without any id are skipped.
func FromTrainees(rows []TraineeRow) []model.Contact {
	out := make([]model.Contact, 0, len(rows))
	for _, r := range rows {
		id := r.UserID
		if id == 0 {
			id = r.ID
		}
		if id == 0 {
			continue
		}
		name := r.Name
		if name == "" {
			name = "Trainee"
		}
		out = append(out, model.Contact{
			ID:    id,
			Name:  name,
			Email: r.Email,
			Role:  model.RoleTrainee,
			Label: RosterLabel,
		})
	}
	return out
}

// Search filters contacts whose name or email contains query, ignoring case.
// An empty query returns the input unchanged.
func Search(list []model.Contact, query string) []model.Contact {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return list
	}
	var out []model.Contact
	for _, c := range list {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the contact with the given id.
func Find(list []model.Contact, id int64) (model.Contact, bool) {
	for _, c := range list {
		if c.ID == id {
			return c, true
		}
	}
	return model.Contact{}, false
}

// CountByRole tallies contacts per role.
func CountByRole(list []model.Contact) map[model.Role]int {
	counts := make(map[model.Role]int)
	for _, c := range list {
		counts[c.Role]++
	}
	return counts
}
