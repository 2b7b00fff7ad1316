package store

import (
	"fmt"
	"time"
)

// SeededUser is a demo account with its issued tokens.
type SeededUser struct {
	User   User
	Tokens Tokens
}

// Seed populates an empty database with a small demo studio: one admin, two
// trainers, three trainees, a few conversations and system notifications.
// It refuses to run on a database that already has users.
func (db *DB) Seed() ([]SeededUser, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("seed: database already has %d users", n)
	}

	admin := &User{Name: "Dana Admin", Email: "admin@studio.test", Role: RoleAdmin}
	alex := &User{Name: "Alex Coach", Email: "alex@studio.test", Role: RoleTrainer}
	riley := &User{Name: "Riley Coach", Email: "riley@studio.test", Role: RoleTrainer}
	for _, u := range []*User{admin, alex, riley} {
		if err := db.CreateUser(u); err != nil {
			return nil, err
		}
	}
	sam := &User{Name: "Sam Lee", Email: "sam@studio.test", Role: RoleTrainee, TrainerID: alex.ID}
	jo := &User{Name: "Jo Park", Email: "jo@studio.test", Role: RoleTrainee, TrainerID: alex.ID}
	kim := &User{Name: "Kim Ortiz", Email: "kim@studio.test", Role: RoleTrainee, TrainerID: riley.ID}
	for _, u := range []*User{sam, jo, kim} {
		if err := db.CreateUser(u); err != nil {
			return nil, err
		}
	}

	conversation := []struct {
		from, to *User
		body     string
	}{
		{sam, alex, "Hi coach, can we move Thursday's session?"},
		{alex, sam, "Sure, does 6pm work?"},
		{sam, alex, "Perfect, see you then"},
		{jo, alex, "Finished the mobility plan this week"},
		{admin, alex, "Reminder: studio closes early on Friday"},
		{kim, riley, "Is the new program ready?"},
	}
	for _, c := range conversation {
		if _, err := db.SendMessage(c.from, c.to.ID, c.body); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	notices := []Notification{
		{UserID: alex.ID, Title: "Session rescheduled", Message: "Sam Lee moved to Thursday 6pm", Type: "schedule", Importance: "high", CreatedAt: now.Add(-2 * time.Hour)},
		{UserID: alex.ID, Title: "New trainee assigned", Message: "Jo Park joined your roster", Type: "trainee", CreatedAt: now.Add(-26 * time.Hour)},
		{UserID: alex.ID, Title: "Payout processed", Message: "Your monthly payout is on its way", Type: "payment", CreatedAt: now.Add(-72 * time.Hour), IsRead: true},
		{UserID: sam.ID, Title: "Class reminder", Message: "HIIT tomorrow at 7am", Type: "session", CreatedAt: now.Add(-3 * time.Hour)},
		{UserID: admin.ID, Title: "Feedback received", Message: "Kim Ortiz left a review", Type: "feedback", CreatedAt: now.Add(-5 * time.Hour)},
	}
	for i := range notices {
		if err := db.CreateNotification(&notices[i]); err != nil {
			return nil, err
		}
	}

	var out []SeededUser
	for _, u := range []*User{admin, alex, riley, sam, jo, kim} {
		tok, err := db.IssueTokens(u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, SeededUser{User: *u, Tokens: tok})
	}
	return out, nil
}
