package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const userColumns = `id, name, email, role, COALESCE(trainer_id, 0), is_active, created_at`

// CreateUser inserts a user and sets u.ID. Emails are stored lowercased.
func (db *DB) CreateUser(u *User) error {
	role := strings.ToUpper(strings.TrimSpace(u.Role))
	switch role {
	case RoleTrainee, RoleTrainer, RoleAdmin:
	default:
		return fmt.Errorf("create user: invalid role %q", u.Role)
	}
	var trainer any
	if u.TrainerID > 0 {
		trainer = u.TrainerID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(`
		INSERT INTO users (name, email, role, trainer_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(u.Name), strings.ToLower(strings.TrimSpace(u.Email)), role, trainer, true, millis(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("create user %q: %w", u.Email, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID, u.Role, u.Active = id, role, true
	return nil
}

// GetUser returns a user by id, or nil if none exists.
func (db *DB) GetUser(id int64) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (db *DB) GetUserByEmail(email string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

// SetActive enables or disables an account.
func (db *DB) SetActive(id int64, active bool) error {
	_, err := db.Exec(`UPDATE users SET is_active = ? WHERE id = ?`, active, id)
	return err
}

// Trainees returns the trainees assigned to a trainer, ordered by name.
func (db *DB) Trainees(trainerID int64) ([]User, error) {
	return db.queryUsers(`SELECT `+userColumns+` FROM users WHERE role = ? AND trainer_id = ? ORDER BY name, id`, RoleTrainee, trainerID)
}

// AvailableContacts lists who u may message: a trainee sees their trainer and
// the admins, a trainer sees their trainees and the admins, and an admin sees
// every other active user.
func (db *DB) AvailableContacts(u *User) ([]Contact, error) {
	contacts := []Contact{}
	switch u.Role {
	case RoleTrainee:
		if u.TrainerID > 0 {
			trainer, err := db.GetUser(u.TrainerID)
			if err != nil {
				return nil, err
			}
			if trainer != nil {
				contacts = append(contacts, contactOf(trainer, "My Trainer"))
			}
		}
		admins, err := db.admins()
		if err != nil {
			return nil, err
		}
		for i := range admins {
			contacts = append(contacts, contactOf(&admins[i], "Admin"))
		}
	case RoleTrainer:
		trainees, err := db.Trainees(u.ID)
		if err != nil {
			return nil, err
		}
		for i := range trainees {
			contacts = append(contacts, contactOf(&trainees[i], "Trainee"))
		}
		admins, err := db.admins()
		if err != nil {
			return nil, err
		}
		for i := range admins {
			contacts = append(contacts, contactOf(&admins[i], "Admin"))
		}
	case RoleAdmin:
		users, err := db.queryUsers(`SELECT `+userColumns+` FROM users WHERE id != ? AND is_active = 1 ORDER BY id`, u.ID)
		if err != nil {
			return nil, err
		}
		for i := range users {
			contacts = append(contacts, contactOf(&users[i], users[i].Role))
		}
	}
	return contacts, nil
}

func (db *DB) admins() ([]User, error) {
	return db.queryUsers(`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY id`, RoleAdmin)
}

func (db *DB) queryUsers(query string, args ...any) ([]User, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var u User
	var created int64
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.TrainerID, &u.Active, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

func contactOf(u *User, label string) Contact {
	return Contact{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Label: label}
}
