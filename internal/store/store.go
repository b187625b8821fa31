// Package store maintains the four entity collections (patients,
// appointments, medical entries, users) behind a single interface with two
// interchangeable implementations: LocalStore persists whole-collection JSON
// snapshots into a key-value substrate, RemoteStore persists typed rows into
// a networked database. Which one serves a process is decided once at
// startup.
package store

import (
	"context"
	"errors"

	"agenda-medica-server/internal/models"
)

// ErrAdminProtected is returned when a mutation would delete the admin
// account or alter its credential.
var ErrAdminProtected = errors.New("admin account is protected")

// ErrUsernameTaken is returned when creating or renaming a user to a
// username that already exists.
var ErrUsernameTaken = errors.New("username already in use")

// ErrInvalidCredentials is returned by Authenticate on a bad username or
// password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Store is the persistence contract the handlers are written against.
//
// Every Add assigns the new record's id; ids are never reused within a
// collection. Update and Delete against an id that does not exist are silent
// no-ops. Appointment lists are always ascending by date-time and medical
// entry lists descending by date. Deleting a patient cascades into that
// patient's medical entries and appointments.
type Store interface {
	ListPatients(ctx context.Context) ([]models.Patient, error)
	AddPatient(ctx context.Context, p models.Patient) (models.Patient, error)
	UpdatePatient(ctx context.Context, id string, p models.Patient) error
	DeletePatient(ctx context.Context, id string) error

	ListAppointments(ctx context.Context) ([]models.Appointment, error)
	AddAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, a models.Appointment) error
	DeleteAppointment(ctx context.Context, id string) error

	ListMedicalEntries(ctx context.Context) ([]models.MedicalEntry, error)
	AddMedicalEntry(ctx context.Context, e models.MedicalEntry) (models.MedicalEntry, error)
	UpdateMedicalEntry(ctx context.Context, id string, e models.MedicalEntry) error
	DeleteMedicalEntry(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]models.UserCredential, error)
	AddUser(ctx context.Context, u models.UserCredential) (models.UserCredential, error)
	UpdateUser(ctx context.Context, id string, u models.UserCredential) error
	DeleteUser(ctx context.Context, id string) error
	GetUserByUsername(ctx context.Context, username string) (*models.UserCredential, error)

	// Authenticate verifies a username/password pair against however this
	// backend keeps credentials and returns the matched user.
	Authenticate(ctx context.Context, username, password string) (*models.UserCredential, error)

	// EnsureAdmin guarantees the admin account exists, creating it with the
	// configured default password when missing.
	EnsureAdmin(ctx context.Context) error
}

var (
	_ Store        = (*LocalStore)(nil)
	_ Store        = (*RemoteStore)(nil)
	_ SessionStore = (*LocalStore)(nil)
)

// SessionStore is an optional capability: the local backend persists the
// current session user under its own key, the way the browser variant kept a
// separate session slot. Handlers type-assert for it.
type SessionStore interface {
	SaveSession(ctx context.Context, u models.UserCredential) error
	Session(ctx context.Context) (*models.UserCredential, error)
	ClearSession(ctx context.Context) error
}
