package models

import (
	"golang.org/x/crypto/bcrypt"
)

// AdminUsername is the reserved administrator username. Exactly one user
// carries it, it cannot be deleted and its credential cannot be changed
// through the generic update path.
const AdminUsername = "admin"

// AdminID is the fixed document id the remote store pins the administrator
// to, so it can be located by direct lookup without a query.
const AdminID = "admin"

// UserCredential represents a login account.
//
// The local backend keeps the credential as plaintext in Password, exactly as
// the browser-storage variant did. The remote backend only ever persists the
// bcrypt hash in PasswordHash and leaves Password empty.
type UserCredential struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// IsAdmin reports whether this is the administrator account.
func (u *UserCredential) IsAdmin() bool {
	return u.Username == AdminUsername
}

// SetPasswordHash hashes a plaintext password and sets it on the user.
func (u *UserCredential) SetPasswordHash(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPasswordHash compares a password with the user's hashed credential.
func (u *UserCredential) CheckPasswordHash(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a UserCredential, excluding
// credential material.
func (u *UserCredential) Sanitize() UserSanitized {
	return UserSanitized{
		ID:       u.ID,
		Username: u.Username,
	}
}
