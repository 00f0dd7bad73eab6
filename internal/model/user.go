package model

import "time"

// User is an account allowed to log in.  Organisers have the ADMIN
// role; GUEST accounts can only read their own costs.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – ADMIN or GUEST.
//	IsActive     – whether the account may log in.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

const (
	RoleAdmin = "ADMIN"
	RoleGuest = "GUEST"
)
