package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles.
type UserRole string

const (
	RoleInstructor UserRole = "instructor"
	RoleStudent    UserRole = "student"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	return r == RoleInstructor || r == RoleStudent
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"name"`
	Role         UserRole  `db:"role" json:"role"`
	Timezone     string    `db:"timezone" json:"timeZone"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// InstructorInfo is the public directory view of an instructor.
type InstructorInfo struct {
	ID       string `db:"id" json:"uid"`
	FullName string `db:"full_name" json:"name"`
	Email    string `db:"email" json:"email"`
	Timezone string `db:"timezone" json:"timeZone"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
