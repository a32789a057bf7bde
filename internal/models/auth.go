package models

import "github.com/golang-jwt/jwt/v5"

// UserRole mirrors the role claim issued by the identity service. Session
// management itself lives outside this service.
type UserRole string

const (
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	RoleAdmin   UserRole = "ADMIN"
)

// JWTClaims are the access token claims this service validates.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
