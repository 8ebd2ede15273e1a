package models

import (
	"time"
)

// User is the stored credential record resolved by email at login
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserFilter narrows user listings. Field is "name" or "email"; anything else matches all users.
type UserFilter struct {
	Field string
	Term  string
}

// UserSort orders user listings
type UserSort struct {
	Field string // "name" or "email"
	Desc  bool
}

// Fields users can be sorted and searched by
const (
	UserFieldName  = "name"
	UserFieldEmail = "email"
)

// IsUserListField reports whether field may be used to sort or filter user listings
func IsUserListField(field string) bool {
	return field == UserFieldName || field == UserFieldEmail
}
