// Package user holds user lookups shared by the domain services.
package user

import (
	"github.com/go-faster/errors"

	"github.com/xenking/quickcart/internal/model"
)

// ErrNotFound is returned when a user lookup misses.
var ErrNotFound = errors.New("user not found")

// Get returns the user stored under username.
func Get(doc *model.Document, username string) (*model.User, error) {
	u, ok := doc.Users[username]
	if !ok || u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// ByEmail returns the user registered with email.
func ByEmail(doc *model.Document, email string) (*model.User, error) {
	u := doc.UserByEmail(email)
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}
