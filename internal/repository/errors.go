// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver errors. ErrNotFound deliberately covers both "does not
// exist" and "belongs to another client" so callers cannot tell the two
// apart.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row is absent or not owned by the caller.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with an existing unique
// value.  Handlers translate it into an HTTP 400 response carrying the
// wrapped error's message.
var ErrConflict = errors.New("conflict")

// ErrSlugTaken and ErrEmailTaken are the specific conflicts; both satisfy
// errors.Is(err, ErrConflict).
var (
	ErrSlugTaken  = fmt.Errorf("%w: slug already taken", ErrConflict)
	ErrEmailTaken = fmt.Errorf("%w: email already registered", ErrConflict)
)

// ErrInvalidSlug is returned when a slug does not match ^[a-z0-9-]{3,50}$.
var ErrInvalidSlug = errors.New("slug must be 3-50 characters of lowercase letters, digits or hyphens")

// ErrPlanLimit is returned when a client already holds as many links as its
// plan allows.  Handlers translate it into an HTTP 403 response.
var ErrPlanLimit = errors.New("link limit reached for current plan")

// isDuplicate reports whether err is a unique-key violation from MySQL
// (error 1062) or SQLite.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
