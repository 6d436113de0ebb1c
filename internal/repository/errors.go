// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// session service to distinguish between different failure scenarios
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert would violate one of the unique
// keys on users (usuario, email, cnpj). Handlers translate this into 409.
var ErrConflict = errors.New("conflict")

// ErrAlreadyRevoked is returned by TokenRepo.Rotate when the token being
// rotated was revoked by a concurrent call between lookup and update.
var ErrAlreadyRevoked = errors.New("refresh token already revoked")
