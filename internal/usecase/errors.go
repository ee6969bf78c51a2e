package usecase

import "errors"

// ErrInvalidIdentifier is returned when a requested file id does not have
// the shape of an allocated identifier.
var ErrInvalidIdentifier = errors.New("invalid file id")
