package app

import (
	"errors"

	"github.com/hylla/sectboard/internal/domain"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidState = errors.New("invalid state transition")
)
