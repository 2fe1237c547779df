package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrValidation   = errors.New("validation_error")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid_state")
	ErrStorage      = errors.New("storage_error")
)

// storageErr classifies a gorm error. Record-not-found and duplicate keys keep
// their meaning; anything else is a storage failure the caller may retry.
func storageErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	case isServiceErr(err):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", ErrStorage, what, err)
	}
}

func isServiceErr(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStorage)
}
