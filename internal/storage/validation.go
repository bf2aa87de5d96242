// Package storage archives parsed OFX statements in SQLite. Each import is one
// parsed file; imports are never merged.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/ofxread/internal/model"
)

// Storage errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrInvalidAccount  = errors.New("invalid account")
	ErrDuplicateImport = errors.New("file has already been imported")
	ErrNotFound        = errors.New("import not found")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAccounts checks the accounts of one import. A file may hold no
// statements, so an empty slice is valid.
func validateAccounts(accounts []model.Account) error {
	for i := range accounts {
		if strings.TrimSpace(accounts[i].Info.AcctID) == "" {
			return fmt.Errorf("%w: account at index %d has no id", ErrInvalidAccount, i)
		}
	}
	return nil
}
