package services

import (
	"errors"
	"fmt"

	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

// dbError maps ORM errors onto the application taxonomy. what names the
// record for not-found and duplicate messages.
func dbError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return response.NewNotFound(what + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return response.NewDuplicateData("%s already exists", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
