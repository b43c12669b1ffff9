package database

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate entry")
	ErrInvalidID = errors.New("invalid id")
	ErrConflict  = errors.New("conflicting state")
	ErrInternal  = errors.New("database internal error")
)

// WrapError turns driver and gorm errors into the errors above.
func WrapError(rawErr error) error {
	if rawErr == nil {
		return nil
	}

	switch {
	case errors.Is(rawErr, ErrNotFound), errors.Is(rawErr, ErrDuplicate), errors.Is(rawErr, ErrInvalidID),
		errors.Is(rawErr, ErrConflict):
		return rawErr
	case errors.Is(rawErr, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(rawErr, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(rawErr, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062: // unique constraint
			return ErrDuplicate
		case 1452: // foreign key
			return ErrNotFound
		case 1045, 1049, 1146:
			return fmt.Errorf("%w: %s", ErrInternal, mysqlErr.Message)
		}
	}

	return fmt.Errorf("%w: %v", ErrInternal, rawErr)
}
