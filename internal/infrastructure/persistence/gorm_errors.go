package persistence

import (
	"errors"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// translateError maps GORM sentinel errors onto domain errors. The
// connection must be opened with TranslateError so that unique violations
// surface as gorm.ErrDuplicatedKey on every dialect.
func translateError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NotFound(resource)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	default:
		return err
	}
}

// schoolScope filters by school_id. uuid.Nil leaves the query unscoped and
// is only passed on behalf of super admins.
func schoolScope(schoolID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if schoolID == uuid.Nil {
			return db
		}
		return db.Where("school_id = ?", schoolID)
	}
}

// forUpdate adds SELECT ... FOR UPDATE. SQLite ignores the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// paginate applies the page window of a filter
func paginate(page shared.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(page.Offset()).Limit(page.Limit())
	}
}

// orderBy applies a whitelisted sort column
func orderBy(page shared.Filter, allowed map[string]bool, defaultField string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		field := ValidateSortField(page.OrderBy, allowed, defaultField)
		return db.Order(field + " " + ValidateSortOrder(page.OrderDir))
	}
}
