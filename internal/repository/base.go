package repository

import (
	"context"
	"errors"
	"strings"

	"bloghub/internal/database"
	"bloghub/internal/models"

	"gorm.io/gorm"
)

// DefaultPageSize is the feed and listing page length.
const DefaultPageSize = 10

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// run executes fn under the store retry policy. fn must be a whole unit of work.
func run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return database.WithRetry(ctx, operation, fn)
}

// notFound maps gorm.ErrRecordNotFound to a NOT_FOUND AppError.
func notFound(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

// Page is a bounded listing window.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = DefaultPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageNumber returns the window for a 1-based page of size.
func PageNumber(page, size int) Page {
	if page < 1 {
		page = 1
	}
	return Page{Limit: size, Offset: (page - 1) * size}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// likePattern builds a case-insensitive containment pattern for use against
// LOWER(column) LIKE ? ESCAPE '\'. Wildcards in q match literally.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}

// storeErr passes AppErrors through and wraps anything else as INTERNAL_ERROR.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
