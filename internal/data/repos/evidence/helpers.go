package evidence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/research-evidence-backend/internal/platform/dbctx"
)

// inTx runs fn on the caller's transaction when there is one, else opens one.
func inTx(dbc dbctx.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if dbc.Tx != nil {
		return fn(dbc.Conn(db))
	}
	return dbc.Conn(db).Transaction(fn)
}

// isUniqueViolation recognizes a lost insert race across drivers: GORM's
// translated error, or a raw Postgres 23505.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
