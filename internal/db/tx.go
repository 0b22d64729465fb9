package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nullstream-oss/apkvault/internal/catalog"
)

// TxFunc is run inside a single Catalog Store transaction. Returning a
// non-nil error rolls the transaction back; returning nil commits it.
type TxFunc func(q *catalog.Queries) error

// TxManager begins and finalizes Catalog Store transactions on behalf
// of the Upload Pipeline, so its multi-step write (insert/update package
// + insert version) is atomic. The admin handlers write through the
// non-transactional Queries handle.
type TxManager struct {
	db *sql.DB
}

// NewTxManager wraps db for transactional use.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx begins a transaction, runs fn against a tx-scoped
// catalog.Queries, and commits or rolls back based on fn's outcome. A
// panic inside fn rolls the transaction back and re-panics rather than
// swallowing the failure.
func (m *TxManager) WithTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(catalog.New(tx))
	return err
}

// Queries returns a non-transactional Queries handle for read paths
// that don't need a transaction (catalog listing, package/version
// lookups).
func (m *TxManager) Queries() *catalog.Queries {
	return catalog.New(m.db)
}
