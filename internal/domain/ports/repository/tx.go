package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the storage transaction handle passed through use cases. Its concrete
// type is infra-defined (pgx.Tx for Postgres). Repositories accept NoTX for the
// non-transactional path and lock rows (SELECT ... FOR UPDATE) when given a real tx.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one storage transaction. fn's error rolls the
// transaction back and is returned unchanged; a nil error commits.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
