package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

// stubTx satisfies pgx.Tx for context plumbing only.
type stubTx struct {
	pgx.Tx
}

func TestTxFromContext(t *testing.T) {
	_, ok := TxFromContext(context.Background())
	assert.False(t, ok)

	tx := &stubTx{}
	got, ok := TxFromContext(context.WithValue(context.Background(), txKey{}, pgx.Tx(tx)))
	assert.True(t, ok)
	assert.Same(t, tx, got)
}

func TestWithinTransactionJoinsOuterTransaction(t *testing.T) {
	// A nil pool would panic on Begin, so reaching fn proves the outer
	// transaction was reused.
	db := &DB{}
	tx := &stubTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	called := false
	err := db.WithinTransaction(ctx, func(inner context.Context) error {
		called = true
		got, ok := TxFromContext(inner)
		assert.True(t, ok)
		assert.Same(t, tx, got)
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, called)
}

func TestConnUsesContextTransaction(t *testing.T) {
	db := &DB{}
	tx := &stubTx{}

	assert.Same(t, tx, db.conn(context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))))
}
