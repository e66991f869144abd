package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexArb/internal/model"
)

func TestPutDecisions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	decidedAt := time.Unix(1_700_000_000, 0).UTC()
	decisions := []model.Decision{
		{BlockNumber: 10, Outcome: model.OutcomeNoOpportunity, DecidedAt: decidedAt},
		{
			BlockNumber: 11,
			Outcome:     model.OutcomeExecuted,
			Asset:       "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Symbol:      "USDC",
			Direction:   "v2_to_v3",
			Profit:      "0.0166",
			Expected:    "0.166",
			GasCost:     "0.0063",
			AmountOther: "51000000000",
			TxHash:      "0xabc",
			DecidedAt:   decidedAt,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO arbitrage_decisions").
		WithArgs(int64(10), "no_opportunity", nil, nil, nil, nil, nil, nil, nil, nil, nil, decidedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO arbitrage_decisions").
		WithArgs(int64(11), "executed", decisions[1].Asset, "USDC", "v2_to_v3", "0.0166", "0.166", "0.0063", "51000000000", "0xabc", nil, decidedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	store := NewStoreWithDB(mock)
	require.NoError(t, store.PutDecisions(context.Background(), decisions))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutDecisionsRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO arbitrage_decisions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	store := NewStoreWithDB(mock)
	err = store.PutDecisions(context.Background(), []model.Decision{{BlockNumber: 3, Outcome: model.OutcomeSkipped}})
	assert.ErrorContains(t, err, "relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutDecisionsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	require.NoError(t, NewStoreWithDB(mock).PutDecisions(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS arbitrage_decisions").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, NewStoreWithDB(mock).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.Error(t, err)
}
