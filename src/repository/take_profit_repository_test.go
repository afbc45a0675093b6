package repository

import (
	"context"
	"testing"

	"orderstate/src/database/dbtest"
	"orderstate/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeProfitRepository_FindBySymbolSQL(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewTakeProfitRepository(mockDB)

	rows := sqlmock.NewRows([]string{"id", "symbol", "enabled", "quantity", "target", "price", "hit"}).
		AddRow(1, "AAPL", true, 10, 1.5, 110.0, false).
		AddRow(2, "AAPL", false, 5, 2.0, 120.0, true)
	mock.ExpectQuery(`SELECT \* FROM "take_profits" WHERE symbol = \$1 ORDER BY id ASC`).
		WithArgs("AAPL").
		WillReturnRows(rows)

	levels, err := repo.FindBySymbol(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, model.TPKey{Target: 1.5, Quantity: 10}, levels[0].Key())
	assert.True(t, levels[1].Hit)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTakeProfitRepository_ResetHitSQL(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewTakeProfitRepository(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "take_profits" SET "hit"=\$1 WHERE symbol = \$2`).
		WithArgs(false, "AAPL").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	reset, err := repo.ResetHit(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(3), reset)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTakeProfitRepository_Lifecycle(t *testing.T) {
	db := dbtest.NewSQLite(t)
	repo := NewTakeProfitRepository(db)
	ctx := context.Background()

	first := &model.TakeProfit{Symbol: "AAPL", Enabled: true, Quantity: 10, Target: 1.5, Price: 110}
	second := &model.TakeProfit{Symbol: "AAPL", Enabled: true, Quantity: 5, Target: 2, Price: 120, Hit: true}
	other := &model.TakeProfit{Symbol: "ES", Enabled: true, Quantity: 1, Target: 1, Price: 5010, Hit: true}
	for _, tp := range []*model.TakeProfit{first, second, other} {
		require.NoError(t, repo.Create(ctx, tp))
	}

	levels, err := repo.FindBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, first.ID, levels[0].ID)
	assert.Equal(t, second.ID, levels[1].ID)

	// UpdateState never rewrites identity columns.
	changed := *first
	changed.Enabled = false
	changed.Price = 111
	changed.Hit = true
	changed.Target = 9
	require.NoError(t, repo.UpdateState(ctx, &changed))

	levels, err = repo.FindBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, model.TakeProfit{ID: first.ID, Symbol: "AAPL", Enabled: false, Quantity: 10, Target: 1.5, Price: 111, Hit: true}, levels[0])

	reset, err := repo.ResetHit(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(2), reset)

	levels, err = repo.FindBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	for _, tp := range levels {
		assert.False(t, tp.Hit)
	}

	require.NoError(t, repo.Delete(ctx, second))
	levels, err = repo.FindBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, levels, 1)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AAPL", all[0].Symbol)
	assert.Equal(t, "ES", all[1].Symbol)
	assert.True(t, all[1].Hit, "other symbols are untouched")
}
