package leave

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerFixture(t *testing.T) (*memTx, LeaveType) {
	t.Helper()
	repo := newMemRepo()
	lt := LeaveType{ID: "annual", Name: "Annual", MaxDays: d("10"), Active: true}
	repo.state.types[lt.ID] = lt
	return &memTx{s: repo.state}, lt
}

func TestGetAvailableSynthesizesOnce(t *testing.T) {
	tx, lt := ledgerFixture(t)
	ctx := context.Background()

	first, err := GetAvailable(ctx, tx, "u1", lt, 2025)
	require.NoError(t, err)
	assert.True(t, first.TotalDays.Equal(d("10")))
	assert.True(t, first.Available().Equal(d("10")))

	lt.MaxDays = d("20")
	second, err := GetAvailable(ctx, tx, "u1", lt, 2025)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.TotalDays.Equal(d("10")), "stored total wins over the current allowance")
	assert.Len(t, tx.s.balances, 1)

	_, err = GetAvailable(ctx, tx, "u1", lt, 2026)
	require.NoError(t, err)
	assert.Len(t, tx.s.balances, 2, "each year has its own row")
}

func TestHoldBoundary(t *testing.T) {
	tests := []struct {
		name    string
		days    string
		wantErr bool
	}{
		{name: "exactly available", days: "10"},
		{name: "half day over", days: "10.5", wantErr: true},
		{name: "half day", days: "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, lt := ledgerFixture(t)
			ctx := context.Background()
			b, err := GetAvailable(ctx, tx, "u1", lt, 2025)
			require.NoError(t, err)

			held, err := Hold(ctx, tx, b, "app-1", d(tt.days))
			if tt.wantErr {
				var insufficient *InsufficientBalanceError
				require.ErrorAs(t, err, &insufficient)
				assert.True(t, insufficient.Available.Equal(d("10")))
				assert.True(t, tx.s.balances[b.BalanceKey].PendingDays.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, held.PendingDays.Equal(d(tt.days)))
			assert.True(t, tx.s.balances[b.BalanceKey].PendingDays.Equal(d(tt.days)))
		})
	}
}

func TestHoldIsIdempotentPerApplication(t *testing.T) {
	tx, lt := ledgerFixture(t)
	ctx := context.Background()
	b, err := GetAvailable(ctx, tx, "u1", lt, 2025)
	require.NoError(t, err)

	_, err = Hold(ctx, tx, b, "app-1", d("2"))
	require.NoError(t, err)
	b, err = GetAvailable(ctx, tx, "u1", lt, 2025)
	require.NoError(t, err)
	_, err = Hold(ctx, tx, b, "app-1", d("2"))
	require.NoError(t, err)
	assert.True(t, tx.s.balances[b.BalanceKey].PendingDays.Equal(d("2")))
}

func TestReleaseIsIdempotent(t *testing.T) {
	tx, lt := ledgerFixture(t)
	ctx := context.Background()
	b, err := GetAvailable(ctx, tx, "u1", lt, 2025)
	require.NoError(t, err)
	_, err = Hold(ctx, tx, b, "app-1", d("3"))
	require.NoError(t, err)
	_, err = Hold(ctx, tx, tx.s.balances[b.BalanceKey], "app-2", d("2"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		released, err := Release(ctx, tx, b.BalanceKey, "app-1", d("3"))
		require.NoError(t, err)
		assert.True(t, released.PendingDays.Equal(d("2")), "pending %s", released.PendingDays)
	}
	assert.True(t, tx.s.balances[b.BalanceKey].Available().Equal(d("8")))
}

func TestReserveAndCommit(t *testing.T) {
	tx, lt := ledgerFixture(t)
	ctx := context.Background()
	b, err := GetAvailable(ctx, tx, "u1", lt, 2025)
	require.NoError(t, err)
	_, err = Hold(ctx, tx, b, "app-1", d("4"))
	require.NoError(t, err)

	committed, err := ReserveAndCommit(ctx, tx, b.BalanceKey, "app-1", d("4"))
	require.NoError(t, err)
	assert.True(t, committed.UsedDays.Equal(d("4")))
	assert.True(t, committed.PendingDays.IsZero())
	assert.True(t, committed.Available().Equal(d("6")))

	_, err = ReserveAndCommit(ctx, tx, b.BalanceKey, "app-1", d("4"))
	var transition *InvalidTransitionError
	require.True(t, errors.As(err, &transition))
	assert.ErrorIs(t, err, ErrAlreadyActed)
	assert.True(t, tx.s.balances[b.BalanceKey].UsedDays.Equal(d("4")), "duplicate debit changes nothing")
}

func TestReserveAndCommitRejectsOverdraw(t *testing.T) {
	tx, lt := ledgerFixture(t)
	ctx := context.Background()
	b, err := GetAvailable(ctx, tx, "u1", lt, 2025)
	require.NoError(t, err)
	b.UsedDays = d("9")
	require.NoError(t, tx.UpdateBalance(ctx, b))

	_, err = ReserveAndCommit(ctx, tx, b.BalanceKey, "app-1", d("1.5"))
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(d("1")))
	assert.True(t, insufficient.Requested.Equal(d("1.5")))
}

func TestLedgerStorageFailure(t *testing.T) {
	tx, lt := ledgerFixture(t)
	tx.failOn = "EnsureBalance"

	_, err := GetAvailable(context.Background(), tx, "u1", lt, 2025)
	var storage *StorageError
	require.ErrorAs(t, err, &storage)
	assert.Equal(t, "ensure balance", storage.Op)
	assert.ErrorIs(t, err, errInjected)
}
