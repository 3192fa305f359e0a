package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// GetAvailable returns the locked balance row for the user, type and year,
// creating it from the type's allowance the first time it is asked for.
// Repeated calls create one row and return the stored values.
func GetAvailable(ctx context.Context, repo LedgerRepo, userID string, lt LeaveType, year int) (Balance, error) {
	key := BalanceKey{UserID: userID, LeaveTypeID: lt.ID, Year: year}
	if err := repo.EnsureBalance(ctx, key, lt.MaxDays); err != nil {
		return Balance{}, storageErr("ensure balance", err)
	}
	b, err := repo.LockBalance(ctx, key)
	if err != nil {
		return Balance{}, storageErr("lock balance", err)
	}
	return b, nil
}

// Hold reserves days as pending against a balance read by GetAvailable.
func Hold(ctx context.Context, repo LedgerRepo, b Balance, applicationID string, days decimal.Decimal) (Balance, error) {
	if days.GreaterThan(b.Available()) {
		return b, &InsufficientBalanceError{Available: b.Available(), Requested: days}
	}
	inserted, err := repo.AppendBalanceEntry(ctx, BalanceEntry{BalanceID: b.ID, ApplicationID: applicationID, Kind: EntryHold, Days: days})
	if err != nil {
		return b, storageErr("append hold", err)
	}
	if !inserted {
		return b, nil
	}
	b.PendingDays = b.PendingDays.Add(days)
	if err := repo.UpdateBalance(ctx, b); err != nil {
		return b, storageErr("update balance", err)
	}
	return b, nil
}

// Release returns held days to the balance. A second release for the same
// application is a no-op.
func Release(ctx context.Context, repo LedgerRepo, key BalanceKey, applicationID string, days decimal.Decimal) (Balance, error) {
	b, err := repo.LockBalance(ctx, key)
	if err != nil {
		return Balance{}, storageErr("lock balance", err)
	}
	inserted, err := repo.AppendBalanceEntry(ctx, BalanceEntry{BalanceID: b.ID, ApplicationID: applicationID, Kind: EntryRelease, Days: days})
	if err != nil {
		return b, storageErr("append release", err)
	}
	if !inserted {
		return b, nil
	}
	b.PendingDays = floorZero(b.PendingDays.Sub(days))
	if err := repo.UpdateBalance(ctx, b); err != nil {
		return b, storageErr("update balance", err)
	}
	return b, nil
}

// ReserveAndCommit converts held days into used days at final approval.
// used + days must still fit the total under the row lock.
func ReserveAndCommit(ctx context.Context, repo LedgerRepo, key BalanceKey, applicationID string, days decimal.Decimal) (Balance, error) {
	b, err := repo.LockBalance(ctx, key)
	if err != nil {
		return Balance{}, storageErr("lock balance", err)
	}
	if b.UsedDays.Add(days).GreaterThan(b.TotalDays) {
		return b, &InsufficientBalanceError{Available: floorZero(b.TotalDays.Sub(b.UsedDays)), Requested: days}
	}
	inserted, err := repo.AppendBalanceEntry(ctx, BalanceEntry{BalanceID: b.ID, ApplicationID: applicationID, Kind: EntryDebit, Days: days})
	if err != nil {
		return b, storageErr("append debit", err)
	}
	if !inserted {
		return b, fmt.Errorf("debit for application %s already recorded: %w", applicationID, invalidTransition(ErrAlreadyActed))
	}
	b.PendingDays = floorZero(b.PendingDays.Sub(days))
	b.UsedDays = b.UsedDays.Add(days)
	if err := repo.UpdateBalance(ctx, b); err != nil {
		return b, storageErr("update balance", err)
	}
	return b, nil
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
