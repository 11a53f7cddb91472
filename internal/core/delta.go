package core

// Balance deltas are computed in exactly one place. Every mutator goes
// through DeltaFor/TransitionDelta so that "income adds, expense
// subtracts, unpaid contributes nothing" can never diverge between call
// sites.

// DeltaFor returns the signed balance contribution of a paid transaction
// of the given type and amount: +amount for income, -amount for expense.
func DeltaFor(typ TransactionType, amount Money) Money {
	if typ == Expense {
		return amount.Neg()
	}
	return amount
}

// LegDelta returns the signed balance contribution of a transaction in
// its current state: zero when unpaid or not bound to an account,
// DeltaFor otherwise.
func LegDelta(t Transaction) Money {
	if !t.IsPaid || t.AccountID == nil {
		return Money{}
	}
	return DeltaFor(t.Type, t.Amount)
}

// BalanceAdjustment is one pending account balance change produced by a
// state transition.
type BalanceAdjustment struct {
	AccountID int64
	Delta     Money
}

// TransitionDelta computes the balance adjustments implied by moving a
// transaction from state prev to state next. Creation passes a zero prev,
// deletion a zero next. Adjustments with a zero delta are omitted, so a
// transition that changes nothing about accounted money produces none.
func TransitionDelta(prev, next Transaction) []BalanceAdjustment {
	var adjs []BalanceAdjustment

	oldDelta := LegDelta(prev)
	newDelta := LegDelta(next)

	sameAccount := prev.AccountID != nil && next.AccountID != nil && *prev.AccountID == *next.AccountID
	if sameAccount {
		net := newDelta.Add(oldDelta.Neg())
		if net.Cents != 0 {
			adjs = append(adjs, BalanceAdjustment{AccountID: *prev.AccountID, Delta: net})
		}
		return adjs
	}

	if oldDelta.Cents != 0 {
		adjs = append(adjs, BalanceAdjustment{AccountID: *prev.AccountID, Delta: oldDelta.Neg()})
	}
	if newDelta.Cents != 0 {
		adjs = append(adjs, BalanceAdjustment{AccountID: *next.AccountID, Delta: newDelta})
	}
	return adjs
}
