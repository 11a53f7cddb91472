package core

import "testing"

func acct(id int64) *int64 { return &id }

func TestDeltaFor(t *testing.T) {
	if got := DeltaFor(Income, Money{Cents: 500}); got.Cents != 500 {
		t.Fatalf("income delta: got %d", got.Cents)
	}
	if got := DeltaFor(Expense, Money{Cents: 500}); got.Cents != -500 {
		t.Fatalf("expense delta: got %d", got.Cents)
	}
}

func TestLegDelta(t *testing.T) {
	cases := []struct {
		name string
		leg  Transaction
		want int64
	}{
		{"paid income", Transaction{AccountID: acct(1), Type: Income, Amount: Money{Cents: 100}, IsPaid: true}, 100},
		{"paid expense", Transaction{AccountID: acct(1), Type: Expense, Amount: Money{Cents: 100}, IsPaid: true}, -100},
		{"unpaid", Transaction{AccountID: acct(1), Type: Expense, Amount: Money{Cents: 100}}, 0},
		{"no account", Transaction{Type: Expense, Amount: Money{Cents: 100}, IsPaid: true}, 0},
	}
	for _, tc := range cases {
		if got := LegDelta(tc.leg); got.Cents != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got.Cents, tc.want)
		}
	}
}

func TestTransitionDeltaCreateDelete(t *testing.T) {
	paid := Transaction{AccountID: acct(7), Type: Expense, Amount: Money{Cents: 2500}, IsPaid: true}

	create := TransitionDelta(Transaction{}, paid)
	if len(create) != 1 || create[0].AccountID != 7 || create[0].Delta.Cents != -2500 {
		t.Fatalf("create: got %+v", create)
	}

	del := TransitionDelta(paid, Transaction{})
	if len(del) != 1 || del[0].AccountID != 7 || del[0].Delta.Cents != 2500 {
		t.Fatalf("delete: got %+v", del)
	}
}

func TestTransitionDeltaNoOp(t *testing.T) {
	leg := Transaction{AccountID: acct(3), Type: Income, Amount: Money{Cents: 900}, IsPaid: true}
	if adjs := TransitionDelta(leg, leg); len(adjs) != 0 {
		t.Fatalf("identical states must produce no adjustments, got %+v", adjs)
	}

	unpaid := Transaction{AccountID: acct(3), Type: Income, Amount: Money{Cents: 900}}
	if adjs := TransitionDelta(unpaid, unpaid); len(adjs) != 0 {
		t.Fatalf("unpaid no-op produced %+v", adjs)
	}
}

func TestTransitionDeltaAmountChange(t *testing.T) {
	before := Transaction{AccountID: acct(3), Type: Expense, Amount: Money{Cents: 1000}, IsPaid: true}
	after := before
	after.Amount = Money{Cents: 1500}

	adjs := TransitionDelta(before, after)
	if len(adjs) != 1 || adjs[0].Delta.Cents != -500 {
		t.Fatalf("amount change: got %+v", adjs)
	}
}

func TestTransitionDeltaAccountMove(t *testing.T) {
	before := Transaction{AccountID: acct(1), Type: Income, Amount: Money{Cents: 800}, IsPaid: true}
	after := before
	after.AccountID = acct(2)

	adjs := TransitionDelta(before, after)
	if len(adjs) != 2 {
		t.Fatalf("account move: got %+v", adjs)
	}
	if adjs[0].AccountID != 1 || adjs[0].Delta.Cents != -800 {
		t.Fatalf("revert leg wrong: %+v", adjs[0])
	}
	if adjs[1].AccountID != 2 || adjs[1].Delta.Cents != 800 {
		t.Fatalf("apply leg wrong: %+v", adjs[1])
	}
}

func TestTransitionDeltaPaidFlip(t *testing.T) {
	unpaid := Transaction{AccountID: acct(5), Type: Expense, Amount: Money{Cents: 400}}
	paid := unpaid
	paid.IsPaid = true

	toPaid := TransitionDelta(unpaid, paid)
	if len(toPaid) != 1 || toPaid[0].Delta.Cents != -400 {
		t.Fatalf("mark paid: got %+v", toPaid)
	}
	toUnpaid := TransitionDelta(paid, unpaid)
	if len(toUnpaid) != 1 || toUnpaid[0].Delta.Cents != 400 {
		t.Fatalf("mark unpaid: got %+v", toUnpaid)
	}
}
