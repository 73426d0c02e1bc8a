//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"seat-marketplace/internal/domain"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func mustMoney(t *testing.T, amount, currency string) Money {
	t.Helper()
	m, err := ParseMoney(amount, currency)
	if err != nil {
		t.Fatalf("ParseMoney(%q): %v", amount, err)
	}
	return m
}

func newTestSubscription(t *testing.T, slots int) *Subscription {
	t.Helper()
	s, err := NewSubscription("sub-1", "grp-1", "netflix", slots, mustMoney(t, "100.00", "PLN"), testNow)
	if err != nil {
		t.Fatalf("NewSubscription: %v", err)
	}
	return s
}

func expectRule(t *testing.T, err error, code string) {
	t.Helper()
	if !errors.Is(err, domain.ErrBusinessRule) {
		t.Fatalf("expected business rule error, got %v", err)
	}
	if got := domain.RuleCode(err); got != code {
		t.Fatalf("expected rule code %q, got %q", code, got)
	}
}

// --- Money ---

func TestMoney(t *testing.T) {
	t.Run("should parse and render two decimals", func(t *testing.T) {
		cases := map[string]string{"100": "100.00", "100.5": "100.50", "0.07": "0.07", "-3.10": "-3.10"}
		for in, want := range cases {
			m := mustMoney(t, in, "pln")
			if m.Decimal() != want {
				t.Errorf("ParseMoney(%q).Decimal() = %q, want %q", in, m.Decimal(), want)
			}
			if m.Currency() != "PLN" {
				t.Errorf("expected currency to be normalized to PLN, got %s", m.Currency())
			}
		}
	})

	t.Run("should reject more than two decimals", func(t *testing.T) {
		_, err := ParseMoney("1.005", "PLN")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should reject a malformed currency", func(t *testing.T) {
		if _, err := NewMoney(100, "PLNX"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should refuse arithmetic across currencies", func(t *testing.T) {
		a := mustMoney(t, "1.00", "PLN")
		b := mustMoney(t, "1.00", "EUR")
		if _, err := a.Add(b); !errors.Is(err, domain.ErrCurrencyMismatch) {
			t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
		}
		if _, err := a.Sub(b); !errors.Is(err, domain.ErrCurrencyMismatch) {
			t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
		}
	})

	t.Run("should round percentages half away from zero", func(t *testing.T) {
		m := mustMoney(t, "10.10", "PLN")
		if got := m.Percent(0.05).Decimal(); got != "0.51" {
			t.Errorf("expected 0.51, got %s", got)
		}

		cases := []struct {
			amount string
			rate   float64
			want   string
		}{
			{"1.00", 0.145, "0.15"},
			{"-1.00", 0.145, "-0.15"},
			{"0.10", 0.05, "0.01"},
			{"1.00", 0.144, "0.14"},
			{"1.15", 0.1, "0.12"},
			{"100.00", 0, "0.00"},
		}
		for _, c := range cases {
			got := mustMoney(t, c.amount, "PLN").Percent(c.rate)
			if got.Decimal() != c.want || got.Currency() != "PLN" {
				t.Errorf("%s * %v: expected %s PLN, got %s", c.amount, c.rate, c.want, got)
			}
		}
	})
}

// --- Subscription ---

func TestSubscriptionSlots(t *testing.T) {
	t.Run("should reserve and release seats", func(t *testing.T) {
		s := newTestSubscription(t, 3)
		events, err := s.ReserveSlots(2, "buyer-1", testNow)
		if err != nil {
			t.Fatalf("ReserveSlots: %v", err)
		}
		if s.SlotsAvailable != 1 {
			t.Errorf("expected 1 slot available, got %d", s.SlotsAvailable)
		}
		if len(events) != 1 || events[0].Type != EventSlotsPurchased {
			t.Fatalf("expected one slots_purchased event, got %+v", events)
		}
		if events[0].Data[DataBuyerID] != "buyer-1" || events[0].Data[DataCount] != "2" {
			t.Errorf("unexpected event data: %v", events[0].Data)
		}
		if _, err := s.ReleaseSlots(2, testNow); err != nil {
			t.Fatalf("ReleaseSlots: %v", err)
		}
		if s.SlotsAvailable != 3 {
			t.Errorf("expected 3 slots available, got %d", s.SlotsAvailable)
		}
	})

	t.Run("should fail with insufficient slots and leave the count untouched", func(t *testing.T) {
		s := newTestSubscription(t, 1)
		_, err := s.ReserveSlots(2, "buyer-1", testNow)
		expectRule(t, err, domain.RuleInsufficientSlots)
		if s.SlotsAvailable != 1 {
			t.Errorf("expected 1 slot available, got %d", s.SlotsAvailable)
		}
	})

	t.Run("should refuse reservations on an inactive subscription", func(t *testing.T) {
		s := newTestSubscription(t, 2)
		s.Status = SubscriptionStatusPaused
		_, err := s.ReserveSlots(1, "buyer-1", testNow)
		expectRule(t, err, domain.RuleSubscriptionNotActive)
		if s.IsPurchasable() {
			t.Error("paused subscription must not be purchasable")
		}
	})

	t.Run("should reject non-positive counts", func(t *testing.T) {
		s := newTestSubscription(t, 2)
		_, err := s.ReserveSlots(0, "buyer-1", testNow)
		expectRule(t, err, domain.RuleInvalidSlotCount)
		_, err = s.ReleaseSlots(-1, testNow)
		expectRule(t, err, domain.RuleInvalidSlotCount)
	})

	t.Run("should never release above the total", func(t *testing.T) {
		s := newTestSubscription(t, 2)
		_, err := s.ReleaseSlots(1, testNow)
		expectRule(t, err, domain.RuleSlotsExceedTotal)
	})

	t.Run("should grow capacity with AddSlots", func(t *testing.T) {
		s := newTestSubscription(t, 2)
		if _, err := s.ReserveSlots(2, "buyer-1", testNow); err != nil {
			t.Fatal(err)
		}
		if _, err := s.AddSlots(3, testNow); err != nil {
			t.Fatal(err)
		}
		if s.SlotsTotal != 5 || s.SlotsAvailable != 3 {
			t.Errorf("expected 5/3, got %d/%d", s.SlotsTotal, s.SlotsAvailable)
		}
	})
}

func TestSubscriptionUpdate(t *testing.T) {
	t.Run("should apply all changes", func(t *testing.T) {
		s := newTestSubscription(t, 4)
		paused := SubscriptionStatusPaused
		price := mustMoney(t, "80.00", "PLN")
		avail := 2
		if _, err := s.Update(SubscriptionChanges{Status: &paused, PricePerSlot: &price, SlotsAvailable: &avail}, testNow); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if s.Status != paused || !s.PricePerSlot.Equal(price) || s.SlotsAvailable != 2 {
			t.Errorf("changes not applied: %+v", s)
		}
	})

	t.Run("should apply nothing when one change is invalid", func(t *testing.T) {
		s := newTestSubscription(t, 4)
		paused := SubscriptionStatusPaused
		avail := 9
		_, err := s.Update(SubscriptionChanges{Status: &paused, SlotsAvailable: &avail}, testNow)
		expectRule(t, err, domain.RuleSlotsExceedTotal)
		if s.Status != SubscriptionStatusActive || s.SlotsAvailable != 4 {
			t.Errorf("expected subscription untouched, got %+v", s)
		}
	})
}

// --- Purchase ---

func TestPurchaseLifecycle(t *testing.T) {
	newPurchase := func(t *testing.T) *Purchase {
		p, events, err := NewPurchase("pur-1", "buyer-1", "sub-1", testNow)
		if err != nil {
			t.Fatalf("NewPurchase: %v", err)
		}
		if len(events) != 1 || events[0].Type != EventPurchaseCreated {
			t.Fatalf("expected purchase.created, got %+v", events)
		}
		return p
	}

	t.Run("should complete and provide access", func(t *testing.T) {
		p := newPurchase(t)
		if _, err := p.Complete(testNow); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if !p.Status.IsCompleted() || !p.AccessProvided || p.AccessProvidedAt == nil {
			t.Errorf("unexpected purchase state: %+v", p)
		}
	})

	t.Run("should refuse completing twice", func(t *testing.T) {
		p := newPurchase(t)
		_, _ = p.Complete(testNow)
		_, err := p.Complete(testNow)
		expectRule(t, err, domain.RuleAlreadyCompleted)
	})

	t.Run("should refuse completing a cancelled purchase", func(t *testing.T) {
		p := newPurchase(t)
		_, _ = p.Cancel(testNow)
		_, err := p.Complete(testNow)
		expectRule(t, err, domain.RuleInvalidTransition)
	})

	t.Run("should require access before confirmation", func(t *testing.T) {
		p := newPurchase(t)
		_, err := p.ConfirmAccess(testNow)
		expectRule(t, err, domain.RuleAccessNotProvided)
		_, _ = p.Complete(testNow)
		events, err := p.ConfirmAccess(testNow)
		if err != nil || len(events) != 1 {
			t.Fatalf("expected confirmation event, got %v %v", events, err)
		}
		events, err = p.ConfirmAccess(testNow)
		if err != nil || len(events) != 0 {
			t.Errorf("expected repeated confirmation to be a no-op, got %v %v", events, err)
		}
	})

	t.Run("should attach a single transaction", func(t *testing.T) {
		p := newPurchase(t)
		if err := p.AttachTransaction("tx-1"); err != nil {
			t.Fatal(err)
		}
		expectRule(t, p.AttachTransaction("tx-2"), domain.RuleTransactionAlreadyAttached)
		if *p.TransactionID != "tx-1" {
			t.Errorf("expected tx-1 to stay attached, got %s", *p.TransactionID)
		}
	})

	t.Run("should keep access flag when marked as problem", func(t *testing.T) {
		p := newPurchase(t)
		_, _ = p.Complete(testNow)
		p.MarkAsProblem(testNow)
		if p.Status != PurchaseStatusProblem || !p.AccessProvided {
			t.Errorf("unexpected state %+v", p)
		}
		if ev := p.MarkAsProblem(testNow); len(ev) != 0 {
			t.Errorf("expected second MarkAsProblem to be silent")
		}
	})
}

// --- Transaction ---

func newTestTransaction(t *testing.T, amount string) *Transaction {
	t.Helper()
	tx, _, err := NewTransaction(TransactionParams{
		ID:              "tx-1",
		BuyerID:         "buyer-1",
		SellerID:        "seller-1",
		SubscriptionID:  "sub-1",
		PurchaseID:      "pur-1",
		Amount:          mustMoney(t, amount, "PLN"),
		PaymentMethod:   PaymentMethodBlik,
		PaymentProvider: "sandbox",
	}, 0.05, testNow)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	return tx
}

func TestNewTransaction(t *testing.T) {
	t.Run("should split 100.00 PLN into 5.00 fee and 95.00 seller share", func(t *testing.T) {
		tx := newTestTransaction(t, "100.00")
		if tx.PlatformFee.Decimal() != "5.00" {
			t.Errorf("expected fee 5.00, got %s", tx.PlatformFee.Decimal())
		}
		if tx.SellerAmount.Decimal() != "95.00" {
			t.Errorf("expected seller amount 95.00, got %s", tx.SellerAmount.Decimal())
		}
		if !tx.ValidateAmounts() {
			t.Error("expected amounts to balance")
		}
		if tx.Status != TransactionStatusPending {
			t.Errorf("expected pending, got %s", tx.Status)
		}
	})

	t.Run("should keep the split exact for odd amounts", func(t *testing.T) {
		for _, amount := range []string{"0.01", "0.19", "33.33", "99.99", "12345.67"} {
			tx := newTestTransaction(t, amount)
			if !tx.ValidateAmounts() {
				t.Errorf("amounts do not balance for %s: %s + %s", amount, tx.PlatformFee, tx.SellerAmount)
			}
		}
	})

	t.Run("should fail with invalid arguments", func(t *testing.T) {
		zero := mustMoney(t, "0", "PLN")
		cases := []struct {
			name string
			p    TransactionParams
			fee  float64
		}{
			{"zero amount", TransactionParams{ID: "t", BuyerID: "b", SellerID: "s", SubscriptionID: "x", PurchaseID: "p", Amount: zero, PaymentMethod: PaymentMethodCard}, 0.05},
			{"unknown method", TransactionParams{ID: "t", BuyerID: "b", SellerID: "s", SubscriptionID: "x", PurchaseID: "p", Amount: mustMoney(t, "1", "PLN"), PaymentMethod: "cash"}, 0.05},
			{"missing seller", TransactionParams{ID: "t", BuyerID: "b", SubscriptionID: "x", PurchaseID: "p", Amount: mustMoney(t, "1", "PLN"), PaymentMethod: PaymentMethodCard}, 0.05},
			{"fee out of range", TransactionParams{ID: "t", BuyerID: "b", SellerID: "s", SubscriptionID: "x", PurchaseID: "p", Amount: mustMoney(t, "1", "PLN"), PaymentMethod: PaymentMethodCard}, 1},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				tx, _, err := NewTransaction(tc.p, tc.fee, testNow)
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				if tx != nil {
					t.Error("expected nil transaction on error")
				}
			})
		}
	})
}

func TestTransactionTransitions(t *testing.T) {
	t.Run("should complete once and ignore repeated confirmation", func(t *testing.T) {
		tx := newTestTransaction(t, "10.00")
		events, err := tx.Complete("pay-1", testNow)
		if err != nil || len(events) != 1 {
			t.Fatalf("expected one event, got %v %v", events, err)
		}
		events, err = tx.Complete("pay-2", testNow)
		if err != nil || len(events) != 0 {
			t.Fatalf("expected idempotent completion, got %v %v", events, err)
		}
		if *tx.PaymentID != "pay-1" {
			t.Errorf("expected payment id to be kept, got %s", *tx.PaymentID)
		}
	})

	t.Run("should refuse completing a failed transaction", func(t *testing.T) {
		tx := newTestTransaction(t, "10.00")
		if _, err := tx.Fail("declined", testNow); err != nil {
			t.Fatal(err)
		}
		_, err := tx.Complete("pay-1", testNow)
		expectRule(t, err, domain.RuleTransactionFailed)
	})

	t.Run("should refuse failing a completed transaction", func(t *testing.T) {
		tx := newTestTransaction(t, "10.00")
		_, _ = tx.Complete("pay-1", testNow)
		_, err := tx.Fail("late decline", testNow)
		expectRule(t, err, domain.RuleInvalidTransition)
	})

	t.Run("should refund and stamp the time", func(t *testing.T) {
		tx := newTestTransaction(t, "10.00")
		_, _ = tx.Complete("pay-1", testNow)
		events := tx.Refund("buyer request", testNow)
		if !tx.Status.IsRefunded() || tx.RefundedAt == nil {
			t.Errorf("unexpected state %+v", tx)
		}
		if len(events) != 1 || events[0].Data[DataReason] != "buyer request" {
			t.Errorf("unexpected events %+v", events)
		}
	})
}

// --- AccessToken ---

func TestAccessToken(t *testing.T) {
	newToken := func(t *testing.T) *AccessToken {
		tok, err := NewAccessToken("tok-1", "pur-1", "hash", time.Hour, testNow)
		if err != nil {
			t.Fatalf("NewAccessToken: %v", err)
		}
		return tok
	}

	t.Run("should be usable exactly once", func(t *testing.T) {
		tok := newToken(t)
		if err := tok.Check(testNow); err != nil {
			t.Fatalf("expected active token, got %v", err)
		}
		if err := tok.MarkUsed(testNow, "10.0.0.1", "curl"); err != nil {
			t.Fatalf("MarkUsed: %v", err)
		}
		if *tok.IPAddress != "10.0.0.1" || *tok.UserAgent != "curl" {
			t.Errorf("expected usage metadata to be recorded")
		}
		expectRule(t, tok.MarkUsed(testNow, "", ""), domain.RuleTokenUsed)
		if domain.TokenRejection(tok.Check(testNow)) != domain.TokenUsed {
			t.Errorf("expected used rejection")
		}
	})

	t.Run("should expire strictly after ExpiresAt", func(t *testing.T) {
		tok := newToken(t)
		if tok.IsExpired(tok.ExpiresAt) {
			t.Error("token must still be valid at ExpiresAt")
		}
		later := tok.ExpiresAt.Add(time.Second)
		expectRule(t, tok.MarkUsed(later, "", ""), domain.RuleTokenExpired)
	})

	t.Run("should report expiry before use", func(t *testing.T) {
		tok := newToken(t)
		_ = tok.MarkUsed(testNow, "", "")
		later := tok.ExpiresAt.Add(time.Minute)
		if got := domain.TokenRejection(tok.Check(later)); got != domain.TokenExpired {
			t.Errorf("expected expired, got %q", got)
		}
	})
}

// --- Dispute ---

func TestDispute(t *testing.T) {
	params := DisputeParams{
		ID:                 "dis-1",
		ReporterID:         "buyer-1",
		RespondentID:       "seller-1",
		ReportedEntityType: EntityPurchase,
		ReportedEntityID:   "pur-1",
		SubscriptionID:     "sub-1",
		TransactionID:      "tx-1",
		DisputeType:        DisputeTypeAccess,
		Description:        "The credentials do not work",
		EvidenceRequired:   true,
		ResolutionWindow:   72 * time.Hour,
	}

	t.Run("should open with a deadline", func(t *testing.T) {
		d, events, err := NewDispute(params, testNow)
		if err != nil {
			t.Fatalf("NewDispute: %v", err)
		}
		if !d.ResolutionDeadline.Equal(testNow.Add(72 * time.Hour)) {
			t.Errorf("unexpected deadline %v", d.ResolutionDeadline)
		}
		if len(events) != 1 || events[0].Data[DataPurchaseID] != "pur-1" {
			t.Errorf("unexpected events %+v", events)
		}
		if d.IsOverdue(testNow) || !d.IsOverdue(testNow.Add(73*time.Hour)) {
			t.Error("unexpected overdue evaluation")
		}
	})

	t.Run("should reject a short description", func(t *testing.T) {
		p := params
		p.Description = "broken"
		if _, _, err := NewDispute(p, testNow); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should require notes to resolve", func(t *testing.T) {
		d, _, _ := NewDispute(params, testNow)
		_, err := d.Resolve("  ", testNow)
		expectRule(t, err, domain.RuleResolutionNotesRequired)
		if _, err := d.Resolve("seller rotated the password", testNow); err != nil {
			t.Fatal(err)
		}
		_, err = d.Close(testNow)
		expectRule(t, err, domain.RuleDisputeNotOpen)
		expectRule(t, d.AddEvidence("buyer-1", "screenshot", testNow), domain.RuleDisputeNotOpen)
	})
}
