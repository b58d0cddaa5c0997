package loans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
)

func (f *fixture) seedLoan(t *testing.T, memberID uuid.UUID, dueDate time.Time, returned *time.Time) models.Loan {
	t.Helper()
	loan := models.Loan{
		ID:            uuid.New(),
		TitleID:       uuid.New(),
		MemberID:      memberID,
		StockRecordID: uuid.New(),
		LoanDate:      dueDate.AddDate(0, 0, -14),
		DueDate:       dueDate,
		ReturnDate:    returned,
		Fine:          decimal.Zero,
	}
	if err := f.db.Create(&loan).Error; err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return loan
}

func TestCountActiveByMemberIgnoresReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	now := time.Now().UTC()

	f.seedLoan(t, memberID, now.AddDate(0, 0, 7), nil)
	f.seedLoan(t, memberID, now.AddDate(0, 0, 9), nil)
	returned := now.Add(-time.Hour)
	f.seedLoan(t, memberID, now.AddDate(0, 0, -2), &returned)

	count, err := f.repo.CountActiveByMember(ctx, memberID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 active loans, got %d", count)
	}
}

func TestListActiveDueBetween(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	now := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)

	// The window is inclusive at both ends: a loan due at the sweep instant
	// still gets a due-soon notice rather than falling between the passes.
	dueNow := f.seedLoan(t, memberID, now, nil)
	dueSoon := f.seedLoan(t, memberID, now.Add(6*time.Hour), nil)
	f.seedLoan(t, memberID, now.Add(48*time.Hour), nil)
	f.seedLoan(t, memberID, now.Add(-time.Hour), nil)
	returned := now
	f.seedLoan(t, memberID, now.Add(2*time.Hour), &returned)

	loans, err := f.repo.ListActiveDueBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(loans) != 2 {
		t.Fatalf("expected 2 loans in the window, got %d", len(loans))
	}
	if loans[0].ID != dueNow.ID {
		t.Fatalf("expected loan due at the window start first, got %s", loans[0].ID)
	}
	if loans[1].ID != dueSoon.ID {
		t.Fatalf("expected loan %s, got %s", dueSoon.ID, loans[1].ID)
	}
}

func TestListActiveOverdue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	now := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)

	overdue := f.seedLoan(t, memberID, now.AddDate(0, 0, -3), nil)
	f.seedLoan(t, memberID, now.Add(time.Hour), nil)
	returned := now
	f.seedLoan(t, memberID, now.AddDate(0, 0, -5), &returned)

	loans, err := f.repo.ListActiveOverdue(ctx, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(loans) != 1 {
		t.Fatalf("expected 1 overdue loan, got %d", len(loans))
	}
	if loans[0].ID != overdue.ID {
		t.Fatalf("expected loan %s, got %s", overdue.ID, loans[0].ID)
	}
}
