package loans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/internal/history"
	"github.com/calebmorton/shelfline-backend/internal/members"
	"github.com/calebmorton/shelfline-backend/internal/notify"
	"github.com/calebmorton/shelfline-backend/internal/policy"
	"github.com/calebmorton/shelfline-backend/internal/reservations"
	"github.com/calebmorton/shelfline-backend/internal/stock"
	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db       *gorm.DB
	engine   *Engine
	repo     Repository
	resvRepo reservations.Repository
}

func testPolicy() policy.LoanPolicy {
	return policy.LoanPolicy{
		MaxActiveLoansPerMember: 2,
		LoanDurationDays:        14,
		LateFeePerDay:           decimal.RequireFromString("0.50"),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:loans_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Member{},
		&models.StockRecord{},
		&models.Loan{},
		&models.Reservation{},
		&models.HistoryEvent{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test"})
	ledger, err := stock.NewLedger(stock.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	notifier, err := notify.NewService(notify.NewRepository(db))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	audit, err := history.NewService(history.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	directory, err := members.NewDirectory(db)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	resvRepo := reservations.NewRepository(db)
	handoff, err := reservations.NewHandoff(resvRepo, ledger, notifier, audit, logg)
	if err != nil {
		t.Fatalf("new handoff: %v", err)
	}
	repo := NewRepository(db)
	engine, err := NewEngine(repo, ledger, directory, handoff, testPolicy(), audit, gormRunner{db: db}, logg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &fixture{db: db, engine: engine, repo: repo, resvRepo: resvRepo}
}

func (f *fixture) seedMember(t *testing.T) uuid.UUID {
	t.Helper()
	member := models.Member{ID: uuid.New(), Email: uuid.NewString() + "@example.com", FullName: "Test Member", IsActive: true}
	if err := f.db.Create(&member).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return member.ID
}

func (f *fixture) seedStock(t *testing.T, titleID uuid.UUID, quantity int) uuid.UUID {
	t.Helper()
	record := models.StockRecord{ID: uuid.New(), TitleID: titleID, Quantity: quantity}
	if err := f.db.Create(&record).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return record.ID
}

func (f *fixture) stockQuantity(t *testing.T, titleID uuid.UUID) int {
	t.Helper()
	var record models.StockRecord
	if err := f.db.First(&record, "title_id = ?", titleID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return record.Quantity
}

func TestCreateLoanClaimsCopy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	titleID := uuid.New()
	recordID := f.seedStock(t, titleID, 1)

	loan, err := f.engine.Create(ctx, memberID, titleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if loan.StockRecordID != recordID {
		t.Fatalf("expected loan to reference the stock record %s, got %s", recordID, loan.StockRecordID)
	}
	wantDue := loan.LoanDate.AddDate(0, 0, 14)
	if !loan.DueDate.Equal(wantDue) {
		t.Fatalf("expected due date %s, got %s", wantDue, loan.DueDate)
	}
	if f.stockQuantity(t, titleID) != 0 {
		t.Fatal("lending must consume a copy")
	}
}

func TestCreateLoanRejectsUnknownMember(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	titleID := uuid.New()
	f.seedStock(t, titleID, 1)

	_, err := f.engine.Create(context.Background(), uuid.New(), titleID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateLoanRejectsUnstockedTitle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	memberID := f.seedMember(t)

	_, err := f.engine.Create(context.Background(), memberID, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateLoanRejectsWhenNoCopiesFree(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	memberID := f.seedMember(t)
	titleID := uuid.New()
	f.seedStock(t, titleID, 0)

	_, err := f.engine.Create(context.Background(), memberID, titleID)
	if !pkgerrors.HasCode(err, pkgerrors.CodePolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if f.stockQuantity(t, titleID) != 0 {
		t.Fatal("rejected loan must not mutate stock")
	}
}

func TestCreateLoanEnforcesActiveLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)

	for i := 0; i < 2; i++ {
		titleID := uuid.New()
		f.seedStock(t, titleID, 1)
		if _, err := f.engine.Create(ctx, memberID, titleID); err != nil {
			t.Fatalf("loan %d: %v", i, err)
		}
	}

	titleID := uuid.New()
	f.seedStock(t, titleID, 1)
	_, err := f.engine.Create(ctx, memberID, titleID)
	if !pkgerrors.HasCode(err, pkgerrors.CodePolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if f.stockQuantity(t, titleID) != 1 {
		t.Fatal("limit rejection must leave stock untouched")
	}
}

func TestCreateLoanConsumesHeldReservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	titleID := uuid.New()
	recordID := f.seedStock(t, titleID, 0)

	availableAt := time.Now().UTC()
	held := models.Reservation{
		ID:                uuid.New(),
		TitleID:           titleID,
		MemberID:          memberID,
		Status:            enums.ReservationStatusAvailable,
		AssignedStockUnit: &recordID,
		AvailableAt:       &availableAt,
		CreatedAt:         availableAt.Add(-time.Hour),
	}
	if err := f.db.Create(&held).Error; err != nil {
		t.Fatalf("seed held reservation: %v", err)
	}

	loan, err := f.engine.Create(ctx, memberID, titleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if loan.StockRecordID != recordID {
		t.Fatal("loan must reuse the reservation's held unit")
	}
	if f.stockQuantity(t, titleID) != 0 {
		t.Fatal("picking up a hold must not decrement stock again")
	}
	stored, err := f.resvRepo.FindByID(ctx, held.ID)
	if err != nil {
		t.Fatalf("reload reservation: %v", err)
	}
	if stored.Status != enums.ReservationStatusCompleted {
		t.Fatalf("expected reservation completed, got %s", stored.Status)
	}
}

func TestReturnOnTimeNoFine(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	titleID := uuid.New()
	f.seedStock(t, titleID, 1)

	loan, err := f.engine.Create(ctx, memberID, titleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := f.engine.Return(ctx, loan.ID)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if !result.Fine.IsZero() {
		t.Fatalf("expected no fine, got %s", result.Fine)
	}
	if result.ReservationPromoted {
		t.Fatal("no reservation should be promoted for an empty queue")
	}
	if f.stockQuantity(t, titleID) != 1 {
		t.Fatal("return must restore the copy")
	}
}

func TestReturnLateChargesPerDay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	titleID := uuid.New()
	f.seedStock(t, titleID, 1)

	loan, err := f.engine.Create(ctx, memberID, titleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.engine.now = func() time.Time { return loan.DueDate.AddDate(0, 0, 3) }

	result, err := f.engine.Return(ctx, loan.ID)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	want := decimal.RequireFromString("1.50")
	if !result.Fine.Equal(want) {
		t.Fatalf("expected fine %s, got %s", want, result.Fine)
	}
	stored, err := f.repo.FindByID(ctx, loan.ID)
	if err != nil {
		t.Fatalf("reload loan: %v", err)
	}
	if !stored.Fine.Equal(want) {
		t.Fatalf("expected persisted fine %s, got %s", want, stored.Fine)
	}
}

func TestReturnRejectsAlreadyReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	titleID := uuid.New()
	f.seedStock(t, titleID, 1)

	loan, err := f.engine.Create(ctx, memberID, titleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.Return(ctx, loan.ID); err != nil {
		t.Fatalf("first return: %v", err)
	}

	_, err = f.engine.Return(ctx, loan.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodePolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if f.stockQuantity(t, titleID) != 1 {
		t.Fatal("double return must not inflate stock")
	}
}

func TestReturnUnknownLoan(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.engine.Return(context.Background(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReturnPromotesOldestReservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	borrower := f.seedMember(t)
	waiter := f.seedMember(t)
	titleID := uuid.New()
	f.seedStock(t, titleID, 1)

	loan, err := f.engine.Create(ctx, borrower, titleID)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	waiting := models.Reservation{
		ID:        uuid.New(),
		TitleID:   titleID,
		MemberID:  waiter,
		Status:    enums.ReservationStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.db.Create(&waiting).Error; err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	result, err := f.engine.Return(ctx, loan.ID)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if !result.ReservationPromoted {
		t.Fatal("return must promote the waiting reservation")
	}
	stored, err := f.resvRepo.FindByID(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("reload reservation: %v", err)
	}
	if stored.Status != enums.ReservationStatusAvailable {
		t.Fatalf("expected available, got %s", stored.Status)
	}
	if f.stockQuantity(t, titleID) != 0 {
		t.Fatal("the freed copy must be held for the promoted reservation")
	}
}

func TestAdminUpdateChangesDueDateOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	titleID := uuid.New()
	f.seedStock(t, titleID, 1)

	loan, err := f.engine.Create(ctx, memberID, titleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newDue := loan.DueDate.AddDate(0, 0, 7)
	updated, err := f.engine.AdminUpdate(ctx, loan.ID, UpdateInput{DueDate: newDue})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if !updated.DueDate.Equal(newDue) {
		t.Fatalf("expected due date %s, got %s", newDue, updated.DueDate)
	}
	if f.stockQuantity(t, titleID) != 0 {
		t.Fatal("admin corrections must not touch stock")
	}
}

func TestAdminUpdateRequiresDueDate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.engine.AdminUpdate(context.Background(), uuid.New(), UpdateInput{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdminDeleteLeavesStockAlone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	memberID := f.seedMember(t)
	titleID := uuid.New()
	f.seedStock(t, titleID, 1)

	loan, err := f.engine.Create(ctx, memberID, titleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.AdminDelete(ctx, loan.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := f.repo.FindByID(ctx, loan.ID); err == nil {
		t.Fatal("expected record gone")
	}
	if f.stockQuantity(t, titleID) != 0 {
		t.Fatal("deleting the record is not a return; stock stays as-is")
	}
}
