package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/models/reports"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLTestContainer(t)
	t.Cleanup(func() { _ = dockerRemoveForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "distro_test")
	t.Setenv("GST_HOME_STATE", "27")

	config.ConnectDatabaseWithRetry()
	if err := models.MigrateDatabase(config.GetDB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	ctx = utils.SetActorIdInContext(ctx, 1)
	ctx = utils.SetActorNameInContext(ctx, "Test")
	return ctx
}

func mustCreateFY(t *testing.T, ctx context.Context, code string, startYear int, active bool) *models.FinancialYear {
	t.Helper()
	fy, err := models.CreateFinancialYear(ctx, &models.NewFinancialYear{
		Code:      code,
		StartDate: time.Date(startYear, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(startYear+1, 3, 31, 0, 0, 0, 0, time.UTC),
		IsActive:  active,
	})
	if err != nil {
		t.Fatalf("CreateFinancialYear(%s): %v", code, err)
	}
	return fy
}

func mustCreateParty(t *testing.T, ctx context.Context, name string, kind models.PartyKind, stateCode string) *models.Party {
	t.Helper()
	party, err := models.CreateParty(ctx, &models.NewParty{
		Name:      name,
		Kind:      kind,
		StateCode: stateCode,
	})
	if err != nil {
		t.Fatalf("CreateParty(%s): %v", name, err)
	}
	return party
}

func mustCreateProduct(t *testing.T, ctx context.Context, name, gstRate string) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:    name,
		HsnCode: "30049099",
		GstRate: d(gstRate),
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", name, err)
	}
	return product
}

// receiveStock books a purchase invoice so a batch with quantity exists.
func receiveStock(t *testing.T, ctx context.Context, supplier *models.Party, product *models.Product, batchNumber, qty, rate string, date time.Time) *models.PurchaseInvoice {
	t.Helper()
	invoice, err := models.CreatePurchaseInvoice(ctx, &models.NewPurchaseInvoice{
		PartyId:     supplier.ID,
		InvoiceDate: date,
		Details: []models.NewPurchaseInvoiceDetail{{
			ProductId:   product.ID,
			BatchNumber: batchNumber,
			Qty:         d(qty),
			Rate:        d(rate),
		}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseInvoice: %v", err)
	}
	return invoice
}

func batchQty(t *testing.T, ctx context.Context, batchId int) decimal.Decimal {
	t.Helper()
	qty, err := models.BatchStock(ctx, batchId)
	if err != nil {
		t.Fatalf("BatchStock(%d): %v", batchId, err)
	}
	return qty
}

func TestInvoiceVoidRestoresStockAndBalance(t *testing.T) {
	ctx := setupIntegration(t)
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	mustCreateFY(t, ctx, "2025-26", 2025, true)
	dealer := mustCreateParty(t, ctx, "Shwe Distribution", models.PartyKindDealer, "27")
	supplier := mustCreateParty(t, ctx, "Golden Pharma", models.PartyKindSupplier, "27")
	product := mustCreateProduct(t, ctx, "Paracetamol 500mg", "18")

	purchase := receiveStock(t, ctx, supplier, product, "B-001", "100", "50.00", date)
	batchId := purchase.Details[0].BatchId

	if got := batchQty(t, ctx, batchId); !got.Equal(d("100")) {
		t.Fatalf("batch qty after receipt = %s, want 100", got)
	}

	invoice, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		PartyId:     dealer.ID,
		InvoiceDate: date,
		Details: []models.NewSalesInvoiceDetail{{
			ProductId: product.ID,
			BatchId:   batchId,
			Qty:       d("40"),
			Rate:      d("80.00"),
		}},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}
	// 40 x 80.00 = 3200.00 taxable, 18% intra-state.
	if !invoice.InvoiceTotalAmount.Equal(d("3776.00")) {
		t.Errorf("invoice total = %s, want 3776.00", invoice.InvoiceTotalAmount)
	}
	if got := batchQty(t, ctx, batchId); !got.Equal(d("60")) {
		t.Fatalf("batch qty after sale = %s, want 60", got)
	}
	balance, err := models.PartyBalance(ctx, dealer.ID, date)
	if err != nil {
		t.Fatalf("PartyBalance: %v", err)
	}
	if !balance.Equal(invoice.InvoiceTotalAmount) {
		t.Errorf("dealer balance = %s, want %s", balance, invoice.InvoiceTotalAmount)
	}

	if err := models.VoidDocument(ctx, models.DocumentKindSalesInvoice, invoice.ID, "booking error"); err != nil {
		t.Fatalf("VoidDocument: %v", err)
	}
	if got := batchQty(t, ctx, batchId); !got.Equal(d("100")) {
		t.Errorf("batch qty after void = %s, want 100", got)
	}
	balance, err = models.PartyBalance(ctx, dealer.ID, time.Now())
	if err != nil {
		t.Fatalf("PartyBalance after void: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("dealer balance after void = %s, want 0", balance)
	}

	// Second void must fail cleanly and change nothing.
	err = models.VoidDocument(ctx, models.DocumentKindSalesInvoice, invoice.ID, "again")
	if !errors.Is(err, utils.ErrAlreadyVoid) {
		t.Fatalf("second void error = %v, want ErrAlreadyVoid", err)
	}
	if got := batchQty(t, ctx, batchId); !got.Equal(d("100")) {
		t.Errorf("batch qty after failed second void = %s, want 100", got)
	}
}

func TestSalesInvoiceRejectsInsufficientStock(t *testing.T) {
	ctx := setupIntegration(t)
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mustCreateFY(t, ctx, "2025-26", 2025, true)
	dealer := mustCreateParty(t, ctx, "Aung Traders", models.PartyKindDealer, "27")
	supplier := mustCreateParty(t, ctx, "Delta Supply", models.PartyKindSupplier, "29")
	product := mustCreateProduct(t, ctx, "Amoxicillin 250mg", "12")

	purchase := receiveStock(t, ctx, supplier, product, "B-010", "10", "30.00", date)
	batchId := purchase.Details[0].BatchId

	_, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		PartyId:     dealer.ID,
		InvoiceDate: date,
		Details: []models.NewSalesInvoiceDetail{{
			ProductId: product.ID,
			BatchId:   batchId,
			Qty:       d("11"),
			Rate:      d("45.00"),
		}},
	})
	if !errors.Is(err, utils.ErrInsufficientStock) {
		t.Fatalf("oversell error = %v, want ErrInsufficientStock", err)
	}
	// Nothing may have committed.
	if got := batchQty(t, ctx, batchId); !got.Equal(d("10")) {
		t.Errorf("batch qty after rejected sale = %s, want 10", got)
	}
	balance, err := models.PartyBalance(ctx, dealer.ID, time.Now())
	if err != nil {
		t.Fatalf("PartyBalance: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("dealer balance after rejected sale = %s, want 0", balance)
	}
}

func TestPaymentAllocatesFIFO(t *testing.T) {
	ctx := setupIntegration(t)

	mustCreateFY(t, ctx, "2025-26", 2025, true)
	dealer := mustCreateParty(t, ctx, "Mandalay Retail", models.PartyKindDealer, "27")
	supplier := mustCreateParty(t, ctx, "Metro Supply", models.PartyKindSupplier, "27")
	// Zero-rated product keeps invoice totals equal to qty x rate.
	product := mustCreateProduct(t, ctx, "Surgical Cotton", "0")

	older := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	purchase := receiveStock(t, ctx, supplier, product, "B-100", "1000", "10.00", older)
	batchId := purchase.Details[0].BatchId

	makeInvoice := func(date time.Time, qty string) *models.SalesInvoice {
		inv, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
			PartyId:     dealer.ID,
			InvoiceDate: date,
			Details: []models.NewSalesInvoiceDetail{{
				ProductId: product.ID,
				BatchId:   batchId,
				Qty:       d(qty),
				Rate:      d("100.00"),
			}},
		})
		if err != nil {
			t.Fatalf("CreateSalesInvoice: %v", err)
		}
		return inv
	}
	inv1 := makeInvoice(older, "30") // 3000.00
	inv2 := makeInvoice(newer, "40") // 4000.00

	payment, err := models.CreatePayment(ctx, &models.NewPayment{
		PartyId:     dealer.ID,
		PaymentDate: newer,
		Amount:      d("5000.00"),
		Mode:        "Bank",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if !payment.AdjustedAmount.Equal(d("5000.00")) || !payment.BalanceAmount.IsZero() {
		t.Errorf("payment adjusted/balance = %s/%s, want 5000.00/0", payment.AdjustedAmount, payment.BalanceAmount)
	}
	if payment.CurrentStatus != models.DocumentStatusAdjusted {
		t.Errorf("payment status = %s, want Adjusted", payment.CurrentStatus)
	}

	got1, err := models.GetSalesInvoice(ctx, inv1.ID)
	if err != nil {
		t.Fatalf("GetSalesInvoice: %v", err)
	}
	if !got1.AmountPaid.Equal(d("3000.00")) || got1.CurrentStatus != models.DocumentStatusPaid {
		t.Errorf("older invoice paid/status = %s/%s, want 3000.00/Paid", got1.AmountPaid, got1.CurrentStatus)
	}
	got2, err := models.GetSalesInvoice(ctx, inv2.ID)
	if err != nil {
		t.Fatalf("GetSalesInvoice: %v", err)
	}
	if !got2.AmountPaid.Equal(d("2000.00")) || got2.CurrentStatus != models.DocumentStatusPartialPaid {
		t.Errorf("newer invoice paid/status = %s/%s, want 2000.00/Partial Paid", got2.AmountPaid, got2.CurrentStatus)
	}

	// Voiding the payment reopens both invoices.
	if err := models.VoidDocument(ctx, models.DocumentKindPayment, payment.ID, "bounced cheque"); err != nil {
		t.Fatalf("void payment: %v", err)
	}
	got1, _ = models.GetSalesInvoice(ctx, inv1.ID)
	got2, _ = models.GetSalesInvoice(ctx, inv2.ID)
	if !got1.AmountPaid.IsZero() || got1.CurrentStatus != models.DocumentStatusIssued {
		t.Errorf("older invoice after payment void = %s/%s, want 0/Issued", got1.AmountPaid, got1.CurrentStatus)
	}
	if !got2.AmountPaid.IsZero() || got2.CurrentStatus != models.DocumentStatusIssued {
		t.Errorf("newer invoice after payment void = %s/%s, want 0/Issued", got2.AmountPaid, got2.CurrentStatus)
	}
}

func TestCloseFinancialYearCarriesForward(t *testing.T) {
	ctx := setupIntegration(t)

	fy1 := mustCreateFY(t, ctx, "2024-25", 2024, true)
	mustCreateFY(t, ctx, "2025-26", 2025, false)
	dealer := mustCreateParty(t, ctx, "Yangon Wholesale", models.PartyKindDealer, "27")
	supplier := mustCreateParty(t, ctx, "Star Supply", models.PartyKindSupplier, "27")
	product := mustCreateProduct(t, ctx, "Gauze Roll", "0")

	date := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	purchase := receiveStock(t, ctx, supplier, product, "B-200", "500", "20.00", date)
	_, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		PartyId:     dealer.ID,
		InvoiceDate: date,
		Details: []models.NewSalesInvoiceDetail{{
			ProductId: product.ID,
			BatchId:   purchase.Details[0].BatchId,
			Qty:       d("120"),
			Rate:      d("100.00"),
		}},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}

	closed, err := models.CloseFinancialYear(ctx, fy1.ID, "year end")
	if err != nil {
		t.Fatalf("CloseFinancialYear: %v", err)
	}
	if !closed.IsClosed || closed.IsActive {
		t.Errorf("closed FY flags = closed:%v active:%v, want closed:true active:false", closed.IsClosed, closed.IsActive)
	}

	var successor models.FinancialYear
	if err := config.GetDB().Where("code = ?", "2025-26").First(&successor).Error; err != nil {
		t.Fatalf("load successor: %v", err)
	}
	balances, err := models.GetOpeningBalances(ctx, successor.ID)
	if err != nil {
		t.Fatalf("GetOpeningBalances: %v", err)
	}
	var dealerOB *models.OpeningBalance
	for _, ob := range balances {
		if ob.PartyId == dealer.ID {
			dealerOB = ob
		}
	}
	if dealerOB == nil {
		t.Fatal("no opening balance carried forward for dealer")
	}
	if !dealerOB.OpeningDebit.Equal(d("12000.00")) || !dealerOB.OpeningCredit.IsZero() {
		t.Errorf("dealer opening = debit %s credit %s, want debit 12000.00 credit 0",
			dealerOB.OpeningDebit, dealerOB.OpeningCredit)
	}

	// A document dated inside the closed year must now be rejected.
	_, err = models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		PartyId:     dealer.ID,
		InvoiceDate: date,
		Details: []models.NewSalesInvoiceDetail{{
			ProductId: product.ID,
			BatchId:   purchase.Details[0].BatchId,
			Qty:       d("1"),
			Rate:      d("100.00"),
		}},
	})
	if err == nil {
		t.Error("invoice dated in a closed year was accepted")
	}
}

func TestCloseFinancialYearWithoutSuccessor(t *testing.T) {
	ctx := setupIntegration(t)

	fy := mustCreateFY(t, ctx, "2025-26", 2025, true)
	_, err := models.CloseFinancialYear(ctx, fy.ID, "premature")
	if !errors.Is(err, utils.ErrNoSuccessorFY) {
		t.Fatalf("close without successor error = %v, want ErrNoSuccessorFY", err)
	}

	// A successor that is itself closed does not count either.
	next := mustCreateFY(t, ctx, "2026-27", 2026, false)
	if err := config.GetDB().Model(&models.FinancialYear{}).
		Where("id = ?", next.ID).Update("is_closed", true).Error; err != nil {
		t.Fatalf("close successor directly: %v", err)
	}
	_, err = models.CloseFinancialYear(ctx, fy.ID, "premature")
	if !errors.Is(err, utils.ErrNoSuccessorFY) {
		t.Fatalf("close with closed successor error = %v, want ErrNoSuccessorFY", err)
	}
}

// Voiding on the closing year's last day must keep the reversal inside that
// year, so the carry-forward nets the voided document to zero.
func TestVoidReversalCountsInClosingYear(t *testing.T) {
	ctx := setupIntegration(t)

	today := utils.TruncateToDate(time.Now())
	fy, err := models.CreateFinancialYear(ctx, &models.NewFinancialYear{
		Code:      "FY-CUR",
		StartDate: today.AddDate(-1, 0, 1),
		EndDate:   today,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("CreateFinancialYear: %v", err)
	}
	_, err = models.CreateFinancialYear(ctx, &models.NewFinancialYear{
		Code:      "FY-NEXT",
		StartDate: today.AddDate(0, 0, 1),
		EndDate:   today.AddDate(1, 0, 0),
	})
	if err != nil {
		t.Fatalf("CreateFinancialYear successor: %v", err)
	}

	dealer := mustCreateParty(t, ctx, "Bago Traders", models.PartyKindDealer, "27")
	supplier := mustCreateParty(t, ctx, "Unity Supply", models.PartyKindSupplier, "27")
	product := mustCreateProduct(t, ctx, "Saline Bottle", "0")

	purchase := receiveStock(t, ctx, supplier, product, "B-300", "100", "20.00", today)
	invoice, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		PartyId:     dealer.ID,
		InvoiceDate: today,
		Details: []models.NewSalesInvoiceDetail{{
			ProductId: product.ID,
			BatchId:   purchase.Details[0].BatchId,
			Qty:       d("50"),
			Rate:      d("100.00"),
		}},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}
	if err := models.VoidDocument(ctx, models.DocumentKindSalesInvoice, invoice.ID, "wrong dealer"); err != nil {
		t.Fatalf("VoidDocument: %v", err)
	}

	if _, err := models.CloseFinancialYear(ctx, fy.ID, "year end"); err != nil {
		t.Fatalf("CloseFinancialYear: %v", err)
	}

	var successor models.FinancialYear
	if err := config.GetDB().Where("code = ?", "FY-NEXT").First(&successor).Error; err != nil {
		t.Fatalf("load successor: %v", err)
	}
	balances, err := models.GetOpeningBalances(ctx, successor.ID)
	if err != nil {
		t.Fatalf("GetOpeningBalances: %v", err)
	}
	for _, ob := range balances {
		if ob.PartyId != dealer.ID {
			continue
		}
		if !ob.OpeningDebit.IsZero() || !ob.OpeningCredit.IsZero() {
			t.Errorf("voided invoice leaked into opening balance: debit %s credit %s, want 0/0",
				ob.OpeningDebit, ob.OpeningCredit)
		}
	}
}

// A credit note shrinks the invoice's open balance the way a payment does,
// so the ledger balance and the aging report total stay equal.
func TestCreditNoteKeepsLedgerAndAgingReconciled(t *testing.T) {
	ctx := setupIntegration(t)

	mustCreateFY(t, ctx, "2025-26", 2025, true)
	dealer := mustCreateParty(t, ctx, "Pathein Retail", models.PartyKindDealer, "27")
	supplier := mustCreateParty(t, ctx, "Crown Supply", models.PartyKindSupplier, "27")
	product := mustCreateProduct(t, ctx, "Bandage Roll", "0")

	early := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	purchase := receiveStock(t, ctx, supplier, product, "B-400", "1000", "10.00", early)
	batchId := purchase.Details[0].BatchId

	makeInvoice := func(date time.Time) *models.SalesInvoice {
		inv, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
			PartyId:     dealer.ID,
			InvoiceDate: date,
			Details: []models.NewSalesInvoiceDetail{{
				ProductId: product.ID,
				BatchId:   batchId,
				Qty:       d("10"),
				Rate:      d("100.00"),
			}},
		})
		if err != nil {
			t.Fatalf("CreateSalesInvoice: %v", err)
		}
		return inv
	}
	invA := makeInvoice(early) // 1000.00, due 2025-05-31
	makeInvoice(late)          // 1000.00, due 2025-08-09

	note, err := models.CreateCreditNote(ctx, &models.NewCreditNote{
		SalesInvoiceId: invA.ID,
		NoteDate:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Reason:         "damaged stock returned",
		Details: []models.NewCreditNoteDetail{{
			SalesInvoiceDetailId: invA.Details[0].ID,
			Qty:                  d("4"),
		}},
	})
	if err != nil {
		t.Fatalf("CreateCreditNote: %v", err)
	}
	if !note.NoteTotalAmount.Equal(d("400.00")) {
		t.Fatalf("note total = %s, want 400.00", note.NoteTotalAmount)
	}

	gotA, err := models.GetSalesInvoice(ctx, invA.ID)
	if err != nil {
		t.Fatalf("GetSalesInvoice: %v", err)
	}
	if !gotA.RemainingBalance.Equal(d("600.00")) {
		t.Errorf("invoice open balance after credit note = %s, want 600.00", gotA.RemainingBalance)
	}

	// FIFO still lands on the older invoice, against the reduced balance.
	if _, err := models.CreatePayment(ctx, &models.NewPayment{
		PartyId:     dealer.ID,
		PaymentDate: asOf,
		Amount:      d("300.00"),
		Mode:        "Cash",
	}); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	dealerAging := func(when time.Time) *reports.ReceivableAgingRow {
		rows, err := reports.GetReceivableAgingReport(ctx, when)
		if err != nil {
			t.Fatalf("GetReceivableAgingReport: %v", err)
		}
		for _, row := range rows {
			if row.PartyId == dealer.ID {
				return row
			}
		}
		t.Fatalf("dealer missing from aging report")
		return nil
	}

	balance, err := models.PartyBalance(ctx, dealer.ID, asOf)
	if err != nil {
		t.Fatalf("PartyBalance: %v", err)
	}
	row := dealerAging(asOf)
	if !balance.Equal(d("1300.00")) || !row.Total.Equal(balance) {
		t.Errorf("ledger %s vs aging %s, want both 1300.00", balance, row.Total)
	}
	// invA: 45 days past due carrying 300; invB not yet due carrying 1000.
	if !row.Days31to60.Equal(d("300.00")) {
		t.Errorf("31-60 bucket = %s, want 300.00", row.Days31to60)
	}
	if !row.Current.Equal(d("1000.00")) {
		t.Errorf("current bucket = %s, want 1000.00", row.Current)
	}

	// Voiding the note reopens the credited amount on the invoice and the
	// two views stay equal.
	if err := models.VoidDocument(ctx, models.DocumentKindCreditNote, note.ID, "entered twice"); err != nil {
		t.Fatalf("void credit note: %v", err)
	}
	gotA, err = models.GetSalesInvoice(ctx, invA.ID)
	if err != nil {
		t.Fatalf("GetSalesInvoice: %v", err)
	}
	if !gotA.RemainingBalance.Equal(d("700.00")) || gotA.CurrentStatus != models.DocumentStatusPartialPaid {
		t.Errorf("invoice after note void = %s/%s, want 700.00/Partial Paid",
			gotA.RemainingBalance, gotA.CurrentStatus)
	}
	now := time.Now()
	balance, err = models.PartyBalance(ctx, dealer.ID, now)
	if err != nil {
		t.Fatalf("PartyBalance: %v", err)
	}
	row = dealerAging(now)
	if !balance.Equal(d("1700.00")) || !row.Total.Equal(balance) {
		t.Errorf("ledger %s vs aging %s after note void, want both 1700.00", balance, row.Total)
	}
}

func startMySQLTestContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("distro-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerCmd(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=distro_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerMappedPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerCmd("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerMappedPort(container, portProto string) (string, error) {
	out, err := dockerCmd("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRemoveForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerCmd("rm", "-f", container)
	return err
}

func dockerCmd(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
