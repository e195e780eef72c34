package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/models/reports"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

var notifier = utils.NewLogNotifier()

func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, utils.ErrAlreadyVoid):
		status = http.StatusConflict
	case errors.Is(err, utils.ErrInsufficientStock),
		errors.Is(err, utils.ErrNoSuccessorFY):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func dateQuery(c *gin.Context, key string, def time.Time) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t, true
}

func registerRoutes(r *gin.Engine) {
	r.POST("/parties", createPartyHandler)
	r.GET("/parties/:id", getPartyHandler)
	r.GET("/parties/:id/balance", partyBalanceHandler)

	r.POST("/products", createProductHandler)
	r.GET("/products/:id", getProductHandler)

	r.GET("/financial-years", listFinancialYearsHandler)
	r.POST("/financial-years", createFinancialYearHandler)
	r.POST("/financial-years/:id/close", closeFinancialYearHandler)
	r.GET("/financial-years/:id/opening-balances", openingBalancesHandler)

	r.POST("/sales-orders", createSalesOrderHandler)
	r.POST("/sales-orders/:id/convert", convertSalesOrderHandler)
	r.POST("/invoices", createSalesInvoiceHandler)
	r.GET("/invoices/:id", getSalesInvoiceHandler)
	r.POST("/purchase-invoices", createPurchaseInvoiceHandler)
	r.POST("/credit-notes", createCreditNoteHandler)
	r.POST("/debit-notes", createDebitNoteHandler)
	r.POST("/payments", createPaymentHandler)
	r.POST("/advance-receipts", createAdvanceReceiptHandler)
	r.POST("/advance-receipts/:id/allocate", allocateAdvanceHandler)

	r.POST("/documents/:kind/:id/void", voidDocumentHandler)
	r.GET("/documents/:kind/:id/audit", auditTrailHandler)

	r.GET("/reports/gst-return", gstReturnHandler)
	r.GET("/reports/gst-return/export", gstReturnExportHandler)
	r.GET("/reports/hsn-summary", hsnSummaryHandler)
	r.GET("/reports/receivable-aging", receivableAgingHandler)
}

func createPartyHandler(c *gin.Context) {
	var input models.NewParty
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	party, err := models.CreateParty(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, party)
}

func getPartyHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	party, err := models.GetParty(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, party)
}

func partyBalanceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	asOf, ok := dateQuery(c, "as_of", time.Now())
	if !ok {
		return
	}
	balance, err := models.PartyBalance(c.Request.Context(), id, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"party_id": id, "as_of": asOf.Format("2006-01-02"), "balance": balance})
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func getProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func listFinancialYearsHandler(c *gin.Context) {
	years, err := models.ListFinancialYears(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, years)
}

func createFinancialYearHandler(c *gin.Context) {
	var input models.NewFinancialYear
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	fy, err := models.CreateFinancialYear(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fy)
}

func closeFinancialYearHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&body)

	ctx := c.Request.Context()
	fy, err := models.CloseFinancialYear(ctx, id, body.Notes)
	if err != nil {
		notifier.Failure(ctx, "financial_year.close", err)
		respondError(c, err)
		return
	}
	notifier.Success(ctx, "financial_year.close", "closed financial year "+fy.Code)
	c.JSON(http.StatusOK, fy)
}

func openingBalancesHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	balances, err := models.GetOpeningBalances(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func createSalesOrderHandler(c *gin.Context) {
	var input models.NewSalesOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	order, err := models.CreateSalesOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func convertSalesOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.SalesOrderConversion
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	invoice, err := models.ConvertSalesOrderToInvoice(ctx, id, &input)
	if err != nil {
		notifier.Failure(ctx, "sales_order.convert", err)
		respondError(c, err)
		return
	}
	notifier.Success(ctx, "sales_order.convert", "issued invoice "+invoice.DocumentNumber)
	c.JSON(http.StatusCreated, invoice)
}

func createSalesInvoiceHandler(c *gin.Context) {
	var input models.NewSalesInvoice
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	invoice, err := models.CreateSalesInvoice(ctx, &input)
	if err != nil {
		notifier.Failure(ctx, "invoice.create", err)
		respondError(c, err)
		return
	}
	notifier.Success(ctx, "invoice.create", "issued invoice "+invoice.DocumentNumber)
	c.JSON(http.StatusCreated, invoice)
}

func getSalesInvoiceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	invoice, err := models.GetSalesInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func createPurchaseInvoiceHandler(c *gin.Context) {
	var input models.NewPurchaseInvoice
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	invoice, err := models.CreatePurchaseInvoice(ctx, &input)
	if err != nil {
		notifier.Failure(ctx, "purchase_invoice.create", err)
		respondError(c, err)
		return
	}
	notifier.Success(ctx, "purchase_invoice.create", "booked purchase invoice "+invoice.DocumentNumber)
	c.JSON(http.StatusCreated, invoice)
}

func createCreditNoteHandler(c *gin.Context) {
	var input models.NewCreditNote
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	note, err := models.CreateCreditNote(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func createDebitNoteHandler(c *gin.Context) {
	var input models.NewDebitNote
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	note, err := models.CreateDebitNote(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func createPaymentHandler(c *gin.Context) {
	var input models.NewPayment
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	payment, err := models.CreatePayment(ctx, &input)
	if err != nil {
		notifier.Failure(ctx, "payment.create", err)
		respondError(c, err)
		return
	}
	notifier.Success(ctx, "payment.create", "recorded payment "+payment.DocumentNumber)
	c.JSON(http.StatusCreated, payment)
}

func createAdvanceReceiptHandler(c *gin.Context) {
	var input models.NewAdvanceReceipt
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	receipt, err := models.CreateAdvanceReceipt(ctx, &input)
	if err != nil {
		notifier.Failure(ctx, "advance_receipt.create", err)
		respondError(c, err)
		return
	}
	notifier.Success(ctx, "advance_receipt.create", "recorded advance "+receipt.DocumentNumber)
	c.JSON(http.StatusCreated, receipt)
}

func allocateAdvanceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	receipt, err := models.AllocateAdvance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

var documentKindsByPath = map[string]models.DocumentKind{
	"sales-orders":      models.DocumentKindSalesOrder,
	"invoices":          models.DocumentKindSalesInvoice,
	"purchase-invoices": models.DocumentKindPurchaseInvoice,
	"credit-notes":      models.DocumentKindCreditNote,
	"debit-notes":       models.DocumentKindDebitNote,
	"payments":          models.DocumentKindPayment,
	"advance-receipts":  models.DocumentKindAdvanceReceipt,
}

func voidDocumentHandler(c *gin.Context) {
	kind, ok := documentKindsByPath[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown document kind"})
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := models.VoidDocument(ctx, kind, id, body.Reason); err != nil {
		notifier.Failure(ctx, "document.void", err)
		respondError(c, err)
		return
	}
	notifier.Success(ctx, "document.void", "voided "+string(kind)+" "+strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"status": "void"})
}

func auditTrailHandler(c *gin.Context) {
	kind, ok := documentKindsByPath[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown document kind"})
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	records, err := models.GetAuditRecords(c.Request.Context(), models.AuditTableForKind(kind), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func reportPeriod(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	from, ok := dateQuery(c, "from", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := dateQuery(c, "to", now)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func gstReturnHandler(c *gin.Context) {
	from, to, ok := reportPeriod(c)
	if !ok {
		return
	}
	report, err := reports.GetGSTReturnReport(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func gstReturnExportHandler(c *gin.Context) {
	from, to, ok := reportPeriod(c)
	if !ok {
		return
	}
	report, err := reports.GetGSTReturnReport(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	var exporter utils.RowExporter
	switch c.DefaultQuery("format", "xlsx") {
	case "csv":
		exporter = utils.CSVExporter{}
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="gst-return.csv"`)
	case "xlsx":
		exporter = utils.XLSXExporter{SheetName: "GST Return"}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="gst-return.xlsx"`)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}
	if err := reports.ExportGSTReturn(report, exporter, c.Writer); err != nil {
		respondError(c, err)
	}
}

func hsnSummaryHandler(c *gin.Context) {
	from, to, ok := reportPeriod(c)
	if !ok {
		return
	}
	rows, err := reports.GetHsnSummaryReport(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func receivableAgingHandler(c *gin.Context) {
	asOf, ok := dateQuery(c, "as_of", time.Now())
	if !ok {
		return
	}
	rows, err := reports.GetReceivableAgingReport(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
