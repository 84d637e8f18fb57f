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

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"bitbucket.org/mmdatafocus/pos_engine/workflow"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupEngine(t *testing.T) (context.Context, string) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "pos_engine_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	biz, err := models.CreateBusiness(ctx, models.NewBusiness{
		Name:  "Engine Test Co",
		Email: "owner@engine.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessId := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessId)
	return ctx, businessId
}

func mustProduct(t *testing.T, ctx context.Context, input *models.NewProduct) *models.Product {
	t.Helper()
	product, err := workflow.CreateProduct(ctx, input)
	if err != nil {
		t.Fatalf("CreateProduct %s: %v", input.Name, err)
	}
	return product
}

func fetchCostPrice(t *testing.T, ctx context.Context, productId int) decimal.Decimal {
	t.Helper()
	product, err := models.GetProduct(ctx, productId)
	if err != nil {
		t.Fatalf("GetProduct %d: %v", productId, err)
	}
	return product.CostPrice
}

func fetchStock(t *testing.T, businessId string, productId int) decimal.Decimal {
	t.Helper()
	qty, err := models.GetProductStock(config.GetDB(), businessId, productId)
	if err != nil {
		t.Fatalf("GetProductStock %d: %v", productId, err)
	}
	return qty
}

func TestWeightedAverageCostAcrossPurchasesAndSales(t *testing.T) {
	ctx, businessId := setupEngine(t)

	supplier, err := workflow.CreateSupplier(ctx, &models.NewSupplier{Name: "Acme Wholesale"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	widget := mustProduct(t, ctx, &models.NewProduct{Name: "Widget", Sku: "WID-001", SalePrice: d("150")})

	// Purchase 10 @ 100.
	_, err = workflow.CreateBill(ctx, &models.NewBill{
		SupplierId: supplier.ID,
		BillDate:   time.Now().UTC(),
		PaidAmount: d("1000"),
		Details:    []models.NewBillDetail{{ProductId: widget.ID, DetailQty: d("10"), DetailUnitCost: d("100")}},
	})
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if cost := fetchCostPrice(t, ctx, widget.ID); !cost.Equal(d("100")) {
		t.Fatalf("cost after first purchase: expected 100, got %s", cost)
	}

	// Sell 4; the sale consumes at cost and must not move the average.
	invoice, err := workflow.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		InvoiceDate: time.Now().UTC(),
		PaidAmount:  d("600"),
		Details:     []models.NewSalesInvoiceDetail{{ProductId: widget.ID, DetailQty: d("4"), DetailUnitRate: d("150")}},
	})
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	if cost := fetchCostPrice(t, ctx, widget.ID); !cost.Equal(d("100")) {
		t.Fatalf("cost after sale: expected 100, got %s", cost)
	}
	if stock := fetchStock(t, businessId, widget.ID); !stock.Equal(d("6")) {
		t.Fatalf("stock after sale: expected 6, got %s", stock)
	}

	// Purchase 10 @ 130: (6*100 + 10*130) / 16 = 118.75.
	_, err = workflow.CreateBill(ctx, &models.NewBill{
		SupplierId: supplier.ID,
		BillDate:   time.Now().UTC(),
		PaidAmount: d("1300"),
		Details:    []models.NewBillDetail{{ProductId: widget.ID, DetailQty: d("10"), DetailUnitCost: d("130")}},
	})
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	cost := fetchCostPrice(t, ctx, widget.ID)
	if cost.Sub(d("118.75")).Abs().GreaterThan(d("0.01")) {
		t.Fatalf("cost after second purchase: expected 118.75, got %s", cost)
	}

	// COGS on the sale must have been captured at 100.
	saved, err := models.GetSalesInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetSalesInvoice: %v", err)
	}
	if !saved.Details[0].DetailUnitCost.Equal(d("100")) {
		t.Fatalf("sale detail cost: expected 100, got %s", saved.Details[0].DetailUnitCost)
	}

	// Replay from the ledger must converge to the cached cost.
	replayed, err := workflow.ReplayAverageCost(config.GetDB(), businessId, widget.ID)
	if err != nil {
		t.Fatalf("ReplayAverageCost: %v", err)
	}
	if replayed.Sub(cost).Abs().GreaterThan(d("0.01")) {
		t.Fatalf("replayed cost %s diverges from cached %s", replayed, cost)
	}
}

func TestOversellRejectedWithStockError(t *testing.T) {
	ctx, businessId := setupEngine(t)

	gadget := mustProduct(t, ctx, &models.NewProduct{
		Name:                 "Gadget",
		OpeningStockQty:      d("3"),
		OpeningStockUnitCost: d("20"),
	})

	_, err := workflow.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		InvoiceDate: time.Now().UTC(),
		PaidAmount:  d("250"),
		Details:     []models.NewSalesInvoiceDetail{{ProductId: gadget.ID, DetailQty: d("5"), DetailUnitRate: d("50")}},
	})
	var stockErr *models.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %v", err)
	}
	if !stockErr.Available.Equal(d("3")) || !stockErr.Requested.Equal(d("5")) {
		t.Fatalf("expected available 3 requested 5, got %s / %s", stockErr.Available, stockErr.Requested)
	}

	// The rejected sale must leave no trace.
	if stock := fetchStock(t, businessId, gadget.ID); !stock.Equal(d("3")) {
		t.Fatalf("stock changed after rejected sale: %s", stock)
	}
	var invoiceCount int64
	if err := config.GetDB().Model(&models.SalesInvoice{}).
		Where("business_id = ?", businessId).Count(&invoiceCount).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if invoiceCount != 0 {
		t.Fatalf("expected no invoices after rejection, found %d", invoiceCount)
	}
}

func TestSupplierPaymentNeverExceedsOutstanding(t *testing.T) {
	ctx, _ := setupEngine(t)

	supplier, err := workflow.CreateSupplier(ctx, &models.NewSupplier{Name: "Globex"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	bolt := mustProduct(t, ctx, &models.NewProduct{Name: "Bolt"})

	// Credit purchase of 5000.
	_, err = workflow.CreateBill(ctx, &models.NewBill{
		SupplierId: supplier.ID,
		BillDate:   time.Now().UTC(),
		Details:    []models.NewBillDetail{{ProductId: bolt.ID, DetailQty: d("50"), DetailUnitCost: d("100")}},
	})
	if err != nil {
		t.Fatalf("credit purchase: %v", err)
	}
	fresh, err := models.GetSupplier(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("GetSupplier: %v", err)
	}
	if !fresh.Balance.Equal(d("5000")) {
		t.Fatalf("expected supplier balance 5000, got %s", fresh.Balance)
	}

	// Pay it off in full.
	_, err = workflow.CreateSupplierPayment(ctx, &models.NewSupplierPayment{
		SupplierId:  supplier.ID,
		PaymentDate: time.Now().UTC(),
		Amount:      d("5000"),
	})
	if err != nil {
		t.Fatalf("full payment: %v", err)
	}
	fresh, _ = models.GetSupplier(ctx, supplier.ID)
	if !fresh.Balance.IsZero() {
		t.Fatalf("expected supplier balance 0, got %s", fresh.Balance)
	}

	// One more unit must be rejected, never clamped.
	_, err = workflow.CreateSupplierPayment(ctx, &models.NewSupplierPayment{
		SupplierId:  supplier.ID,
		PaymentDate: time.Now().UTC(),
		Amount:      d("1"),
	})
	var balanceErr *models.AmountExceedsBalanceError
	if !errors.As(err, &balanceErr) {
		t.Fatalf("expected AmountExceedsBalanceError, got %v", err)
	}
	if !balanceErr.Remainder().Equal(d("1")) {
		t.Fatalf("expected remainder 1, got %s", balanceErr.Remainder())
	}
}

func TestVoidRoundTripRestoresAllLedgers(t *testing.T) {
	ctx, businessId := setupEngine(t)

	customer, err := workflow.CreateCustomer(ctx, &models.NewCustomer{Name: "Jordan Grocery"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	supplier, err := workflow.CreateSupplier(ctx, &models.NewSupplier{Name: "Initech"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	crate := mustProduct(t, ctx, &models.NewProduct{Name: "Crate", SalePrice: d("40")})

	bill, err := workflow.CreateBill(ctx, &models.NewBill{
		SupplierId: supplier.ID,
		BillDate:   time.Now().UTC(),
		PaidAmount: d("200"),
		Details:    []models.NewBillDetail{{ProductId: crate.ID, DetailQty: d("10"), DetailUnitCost: d("20")}},
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	// Credit sale of 4 crates.
	invoice, err := workflow.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		CustomerId:  customer.ID,
		InvoiceDate: time.Now().UTC(),
		Details:     []models.NewSalesInvoiceDetail{{ProductId: crate.ID, DetailQty: d("4"), DetailUnitRate: d("40")}},
	})
	if err != nil {
		t.Fatalf("credit sale: %v", err)
	}
	freshCustomer, _ := models.GetCustomer(ctx, customer.ID)
	if !freshCustomer.Balance.Equal(d("160")) {
		t.Fatalf("expected customer balance 160, got %s", freshCustomer.Balance)
	}

	// Deleting the bill now must fail: 4 of its 10 crates are gone.
	_, err = workflow.DeleteBill(ctx, bill.ID)
	var stockErr *models.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError voiding sold-out purchase, got %v", err)
	}
	if stockErr.ProductName != "Crate" {
		t.Fatalf("expected rejection to name the product, got %q", stockErr.ProductName)
	}

	// The rejected void leaves a FAILED idempotency key recording the error.
	var key models.IdempotencyKey
	if err := config.GetDB().
		Where("business_id = ? AND handler_name = ? AND message_id = ?",
			businessId, "DeleteBill", fmt.Sprintf("%d", bill.ID)).
		First(&key).Error; err != nil {
		t.Fatalf("fetch idempotency key: %v", err)
	}
	if key.Status != models.IdempotencyStatusFailed {
		t.Fatalf("expected FAILED idempotency key, got %s", key.Status)
	}
	if key.LastError == nil || !strings.Contains(*key.LastError, "Crate") {
		t.Fatalf("expected last_error to carry the rejection, got %+v", key.LastError)
	}

	// Void the sale; stock and the customer balance return to pre-sale state.
	voided, err := workflow.DeleteSalesInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("DeleteSalesInvoice: %v", err)
	}
	if voided.CurrentStatus != models.DocumentStatusVoid {
		t.Fatalf("expected status Void, got %s", voided.CurrentStatus)
	}
	if stock := fetchStock(t, businessId, crate.ID); !stock.Equal(d("10")) {
		t.Fatalf("expected stock 10 after void, got %s", stock)
	}
	freshCustomer, _ = models.GetCustomer(ctx, customer.ID)
	if !freshCustomer.Balance.IsZero() {
		t.Fatalf("expected customer balance 0 after void, got %s", freshCustomer.Balance)
	}

	// Voiding twice is an error, not a double reversal.
	if _, err := workflow.DeleteSalesInvoice(ctx, invoice.ID); !errors.Is(err, models.ErrDocumentVoid) {
		t.Fatalf("expected ErrDocumentVoid on second void, got %v", err)
	}

	// With the sale gone the FAILED key is reclaimed and the void goes through.
	if _, err := workflow.DeleteBill(ctx, bill.ID); err != nil {
		t.Fatalf("DeleteBill after void: %v", err)
	}
	if err := config.GetDB().
		Where("business_id = ? AND handler_name = ? AND message_id = ?",
			businessId, "DeleteBill", fmt.Sprintf("%d", bill.ID)).
		First(&key).Error; err != nil {
		t.Fatalf("refetch idempotency key: %v", err)
	}
	if key.Status != models.IdempotencyStatusSucceeded {
		t.Fatalf("expected SUCCEEDED idempotency key after retry, got %s", key.Status)
	}
	if stock := fetchStock(t, businessId, crate.ID); !stock.IsZero() {
		t.Fatalf("expected stock 0 after voiding bill, got %s", stock)
	}

	// The original ledger rows must still exist, marked reversed.
	var reversedRows int64
	if err := config.GetDB().Model(&models.StockHistory{}).
		Where("business_id = ? AND reversed_by_stock_history_id IS NOT NULL", businessId).
		Count(&reversedRows).Error; err != nil {
		t.Fatalf("count reversed rows: %v", err)
	}
	if reversedRows == 0 {
		t.Fatal("expected reversed stock history rows to survive the voids")
	}
}

func TestReconcileRepairsDriftAndIsIdempotent(t *testing.T) {
	ctx, businessId := setupEngine(t)

	lamp := mustProduct(t, ctx, &models.NewProduct{
		Name:                 "Lamp",
		OpeningStockQty:      d("8"),
		OpeningStockUnitCost: d("25"),
	})

	// Corrupt the cache the way a partial write would.
	if err := config.GetDB().Exec(
		"UPDATE stock_summaries SET current_qty = 99 WHERE business_id = ? AND product_id = ?",
		businessId, lamp.ID).Error; err != nil {
		t.Fatalf("corrupt summary: %v", err)
	}

	result, err := workflow.Reconcile(ctx, workflow.ReconcileScope{Scope: "stock"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.CorrectedFields) != 1 {
		t.Fatalf("expected 1 correction, got %d (%+v)", len(result.CorrectedFields), result)
	}
	fix := result.CorrectedFields[0]
	if fix.EntityId != lamp.ID || !fix.After.Equal(d("8")) {
		t.Fatalf("unexpected correction %+v", fix)
	}
	if stock := fetchStock(t, businessId, lamp.ID); !stock.Equal(d("8")) {
		t.Fatalf("expected repaired stock 8, got %s", stock)
	}

	// A clean ledger reconciles to a no-op.
	again, err := workflow.Reconcile(ctx, workflow.ReconcileScope{Scope: "all"})
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if len(again.CorrectedFields) != 0 || len(again.OrphanedEntries) != 0 || len(again.Errors) != 0 {
		t.Fatalf("expected clean second run, got %+v", again)
	}

	// A report row must record the repair.
	var reports int64
	if err := config.GetDB().Model(&models.ReconciliationReport{}).
		Where("business_id = ? AND check_type = ?", businessId, "STOCK_SUMMARY").
		Count(&reports).Error; err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if reports != 1 {
		t.Fatalf("expected 1 reconciliation report, got %d", reports)
	}

	// Removing a master row strands its opening ledger rows; reconcile must
	// classify them without touching them.
	shelf := mustProduct(t, ctx, &models.NewProduct{
		Name:                 "Shelf",
		OpeningStockQty:      d("2"),
		OpeningStockUnitCost: d("30"),
	})
	if err := config.GetDB().Exec(
		"DELETE FROM products WHERE business_id = ? AND id = ?", businessId, shelf.ID).Error; err != nil {
		t.Fatalf("remove product row: %v", err)
	}

	withOrphans, err := workflow.Reconcile(ctx, workflow.ReconcileScope{Scope: "all"})
	if err != nil {
		t.Fatalf("Reconcile with orphans: %v", err)
	}
	if len(withOrphans.OrphanedEntries) == 0 {
		t.Fatal("expected stranded opening rows to be classified")
	}
	sawOpeningStock := false
	for _, orphan := range withOrphans.OrphanedEntries {
		if orphan.ReferenceType == string(models.AccountReferenceTypeProductOpeningStock) &&
			orphan.ReferenceId == shelf.ID {
			sawOpeningStock = true
		}
	}
	if !sawOpeningStock {
		t.Fatalf("opening stock rows not classified: %+v", withOrphans.OrphanedEntries)
	}

	var orphanReports int64
	if err := config.GetDB().Model(&models.ReconciliationReport{}).
		Where("business_id = ? AND check_type = ?", businessId, "ORPHANED_REFERENCE").
		Count(&orphanReports).Error; err != nil {
		t.Fatalf("count orphan reports: %v", err)
	}
	if orphanReports == 0 {
		t.Fatal("expected orphan report rows")
	}

	// A repeat run reports the same orphans but writes no new rows.
	repeat, err := workflow.Reconcile(ctx, workflow.ReconcileScope{Scope: "all"})
	if err != nil {
		t.Fatalf("repeat Reconcile: %v", err)
	}
	if len(repeat.OrphanedEntries) != len(withOrphans.OrphanedEntries) {
		t.Fatalf("expected orphans reported again, got %d then %d",
			len(withOrphans.OrphanedEntries), len(repeat.OrphanedEntries))
	}
	var orphanReportsAfter int64
	if err := config.GetDB().Model(&models.ReconciliationReport{}).
		Where("business_id = ? AND check_type = ?", businessId, "ORPHANED_REFERENCE").
		Count(&orphanReportsAfter).Error; err != nil {
		t.Fatalf("recount orphan reports: %v", err)
	}
	if orphanReportsAfter != orphanReports {
		t.Fatalf("expected no new orphan reports, got %d then %d", orphanReports, orphanReportsAfter)
	}
}

func TestPostingLockFreedAfterCommitAndRollback(t *testing.T) {
	ctx, businessId := setupEngine(t)
	lockName := "posting:" + businessId

	assertLockFree := func(stage string) {
		t.Helper()
		var free int
		if err := config.GetDB().Raw("SELECT IS_FREE_LOCK(?)", lockName).Scan(&free).Error; err != nil {
			t.Fatalf("%s: IS_FREE_LOCK: %v", stage, err)
		}
		if free != 1 {
			t.Fatalf("%s: posting lock still held", stage)
		}
	}

	// Committed posting.
	pallet := mustProduct(t, ctx, &models.NewProduct{
		Name:                 "Pallet",
		OpeningStockQty:      d("4"),
		OpeningStockUnitCost: d("10"),
	})
	assertLockFree("after commit")

	// Rolled-back posting.
	_, err := workflow.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		InvoiceDate: time.Now().UTC(),
		PaidAmount:  d("500"),
		Details:     []models.NewSalesInvoiceDetail{{ProductId: pallet.ID, DetailQty: d("10"), DetailUnitRate: d("50")}},
	})
	var stockErr *models.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %v", err)
	}
	assertLockFree("after rollback")

	// The lock stays usable for the next posting on any pooled connection.
	if _, err := workflow.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		InvoiceDate: time.Now().UTC(),
		PaidAmount:  d("100"),
		Details:     []models.NewSalesInvoiceDetail{{ProductId: pallet.ID, DetailQty: d("2"), DetailUnitRate: d("50")}},
	}); err != nil {
		t.Fatalf("follow-up posting: %v", err)
	}
	assertLockFree("after follow-up")
}

func TestPurchaseReturnCreditHonoursPartyBalancePolicy(t *testing.T) {
	ctx, _ := setupEngine(t)

	returnBill := func(ctx context.Context, supplierId, productId int) (*models.Bill, error) {
		return workflow.CreateBill(ctx, &models.NewBill{
			SupplierId: supplierId,
			BillDate:   time.Now().UTC(),
			IsReturn:   utils.NewTrue(),
			Details:    []models.NewBillDetail{{ProductId: productId, DetailQty: d("5"), DetailUnitCost: d("10")}},
		})
	}

	// Default policy: a return credit past zero is rejected, never clamped.
	strict, err := workflow.CreateSupplier(ctx, &models.NewSupplier{Name: "Strict Supply"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	rope := mustProduct(t, ctx, &models.NewProduct{
		Name:                 "Rope",
		OpeningStockQty:      d("5"),
		OpeningStockUnitCost: d("10"),
	})
	_, err = returnBill(ctx, strict.ID, rope.ID)
	var balanceErr *models.AmountExceedsBalanceError
	if !errors.As(err, &balanceErr) {
		t.Fatalf("expected AmountExceedsBalanceError, got %v", err)
	}
	if !balanceErr.Remainder().Equal(d("50")) {
		t.Fatalf("expected remainder 50, got %s", balanceErr.Remainder())
	}
	fresh, err := models.GetSupplier(ctx, strict.ID)
	if err != nil {
		t.Fatalf("GetSupplier: %v", err)
	}
	if !fresh.Balance.IsZero() {
		t.Fatalf("rejected return moved the balance: %s", fresh.Balance)
	}

	// Opted-in business: the same return drives the balance negative.
	lenientBiz, err := models.CreateBusiness(ctx, models.NewBusiness{
		Name:                      "Lenient Trading",
		AllowNegativePartyBalance: utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	lenientCtx := utils.SetBusinessIdInContext(ctx, lenientBiz.ID.String())
	lenient, err := workflow.CreateSupplier(lenientCtx, &models.NewSupplier{Name: "Lenient Supply"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	twine := mustProduct(t, lenientCtx, &models.NewProduct{
		Name:                 "Twine",
		OpeningStockQty:      d("5"),
		OpeningStockUnitCost: d("10"),
	})
	if _, err := returnBill(lenientCtx, lenient.ID, twine.ID); err != nil {
		t.Fatalf("return under lenient policy: %v", err)
	}
	fresh, err = models.GetSupplier(lenientCtx, lenient.ID)
	if err != nil {
		t.Fatalf("GetSupplier: %v", err)
	}
	if !fresh.Balance.Equal(d("-50")) {
		t.Fatalf("expected supplier balance -50, got %s", fresh.Balance)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("pos-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=pos_engine_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("pos-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
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
