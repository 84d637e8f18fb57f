package workflow

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/pos_engine/models"
)

// NOTE: These tests are intentionally DB-free. They validate posting
// semantics that do not depend on MySQL: movement kind/sign rules, journal
// leg construction and the serialized negative-stock guard. Full DB
// integration coverage lives in models/engine_regression_test.go.

func TestValidateEntryKind_SignRules(t *testing.T) {
	cases := []struct {
		kind    models.MovementKind
		qty     string
		wantErr bool
	}{
		{models.MovementKindPurchase, "5", false},
		{models.MovementKindPurchase, "-5", true},
		{models.MovementKindOpening, "-1", true},
		{models.MovementKindSale, "-3", false},
		{models.MovementKindSale, "3", true},
		{models.MovementKindSaleReturn, "2", false},
		{models.MovementKindPurchaseReturn, "2", true},
		{models.MovementKindPurchaseReturn, "-2", false},
		{models.MovementKindAdjustment, "4", false},
		{models.MovementKindAdjustment, "-4", false},
		{models.MovementKind("XX"), "1", true},
	}
	for _, c := range cases {
		err := validateEntryKind(&StockEntry{Kind: c.kind, Qty: decimal.RequireFromString(c.qty)})
		if (err != nil) != c.wantErr {
			t.Errorf("kind=%s qty=%s: got err=%v, wantErr=%v", c.kind, c.qty, err, c.wantErr)
		}
		if err != nil {
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("kind=%s qty=%s: expected ValidationError, got %T", c.kind, c.qty, err)
			}
		}
	}
}

func TestSalesInvoiceJournalEntries_SaleAndReturnMirror(t *testing.T) {
	accounts := map[string]*models.Account{
		models.AccountCodeCash:               {ID: 1},
		models.AccountCodeAccountsReceivable: {ID: 2},
		models.AccountCodeSales:              {ID: 3},
		models.AccountCodeTaxPayable:         {ID: 4},
		models.AccountCodeCostOfGoodsSold:    {ID: 5},
		models.AccountCodeInventoryAsset:     {ID: 6},
	}

	paid, due, revenue, tax, cogs := d("300"), d("200"), d("450"), d("50"), d("350")
	sale, err := salesInvoiceJournalEntries(accounts, false, paid, due, revenue, tax, cogs)
	if err != nil {
		t.Fatalf("sale legs: %v", err)
	}
	ret, err := salesInvoiceJournalEntries(accounts, true, paid, due, revenue, tax, cogs)
	if err != nil {
		t.Fatalf("return legs: %v", err)
	}

	var saleDebits, saleCredits decimal.Decimal
	for i, leg := range sale {
		saleDebits = saleDebits.Add(leg.Debit)
		saleCredits = saleCredits.Add(leg.Credit)
		if !leg.Debit.Equal(ret[i].Credit) || !leg.Credit.Equal(ret[i].Debit) {
			t.Errorf("leg %d: return is not the mirror of the sale", i)
		}
	}
	if !saleDebits.Equal(saleCredits) {
		t.Fatalf("sale journal unbalanced: debits %s credits %s", saleDebits, saleCredits)
	}
}

func TestSalesInvoiceJournalEntries_MissingSystemAccount(t *testing.T) {
	accounts := map[string]*models.Account{
		models.AccountCodeCash: {ID: 1},
	}
	_, err := salesInvoiceJournalEntries(accounts, false, d("1"), d("0"), d("1"), d("0"), d("0"))
	if err == nil {
		t.Fatal("expected error for missing system accounts")
	}
}

// fakeStockRegister mimics the serialized posting path: per-business
// mutual exclusion around a check-then-write against cached stock.
type fakeStockRegister struct {
	mu    sync.Mutex
	stock map[int]decimal.Decimal
}

func (r *fakeStockRegister) sell(productId int, qty decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	available := r.stock[productId]
	if available.Sub(qty).IsNegative() {
		return &models.StockError{ProductId: productId, Available: available, Requested: qty}
	}
	r.stock[productId] = available.Sub(qty)
	return nil
}

func TestSerializedOversell_ExactlyOneLoser(t *testing.T) {
	register := &fakeStockRegister{stock: map[int]decimal.Decimal{1: d("3")}}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- register.sell(1, d("2"))
		}()
	}
	wg.Wait()
	close(results)

	var stockErrs, oks int
	for err := range results {
		if err == nil {
			oks++
			continue
		}
		var se *models.StockError
		if !errors.As(err, &se) {
			t.Fatalf("expected StockError, got %v", err)
		}
		stockErrs++
	}
	if oks != 1 || stockErrs != 1 {
		t.Fatalf("expected exactly one success and one StockError, got ok=%d err=%d", oks, stockErrs)
	}
	if !register.stock[1].Equal(d("1")) {
		t.Fatalf("expected remaining stock 1, got %s", register.stock[1])
	}
}
