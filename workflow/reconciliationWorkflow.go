package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
)

// DriftEpsilon is the tolerance below which a cached projection is treated
// as equal to its recomputed value.
var DriftEpsilon = decimal.RequireFromString("0.01")

type ReconcileScope struct {
	Scope     string // all | stock | party | accounts | costs
	ProductId int
	AccountId int
	PartyType models.PartyType
	PartyId   int
}

type CorrectedField struct {
	EntityType string
	EntityId   int
	Field      string
	Before     decimal.Decimal
	After      decimal.Decimal
}

type OrphanedEntry struct {
	EntityType    string
	EntityId      int
	ReferenceType string
	ReferenceId   int
}

// ReconcileResult reports what a reconciliation run found and repaired.
// Orphaned entries are surfaced for operator decision, never auto-repaired.
type ReconcileResult struct {
	CorrelationId   string
	CorrectedFields []CorrectedField
	OrphanedEntries []OrphanedEntry
	Errors          []string
}

// Reconcile recomputes cached projections from their ledgers and repairs
// drift beyond DriftEpsilon. Each unit of work runs in its own transaction
// under the business posting lock, so a failed unit is recorded and skipped
// without poisoning the rest of the run. Re-running after a clean run is a
// no-op.
func Reconcile(ctx context.Context, scope ReconcileScope) (*ReconcileResult, error) {
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
	}

	// Single-flight across instances when redis is present; the per-unit
	// MySQL advisory lock still serializes against live postings either way.
	release, err := utils.BusinessLock(ctx, businessId, "Reconcile", 10*time.Minute, "reconciliationWorkflow", "Reconcile")
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}

	result := &ReconcileResult{CorrelationId: correlationId}
	run := func(name string, fn func() error) {
		if err := fn(); err != nil {
			config.LogError(logger, "reconciliationWorkflow", "Reconcile", name, scope, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		}
	}

	switch scope.Scope {
	case "", "all":
		run("stock", func() error { return reconcileStock(ctx, logger, businessId, correlationId, scope.ProductId, result) })
		run("party", func() error { return reconcileParties(ctx, logger, businessId, correlationId, scope, result) })
		run("accounts", func() error { return reconcileAccounts(ctx, logger, businessId, correlationId, scope.AccountId, result) })
		run("costs", func() error { return reconcileCosts(ctx, logger, businessId, correlationId, scope.ProductId, result) })
		run("orphans", func() error { return reconcileOrphans(ctx, logger, businessId, correlationId, result) })
	case "stock":
		run("stock", func() error { return reconcileStock(ctx, logger, businessId, correlationId, scope.ProductId, result) })
		run("orphans", func() error { return reconcileOrphans(ctx, logger, businessId, correlationId, result) })
	case "party":
		run("party", func() error { return reconcileParties(ctx, logger, businessId, correlationId, scope, result) })
	case "accounts":
		run("accounts", func() error { return reconcileAccounts(ctx, logger, businessId, correlationId, scope.AccountId, result) })
	case "costs":
		run("costs", func() error { return reconcileCosts(ctx, logger, businessId, correlationId, scope.ProductId, result) })
	default:
		return nil, models.NewValidationError("scope", fmt.Sprintf("unknown reconcile scope %q", scope.Scope))
	}

	return result, nil
}

func writeReconciliationReport(tx *gorm.DB, businessId, checkType, entityType string, entityId int, details, correlationId string) error {
	return tx.Create(&models.ReconciliationReport{
		BusinessId:    businessId,
		CheckType:     checkType,
		EntityType:    entityType,
		EntityId:      entityId,
		Details:       details,
		CorrelationId: correlationId,
	}).Error
}

// repairUnit wraps one correction in its own posting-locked transaction.
func repairUnit(businessId string, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()
	tx := db.Begin()
	committed := false
	defer func() {
		if !committed {
			ReleaseBusinessPostingLock(tx, businessId)
			_ = tx.Rollback().Error
		}
	}()

	if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}
	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return err
	}
	committed = true
	return nil
}

func reconcileStock(ctx context.Context, logger *logrus.Logger, businessId, correlationId string, productId int, result *ReconcileResult) error {
	db := config.GetDB()

	var productIds []int
	query := db.WithContext(ctx).Model(&models.Product{}).Where("business_id = ?", businessId)
	if productId > 0 {
		query = query.Where("id = ?", productId)
	}
	if err := query.Pluck("id", &productIds).Error; err != nil {
		return err
	}

	for _, id := range productIds {
		id := id
		err := repairUnit(businessId, func(tx *gorm.DB) error {
			summary, err := models.FirstOrCreateStockSummary(tx, businessId, id)
			if err != nil {
				return err
			}
			expected, err := models.SumStockHistories(tx, businessId, id)
			if err != nil {
				return err
			}
			if expected.Sub(summary.CurrentQty).Abs().LessThanOrEqual(DriftEpsilon) {
				return nil
			}
			logger.WithFields(logrus.Fields{
				"module":     "reconciliationWorkflow",
				"businessId": businessId,
				"productId":  id,
				"cached":     summary.CurrentQty.String(),
				"expected":   expected.String(),
			}).Warn("stock summary drift detected")

			if err := tx.Exec("UPDATE stock_summaries SET current_qty = ? WHERE business_id = ? AND product_id = ?",
				expected, businessId, id).Error; err != nil {
				return err
			}
			result.CorrectedFields = append(result.CorrectedFields, CorrectedField{
				EntityType: "StockSummary", EntityId: id, Field: "current_qty",
				Before: summary.CurrentQty, After: expected,
			})
			return writeReconciliationReport(tx, businessId, "STOCK_SUMMARY", "Product", id,
				fmt.Sprintf("current_qty %s -> %s", summary.CurrentQty, expected), correlationId)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("stock product %d: %v", id, err))
		}
	}
	return nil
}

func reconcileParties(ctx context.Context, logger *logrus.Logger, businessId, correlationId string, scope ReconcileScope, result *ReconcileResult) error {
	parties := []models.PartyType{models.PartyTypeCustomer, models.PartyTypeSupplier}
	if scope.PartyType != "" {
		parties = []models.PartyType{scope.PartyType}
	}
	for _, partyType := range parties {
		if err := reconcilePartyType(ctx, logger, businessId, correlationId, partyType, scope.PartyId, result); err != nil {
			return err
		}
	}
	return nil
}

func reconcilePartyType(ctx context.Context, logger *logrus.Logger, businessId, correlationId string, partyType models.PartyType, partyId int, result *ReconcileResult) error {
	db := config.GetDB()

	entityType := "Customer"
	model := db.WithContext(ctx).Model(&models.Customer{})
	if partyType == models.PartyTypeSupplier {
		entityType = "Supplier"
		model = db.WithContext(ctx).Model(&models.Supplier{})
	}
	var partyIds []int
	query := model.Where("business_id = ?", businessId)
	if partyId > 0 {
		query = query.Where("id = ?", partyId)
	}
	if err := query.Pluck("id", &partyIds).Error; err != nil {
		return err
	}

	for _, id := range partyIds {
		id := id
		err := repairUnit(businessId, func(tx *gorm.DB) error {
			cached, err := models.GetPartyBalanceForUpdate(tx, businessId, partyType, id)
			if err != nil {
				return err
			}
			expected, err := models.SumPartyLedgerEntries(tx, businessId, partyType, id)
			if err != nil {
				return err
			}
			if expected.Sub(cached).Abs().LessThanOrEqual(DriftEpsilon) {
				return nil
			}
			logger.WithFields(logrus.Fields{
				"module":     "reconciliationWorkflow",
				"businessId": businessId,
				"partyType":  partyType,
				"partyId":    id,
				"cached":     cached.String(),
				"expected":   expected.String(),
			}).Warn("party balance drift detected")

			if err := models.ApplyPartyBalanceDelta(tx, businessId, partyType, id, expected.Sub(cached)); err != nil {
				return err
			}
			result.CorrectedFields = append(result.CorrectedFields, CorrectedField{
				EntityType: entityType, EntityId: id, Field: "balance",
				Before: cached, After: expected,
			})
			return writeReconciliationReport(tx, businessId, "PARTY_BALANCE", entityType, id,
				fmt.Sprintf("balance %s -> %s", cached, expected), correlationId)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("party %s %d: %v", partyType, id, err))
		}
	}
	return nil
}

func reconcileAccounts(ctx context.Context, logger *logrus.Logger, businessId, correlationId string, accountId int, result *ReconcileResult) error {
	db := config.GetDB()

	var accountIds []int
	query := db.WithContext(ctx).Model(&models.Account{}).Where("business_id = ?", businessId)
	if accountId > 0 {
		query = query.Where("id = ?", accountId)
	}
	if err := query.Pluck("id", &accountIds).Error; err != nil {
		return err
	}

	for _, id := range accountIds {
		id := id
		err := repairUnit(businessId, func(tx *gorm.DB) error {
			var cached decimal.Decimal
			if err := tx.Raw("SELECT balance FROM accounts WHERE business_id = ? AND id = ? FOR UPDATE",
				businessId, id).Scan(&cached).Error; err != nil {
				return err
			}
			expected, err := models.SumAccountTransactions(tx, businessId, id)
			if err != nil {
				return err
			}
			if expected.Sub(cached).Abs().LessThanOrEqual(DriftEpsilon) {
				return nil
			}
			logger.WithFields(logrus.Fields{
				"module":     "reconciliationWorkflow",
				"businessId": businessId,
				"accountId":  id,
				"cached":     cached.String(),
				"expected":   expected.String(),
			}).Warn("account balance drift detected")

			if err := tx.Exec("UPDATE accounts SET balance = ? WHERE business_id = ? AND id = ?",
				expected, businessId, id).Error; err != nil {
				return err
			}
			result.CorrectedFields = append(result.CorrectedFields, CorrectedField{
				EntityType: "Account", EntityId: id, Field: "balance",
				Before: cached, After: expected,
			})
			return writeReconciliationReport(tx, businessId, "ACCOUNT_BALANCE", "Account", id,
				fmt.Sprintf("balance %s -> %s", cached, expected), correlationId)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %d: %v", id, err))
		}
	}

	// Journals whose legs do not sum to zero are reported, never repaired:
	// there is no way to know which leg is wrong.
	return repairUnit(businessId, func(tx *gorm.DB) error {
		type unbalanced struct {
			JournalId int
			Diff      decimal.Decimal
		}
		var rows []unbalanced
		err := tx.Raw(
			"SELECT journal_id, SUM(debit - credit) AS diff FROM account_transactions WHERE business_id = ? GROUP BY journal_id HAVING ABS(SUM(debit - credit)) > ?",
			businessId, DriftEpsilon).Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := writeReconciliationReport(tx, businessId, "UNBALANCED_JOURNAL", "AccountJournal", row.JournalId,
				fmt.Sprintf("debits minus credits = %s", row.Diff), correlationId); err != nil {
				return err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("journal %d unbalanced by %s", row.JournalId, row.Diff))
		}
		return nil
	})
}

func reconcileCosts(ctx context.Context, logger *logrus.Logger, businessId, correlationId string, productId int, result *ReconcileResult) error {
	db := config.GetDB()

	var productIds []int
	query := db.WithContext(ctx).Model(&models.Product{}).Where("business_id = ?", businessId)
	if productId > 0 {
		query = query.Where("id = ?", productId)
	}
	if err := query.Pluck("id", &productIds).Error; err != nil {
		return err
	}

	for _, id := range productIds {
		id := id
		err := repairUnit(businessId, func(tx *gorm.DB) error {
			product, err := models.GetProductForUpdate(tx, businessId, id)
			if err != nil {
				return err
			}
			replayed, err := ReplayAverageCost(tx, businessId, id)
			if err != nil {
				return err
			}
			if replayed.Sub(product.CostPrice).Abs().LessThanOrEqual(DriftEpsilon) {
				return nil
			}
			logger.WithFields(logrus.Fields{
				"module":     "reconciliationWorkflow",
				"businessId": businessId,
				"productId":  id,
				"cached":     product.CostPrice.String(),
				"expected":   replayed.String(),
			}).Warn("average cost drift detected")

			if err := models.UpdateProductCostPrice(tx, businessId, id, replayed); err != nil {
				return err
			}
			result.CorrectedFields = append(result.CorrectedFields, CorrectedField{
				EntityType: "Product", EntityId: id, Field: "cost_price",
				Before: product.CostPrice, After: replayed,
			})
			return writeReconciliationReport(tx, businessId, "AVERAGE_COST", "Product", id,
				fmt.Sprintf("cost_price %s -> %s", product.CostPrice, replayed), correlationId)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cost product %d: %v", id, err))
		}
	}
	return nil
}

type orphanScan struct {
	ledgerTable   string
	entityType    string
	referenceType models.AccountReferenceType
	documentTable string
}

var orphanScans = []orphanScan{
	{"stock_histories", "StockHistory", models.AccountReferenceTypeInvoice, "sales_invoices"},
	{"stock_histories", "StockHistory", models.AccountReferenceTypeBill, "bills"},
	{"stock_histories", "StockHistory", models.AccountReferenceTypeInventoryAdjustment, "inventory_adjustments"},
	{"stock_histories", "StockHistory", models.AccountReferenceTypeProductOpeningStock, "products"},
	{"party_ledger_entries", "PartyLedgerEntry", models.AccountReferenceTypeInvoice, "sales_invoices"},
	{"party_ledger_entries", "PartyLedgerEntry", models.AccountReferenceTypeBill, "bills"},
	{"party_ledger_entries", "PartyLedgerEntry", models.AccountReferenceTypeCustomerPayment, "customer_payments"},
	{"party_ledger_entries", "PartyLedgerEntry", models.AccountReferenceTypeSupplierPayment, "supplier_payments"},
	{"party_ledger_entries", "PartyLedgerEntry", models.AccountReferenceTypeCustomerOpeningBalance, "customers"},
	{"party_ledger_entries", "PartyLedgerEntry", models.AccountReferenceTypeSupplierOpeningBalance, "suppliers"},
	{"account_journals", "AccountJournal", models.AccountReferenceTypeInvoice, "sales_invoices"},
	{"account_journals", "AccountJournal", models.AccountReferenceTypeBill, "bills"},
	{"account_journals", "AccountJournal", models.AccountReferenceTypeCustomerPayment, "customer_payments"},
	{"account_journals", "AccountJournal", models.AccountReferenceTypeSupplierPayment, "supplier_payments"},
	{"account_journals", "AccountJournal", models.AccountReferenceTypeInventoryAdjustment, "inventory_adjustments"},
	{"account_journals", "AccountJournal", models.AccountReferenceTypeProductOpeningStock, "products"},
	{"account_journals", "AccountJournal", models.AccountReferenceTypeCustomerOpeningBalance, "customers"},
	{"account_journals", "AccountJournal", models.AccountReferenceTypeSupplierOpeningBalance, "suppliers"},
}

// reconcileOrphans classifies ledger rows whose parent document is gone.
// These are evidence of a partial write or a bad manual cleanup; they are
// reported for operator decision and never deleted here.
func reconcileOrphans(ctx context.Context, logger *logrus.Logger, businessId, correlationId string, result *ReconcileResult) error {
	return repairUnit(businessId, func(tx *gorm.DB) error {
		for _, scan := range orphanScans {
			type orphanRow struct {
				Id          int
				ReferenceId int
			}
			var rows []orphanRow
			query := fmt.Sprintf(
				"SELECT l.id AS id, l.reference_id AS reference_id FROM %s l LEFT JOIN %s d ON d.id = l.reference_id AND d.business_id = l.business_id WHERE l.business_id = ? AND l.reference_type = ? AND d.id IS NULL",
				scan.ledgerTable, scan.documentTable)
			if err := tx.Raw(query, businessId, scan.referenceType).Scan(&rows).Error; err != nil {
				return err
			}
			for _, row := range rows {
				orphan := &models.OrphanedReferenceError{
					EntityType:    scan.entityType,
					EntityId:      row.Id,
					ReferenceType: string(scan.referenceType),
					ReferenceId:   row.ReferenceId,
				}
				logger.WithFields(logrus.Fields{
					"module":     "reconciliationWorkflow",
					"businessId": businessId,
				}).Warn(orphan.Error())
				result.OrphanedEntries = append(result.OrphanedEntries, OrphanedEntry{
					EntityType:    scan.entityType,
					EntityId:      row.Id,
					ReferenceType: string(scan.referenceType),
					ReferenceId:   row.ReferenceId,
				})
				// An orphan persists until an operator acts on it; report it
				// in every result but write its report row only once.
				var reported int64
				if err := tx.Model(&models.ReconciliationReport{}).
					Where("business_id = ? AND check_type = ? AND entity_type = ? AND entity_id = ?",
						businessId, "ORPHANED_REFERENCE", scan.entityType, row.Id).
					Count(&reported).Error; err != nil {
					return err
				}
				if reported > 0 {
					continue
				}
				if err := writeReconciliationReport(tx, businessId, "ORPHANED_REFERENCE", scan.entityType, row.Id,
					orphan.Error(), correlationId); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
