package workflow

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/pos_engine/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestWeightedAverageCost_FoldsReceiptsIntoRunningAverage(t *testing.T) {
	// Receive 10 @ 100, consume 4, receive 10 @ 130:
	// (6*100 + 10*130) / 16 = 118.75
	cost := WeightedAverageCost(d("6"), d("100"), d("10"), d("130"))
	if !cost.Equal(d("118.75")) {
		t.Fatalf("expected 118.75, got %s", cost)
	}
}

func TestWeightedAverageCost_FirstReceiptSetsCost(t *testing.T) {
	cost := WeightedAverageCost(decimal.Zero, decimal.Zero, d("10"), d("100"))
	if !cost.Equal(d("100")) {
		t.Fatalf("expected 100, got %s", cost)
	}
}

func TestWeightedAverageCost_ZeroTotalGuard(t *testing.T) {
	// prevStock + qty == 0 must not divide; the incoming cost stands.
	cost := WeightedAverageCost(decimal.Zero, d("50"), decimal.Zero, d("70"))
	if !cost.Equal(d("70")) {
		t.Fatalf("expected guard to return incoming cost 70, got %s", cost)
	}
}

func TestWeightedAverageCost_SameCostReceiptKeepsAverage(t *testing.T) {
	cost := WeightedAverageCost(d("5"), d("80"), d("5"), d("80"))
	if !cost.Equal(d("80")) {
		t.Fatalf("expected 80, got %s", cost)
	}
}

func TestCostUpdatingKind_OnlyReceiptsMoveTheAverage(t *testing.T) {
	updating := []models.MovementKind{models.MovementKindOpening, models.MovementKindPurchase}
	for _, kind := range updating {
		if !costUpdatingKind(kind) {
			t.Errorf("%s should update the average cost", kind)
		}
	}
	frozen := []models.MovementKind{
		models.MovementKindPurchaseReturn, models.MovementKindSale,
		models.MovementKindSaleReturn, models.MovementKindAdjustment,
	}
	for _, kind := range frozen {
		if costUpdatingKind(kind) {
			t.Errorf("%s must not update the average cost", kind)
		}
	}
}
