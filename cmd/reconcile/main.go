package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"bitbucket.org/mmdatafocus/pos_engine/workflow"
	"github.com/google/uuid"
)

func main() {
	businessID := flag.String("business-id", "", "Optional: reconcile only one business (uuid string). If empty, reconciles all businesses.")
	scope := flag.String("scope", "all", "What to reconcile: all | stock | party | accounts | costs")
	productID := flag.Int("product-id", 0, "Optional: limit stock/cost checks to one product")
	accountID := flag.Int("account-id", 0, "Optional: limit account checks to one account")
	partyType := flag.String("party-type", "", "Optional: C (customer) or S (supplier)")
	partyID := flag.Int("party-id", 0, "Optional: limit party checks to one party")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	correlationId := uuid.NewString()

	var businesses []models.Business
	bizQuery := db.Model(&models.Business{})
	if strings.TrimSpace(*businessID) != "" {
		bizQuery = bizQuery.Where("id = ?", strings.TrimSpace(*businessID))
	}
	if err := bizQuery.Find(&businesses).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list businesses: %v\n", err)
		os.Exit(1)
	}
	if len(businesses) == 0 {
		fmt.Fprintln(os.Stderr, "no businesses found to reconcile")
		return
	}

	exitCode := 0
	for _, b := range businesses {
		ctx := context.Background()
		ctx = utils.SetBusinessIdInContext(ctx, b.ID.String())
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)

		result, err := workflow.Reconcile(ctx, workflow.ReconcileScope{
			Scope:     *scope,
			ProductId: *productID,
			AccountId: *accountID,
			PartyType: models.PartyType(*partyType),
			PartyId:   *partyID,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "business %s: reconcile failed: %v\n", b.ID, err)
			exitCode = 1
			continue
		}

		fmt.Printf("business %s (%s): corrected=%d orphaned=%d errors=%d correlation=%s\n",
			b.ID, b.Name, len(result.CorrectedFields), len(result.OrphanedEntries), len(result.Errors), result.CorrelationId)
		for _, c := range result.CorrectedFields {
			fmt.Printf("  corrected %s %d %s: %s -> %s\n", c.EntityType, c.EntityId, c.Field, c.Before, c.After)
		}
		for _, o := range result.OrphanedEntries {
			fmt.Printf("  orphaned %s %d references missing %s %d\n", o.EntityType, o.EntityId, o.ReferenceType, o.ReferenceId)
		}
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
