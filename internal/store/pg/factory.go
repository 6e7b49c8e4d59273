// Package pg implements the store interfaces on PostgreSQL via
// database/sql and the pgx stdlib driver.
package pg

import (
	"database/sql"

	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// NewStores creates all stores backed by Postgres.
func NewStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Tenants:       NewPGTenantStore(db),
		Sessions:      NewPGSessionStore(db),
		Groups:        NewPGGroupStore(db),
		Ads:           NewPGAdStore(db),
		Posts:         NewPGPostStore(db),
		Payments:      NewPGPaymentStore(db),
		Subscriptions: NewPGSubscriptionStore(db),
		Stats:         NewPGStatsStore(db),
	}
}
