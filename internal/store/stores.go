// Package store defines the repository boundary of the scheduler. Each
// entity gets its own narrow interface; Stores bundles them so callers
// receive one value regardless of the backing implementation.
package store

// Stores is the top-level container for all storage backends.
type Stores struct {
	Tenants       TenantStore
	Sessions      SessionStore
	Groups        GroupStore
	Ads           AdStore
	Posts         PostStore
	Payments      PaymentStore
	Subscriptions SubscriptionStore
	Stats         StatsStore
}
