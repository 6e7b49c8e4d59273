// Package memory implements store.Stores with mutex-guarded maps. It backs
// tests and `--store memory` standalone runs; nothing survives a restart.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// Backend holds all in-memory tables behind one lock. Entity stores are
// thin views over it so cross-entity reads stay consistent.
type Backend struct {
	mu sync.RWMutex

	tenants       map[uuid.UUID]*model.Tenant
	sessions      map[uuid.UUID]*model.Session
	groups        map[uuid.UUID]*model.Group
	ads           map[uuid.UUID]*model.Ad
	posts         map[uuid.UUID]*model.Post
	history       map[uuid.UUID][]*model.PostHistory // postID -> attempts
	payments      map[uuid.UUID]*model.Payment
	subscriptions map[uuid.UUID]*model.Subscription
	stats         map[string]*model.SystemStatistics // yyyy-mm-dd -> row
}

// NewStores creates a fresh in-memory store set.
func NewStores() (*store.Stores, *Backend) {
	b := &Backend{
		tenants:       make(map[uuid.UUID]*model.Tenant),
		sessions:      make(map[uuid.UUID]*model.Session),
		groups:        make(map[uuid.UUID]*model.Group),
		ads:           make(map[uuid.UUID]*model.Ad),
		posts:         make(map[uuid.UUID]*model.Post),
		history:       make(map[uuid.UUID][]*model.PostHistory),
		payments:      make(map[uuid.UUID]*model.Payment),
		subscriptions: make(map[uuid.UUID]*model.Subscription),
		stats:         make(map[string]*model.SystemStatistics),
	}
	return &store.Stores{
		Tenants:       &tenantStore{b},
		Sessions:      &sessionStore{b},
		Groups:        &groupStore{b},
		Ads:           &adStore{b},
		Posts:         &postStore{b},
		Payments:      &paymentStore{b},
		Subscriptions: &subscriptionStore{b},
		Stats:         &statsStore{b},
	}, b
}

// Seed helpers used by tests and the demo seeder. Each stores a copy so
// callers can keep mutating their value without racing the backend.

func (b *Backend) PutTenant(t *model.Tenant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *t
	b.tenants[t.ID] = &c
}

func (b *Backend) PutSession(s *model.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *s
	b.sessions[s.ID] = &c
}

func (b *Backend) PutGroup(g *model.Group) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *g
	b.groups[g.ID] = &c
}

func (b *Backend) PutAd(a *model.Ad) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *a
	b.ads[a.ID] = &c
}

func (b *Backend) PutPayment(p *model.Payment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *p
	b.payments[p.ID] = &c
}

func (b *Backend) PutSubscription(s *model.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *s
	b.subscriptions[s.ID] = &c
}

// StatsRow returns the rollup row for a date key, or nil.
func (b *Backend) StatsRow(key string) *model.SystemStatistics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if row, ok := b.stats[key]; ok {
		c := *row
		return &c
	}
	return nil
}
