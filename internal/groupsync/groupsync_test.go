package groupsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/clock"
	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/platform"
	"github.com/nextlevelbuilder/adrelay/internal/store/memory"
)

type stubHandle struct{ id string }

func (h *stubHandle) SessionID() string { return h.id }

// stubClient serves a fixed snapshot list from SyncGroups.
type stubClient struct {
	snaps   []platform.GroupSnapshot
	syncErr error
}

func (c *stubClient) Connect(_ context.Context, s *model.Session) (platform.Handle, error) {
	return &stubHandle{id: s.ID.String()}, nil
}
func (c *stubClient) Disconnect(context.Context, platform.Handle) error { return nil }
func (c *stubClient) IsConnected(platform.Handle) bool                  { return true }
func (c *stubClient) Send(context.Context, platform.Handle, int64, string) (platform.SendResult, error) {
	return platform.SendResult{}, errors.New("not a sender")
}
func (c *stubClient) SyncGroups(context.Context, platform.Handle) ([]platform.GroupSnapshot, error) {
	return c.snaps, c.syncErr
}

func snapshot(id int64, title string, members int) platform.GroupSnapshot {
	return platform.GroupSnapshot{
		PlatformID:  id,
		Title:       title,
		Kind:        model.KindSupergroup,
		MemberCount: members,
	}
}

func TestSyncSession(t *testing.T) {
	stores, backend := memory.NewStores()
	client := &stubClient{snaps: []platform.GroupSnapshot{
		snapshot(100, "alpha", 50),
		snapshot(200, "beta", 120),
		snapshot(300, "gamma", 7),
	}}
	svc := New(clock.NewSystem(), stores, client)

	sess := &model.Session{
		ID:            uuid.Must(uuid.NewV7()),
		TenantID:      uuid.Must(uuid.NewV7()),
		SessionString: "credential",
		Status:        model.SessionActive,
		CreatedAt:     time.Now(),
	}
	backend.PutSession(sess)

	res, err := svc.SyncSession(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 3 || res.Refreshed != 0 || res.Total != 3 {
		t.Errorf("first sync = added %d refreshed %d total %d, want 3/0/3",
			res.Added, res.Refreshed, res.Total)
	}

	// Same snapshots again: nothing added, everything refreshed.
	res, err = svc.SyncSession(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 0 || res.Refreshed != 3 || res.Total != 3 {
		t.Errorf("second sync = added %d refreshed %d total %d, want 0/3/3",
			res.Added, res.Refreshed, res.Total)
	}

	// A refresh carries the new title and member count.
	client.snaps[0] = snapshot(100, "alpha renamed", 55)
	if _, err := svc.SyncSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	groups, err := stores.Groups.ListBySession(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, g := range groups {
		if g.PlatformID == 100 {
			found = true
			if g.Title != "alpha renamed" || g.MemberCount != 55 {
				t.Errorf("refreshed group = %q/%d, want alpha renamed/55", g.Title, g.MemberCount)
			}
		}
	}
	if !found {
		t.Fatal("group 100 missing after refresh")
	}

	got, err := stores.Sessions.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalGroups != 3 || got.ActiveGroups != 3 {
		t.Errorf("session stats = %d/%d, want 3/3", got.TotalGroups, got.ActiveGroups)
	}
	if got.LastSyncAt == nil {
		t.Error("lastSyncAt not stamped")
	}
}

func TestSyncSessionCountsOnlyDeliverableAsActive(t *testing.T) {
	stores, backend := memory.NewStores()
	client := &stubClient{snaps: []platform.GroupSnapshot{
		snapshot(100, "alpha", 10),
		snapshot(200, "beta", 10),
	}}
	svc := New(clock.NewSystem(), stores, client)

	sess := &model.Session{
		ID:            uuid.Must(uuid.NewV7()),
		TenantID:      uuid.Must(uuid.NewV7()),
		SessionString: "credential",
		Status:        model.SessionActive,
		CreatedAt:     time.Now(),
	}
	backend.PutSession(sess)

	if _, err := svc.SyncSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	groups, err := stores.Groups.ListBySession(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := stores.Groups.MarkRestricted(context.Background(), groups[0].ID, "write forbidden", nil, true); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SyncSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	got, err := stores.Sessions.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalGroups != 2 || got.ActiveGroups != 1 {
		t.Errorf("session stats = %d/%d, want 2/1", got.TotalGroups, got.ActiveGroups)
	}
}

func TestSyncSessionNotUsable(t *testing.T) {
	stores, _ := memory.NewStores()
	svc := New(clock.NewSystem(), stores, &stubClient{})

	sess := &model.Session{
		ID:       uuid.Must(uuid.NewV7()),
		TenantID: uuid.Must(uuid.NewV7()),
		Status:   model.SessionActive,
		IsFrozen: true,
	}
	if _, err := svc.SyncSession(context.Background(), sess); err == nil {
		t.Fatal("sync of a frozen session succeeded")
	}
}

func TestSyncTenant(t *testing.T) {
	stores, backend := memory.NewStores()
	client := &stubClient{snaps: []platform.GroupSnapshot{snapshot(100, "alpha", 10)}}
	svc := New(clock.NewSystem(), stores, client)

	tenantID := uuid.Must(uuid.NewV7())
	usable := &model.Session{
		ID: uuid.Must(uuid.NewV7()), TenantID: tenantID,
		SessionString: "credential", Status: model.SessionActive,
	}
	frozen := &model.Session{
		ID: uuid.Must(uuid.NewV7()), TenantID: tenantID,
		SessionString: "credential", Status: model.SessionActive, IsFrozen: true,
	}
	backend.PutSession(usable)
	backend.PutSession(frozen)

	results, err := svc.SyncTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].SessionID != usable.ID {
		t.Fatalf("results = %+v, want one result for the usable session", results)
	}
}

func TestSyncAll(t *testing.T) {
	stores, backend := memory.NewStores()
	client := &stubClient{snaps: []platform.GroupSnapshot{snapshot(100, "alpha", 10)}}
	svc := New(clock.NewSystem(), stores, client)

	a := &model.Session{
		ID: uuid.Must(uuid.NewV7()), TenantID: uuid.Must(uuid.NewV7()),
		SessionString: "credential", Status: model.SessionActive,
	}
	b := &model.Session{
		ID: uuid.Must(uuid.NewV7()), TenantID: uuid.Must(uuid.NewV7()),
		SessionString: "credential", Status: model.SessionActive,
	}
	inactive := &model.Session{
		ID: uuid.Must(uuid.NewV7()), TenantID: uuid.Must(uuid.NewV7()),
		SessionString: "credential", Status: model.SessionInactive,
	}
	backend.PutSession(a)
	backend.PutSession(b)
	backend.PutSession(inactive)

	if err := svc.SyncAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, sess := range []*model.Session{a, b} {
		got, err := stores.Sessions.GetByID(context.Background(), sess.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.LastSyncAt == nil || got.TotalGroups != 1 {
			t.Errorf("session %s not synced: lastSyncAt=%v total=%d", sess.ID, got.LastSyncAt, got.TotalGroups)
		}
	}
	got, _ := stores.Sessions.GetByID(context.Background(), inactive.ID)
	if got.LastSyncAt != nil {
		t.Error("inactive session was synced")
	}
}

func TestSyncTenantReportsLastError(t *testing.T) {
	stores, backend := memory.NewStores()
	client := &stubClient{syncErr: errors.New("platform down")}
	svc := New(clock.NewSystem(), stores, client)

	tenantID := uuid.Must(uuid.NewV7())
	backend.PutSession(&model.Session{
		ID: uuid.Must(uuid.NewV7()), TenantID: tenantID,
		SessionString: "credential", Status: model.SessionActive,
	})

	results, err := svc.SyncTenant(context.Background(), tenantID)
	if err == nil {
		t.Fatal("want the per-session sync error surfaced")
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}
