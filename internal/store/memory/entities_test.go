package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

func TestBatchAddDeduplicates(t *testing.T) {
	stores, _ := NewStores()
	sessionID := uuid.Must(uuid.NewV7())

	batch := []*model.Group{
		{SessionID: sessionID, PlatformID: 100, Title: "alpha", IsActive: true},
		{SessionID: sessionID, PlatformID: 200, Title: "beta", IsActive: true},
	}
	added, err := stores.Groups.BatchAdd(context.Background(), batch)
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Fatalf("first batch added %d, want 2", added)
	}

	// Same platform ids again plus one new: only the new one lands.
	again := []*model.Group{
		{SessionID: sessionID, PlatformID: 100, Title: "alpha"},
		{SessionID: sessionID, PlatformID: 300, Title: "gamma", IsActive: true},
	}
	added, err = stores.Groups.BatchAdd(context.Background(), again)
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("second batch added %d, want 1", added)
	}

	groups, err := stores.Groups.ListBySession(context.Background(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 3 {
		t.Errorf("session has %d groups, want 3", len(groups))
	}
	for _, g := range groups {
		if g.ID == uuid.Nil {
			t.Errorf("group %d has no id assigned", g.PlatformID)
		}
	}

	// The same platform id under another session is a distinct group.
	other := uuid.Must(uuid.NewV7())
	added, err = stores.Groups.BatchAdd(context.Background(), []*model.Group{
		{SessionID: other, PlatformID: 100, Title: "alpha elsewhere"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("cross-session add = %d, want 1", added)
	}
}

func TestFreezeLifecycle(t *testing.T) {
	stores, backend := NewStores()
	sess := &model.Session{
		ID: uuid.Must(uuid.NewV7()), TenantID: uuid.Must(uuid.NewV7()),
		SessionString: "credential", Status: model.SessionActive,
	}
	backend.PutSession(sess)

	frozenAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := stores.Sessions.SetFrozen(context.Background(), sess.ID, frozenAt, nil); err != nil {
		t.Fatal(err)
	}
	got, err := stores.Sessions.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsFrozen || got.FrozenAt == nil || got.FreezeCount != 1 {
		t.Errorf("after freeze: frozen=%v frozenAt=%v count=%d", got.IsFrozen, got.FrozenAt, got.FreezeCount)
	}
	if got.Status != model.SessionActive {
		t.Errorf("freeze without status change flipped status to %s", got.Status)
	}

	listed, err := stores.Sessions.ListFrozenBefore(context.Background(), frozenAt.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Fatalf("ListFrozenBefore = %d sessions, want 1", len(listed))
	}
	listed, err = stores.Sessions.ListFrozenBefore(context.Background(), frozenAt.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 0 {
		t.Errorf("ListFrozenBefore with an earlier cutoff = %d, want 0", len(listed))
	}

	// A second freeze with a status bumps the counter and flips the status.
	banned := model.SessionBanned
	if err := stores.Sessions.SetFrozen(context.Background(), sess.ID, frozenAt.Add(time.Hour), &banned); err != nil {
		t.Fatal(err)
	}
	got, _ = stores.Sessions.GetByID(context.Background(), sess.ID)
	if got.FreezeCount != 2 || got.Status != model.SessionBanned {
		t.Errorf("after second freeze: count=%d status=%s, want 2/banned", got.FreezeCount, got.Status)
	}

	if err := stores.Sessions.ClearFreeze(context.Background(), sess.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = stores.Sessions.GetByID(context.Background(), sess.ID)
	if got.IsFrozen || got.FrozenAt != nil {
		t.Error("freeze flags survive ClearFreeze")
	}
	if got.FreezeCount != 2 {
		t.Errorf("ClearFreeze reset the freeze count to %d", got.FreezeCount)
	}
}

func TestScheduledDueAndResult(t *testing.T) {
	stores, backend := NewStores()
	tenantID := uuid.Must(uuid.NewV7())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	due := now.Add(-time.Minute)
	ad := &model.Ad{
		ID: uuid.Must(uuid.NewV7()), TenantID: tenantID, Content: "hello",
		Status: model.AdActive, IsScheduled: true, ScheduledFor: &due,
	}
	backend.PutAd(ad)

	closed := &model.Ad{
		ID: uuid.Must(uuid.NewV7()), TenantID: tenantID, Content: "bye",
		Status: model.AdClosed, IsScheduled: true, ScheduledFor: &due,
	}
	backend.PutAd(closed)

	got, err := stores.Ads.ListScheduledDue(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != ad.ID {
		t.Fatalf("due = %+v, want only the active scheduled ad", got)
	}

	// A successful publish clears the schedule flag.
	if err := stores.Ads.SetScheduleResult(context.Background(), ad.ID, true, now, ""); err != nil {
		t.Fatal(err)
	}
	row, _ := stores.Ads.GetByID(context.Background(), ad.ID)
	if row.IsScheduled || row.LastScheduledAt == nil || row.LastError != "" {
		t.Errorf("after success: scheduled=%v lastAt=%v err=%q", row.IsScheduled, row.LastScheduledAt, row.LastError)
	}
	got, _ = stores.Ads.ListScheduledDue(context.Background(), now.Add(time.Hour))
	if len(got) != 0 {
		t.Error("published ad still listed as due")
	}

	// A failed publish pauses the ad and keeps it scheduled for retry.
	retry := &model.Ad{
		ID: uuid.Must(uuid.NewV7()), TenantID: tenantID, Content: "again",
		Status: model.AdActive, IsScheduled: true, ScheduledFor: &due,
	}
	backend.PutAd(retry)
	if err := stores.Ads.SetScheduleResult(context.Background(), retry.ID, false, now, "no usable session"); err != nil {
		t.Fatal(err)
	}
	row, _ = stores.Ads.GetByID(context.Background(), retry.ID)
	if row.Status != model.AdPaused || row.LastError != "no usable session" || !row.IsScheduled {
		t.Errorf("after failure: status=%s err=%q scheduled=%v", row.Status, row.LastError, row.IsScheduled)
	}
	got, _ = stores.Ads.ListScheduledDue(context.Background(), now)
	if len(got) != 1 || got[0].ID != retry.ID {
		t.Error("paused scheduled ad must stay in the due list for the next tick")
	}
}

func TestPostFinishedAtStamped(t *testing.T) {
	stores, _ := NewStores()
	post := &model.Post{
		ID: uuid.Must(uuid.NewV7()), AdID: uuid.Must(uuid.NewV7()),
		SessionID: uuid.Must(uuid.NewV7()), Status: model.PostPending,
	}
	if err := stores.Posts.Create(context.Background(), post); err != nil {
		t.Fatal(err)
	}

	if err := stores.Posts.UpdateStatus(context.Background(), post.ID, model.PostInProgress); err != nil {
		t.Fatal(err)
	}
	row, _ := stores.Posts.GetByID(context.Background(), post.ID)
	if row.FinishedAt != nil {
		t.Error("in_progress stamped finishedAt")
	}

	if err := stores.Posts.UpdateStatus(context.Background(), post.ID, model.PostCompleted); err != nil {
		t.Fatal(err)
	}
	row, _ = stores.Posts.GetByID(context.Background(), post.ID)
	if row.FinishedAt == nil {
		t.Fatal("completed post has no finishedAt")
	}
	first := *row.FinishedAt

	// A redundant terminal update keeps the original stamp.
	if err := stores.Posts.UpdateStatus(context.Background(), post.ID, model.PostCancelled); err != nil {
		t.Fatal(err)
	}
	row, _ = stores.Posts.GetByID(context.Background(), post.ID)
	if !row.FinishedAt.Equal(first) {
		t.Error("finishedAt moved on a second terminal update")
	}
}

func TestNotFoundErrors(t *testing.T) {
	stores, _ := NewStores()
	id := uuid.Must(uuid.NewV7())
	ctx := context.Background()

	checks := []struct {
		name string
		err  error
	}{
		{"tenant get", func() error { _, err := stores.Tenants.GetByID(ctx, id); return err }()},
		{"session get", func() error { _, err := stores.Sessions.GetByID(ctx, id); return err }()},
		{"session clear freeze", stores.Sessions.ClearFreeze(ctx, id)},
		{"group get", func() error { _, err := stores.Groups.GetByID(ctx, id); return err }()},
		{"group set last post", stores.Groups.SetLastPost(ctx, id, time.Now())},
		{"ad get", func() error { _, err := stores.Ads.GetByID(ctx, id); return err }()},
		{"post get", func() error { _, err := stores.Posts.GetByID(ctx, id); return err }()},
		{"payment expire", stores.Payments.Expire(ctx, id)},
		{"subscription expire", stores.Subscriptions.Expire(ctx, id)},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if !errors.Is(c.err, store.ErrNotFound) {
				t.Errorf("err = %v, want store.ErrNotFound", c.err)
			}
		})
	}
}

func TestSeedHelpersCopy(t *testing.T) {
	stores, backend := NewStores()
	sess := &model.Session{
		ID: uuid.Must(uuid.NewV7()), TenantID: uuid.Must(uuid.NewV7()),
		Name: "original", SessionString: "credential", Status: model.SessionActive,
	}
	backend.PutSession(sess)

	// Mutating the seed value after Put must not leak into the store.
	sess.Name = "mutated"
	got, err := stores.Sessions.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "original" {
		t.Errorf("stored name = %q, want the value at Put time", got.Name)
	}

	// Mutating a read result must not write through either.
	got.Name = "scribbled"
	again, _ := stores.Sessions.GetByID(context.Background(), sess.ID)
	if again.Name != "original" {
		t.Error("reads alias the stored row")
	}
}
