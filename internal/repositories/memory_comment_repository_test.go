package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aniview/aniview/backend/internal/models"
)

func seedComment(t *testing.T, repo *MemoryCommentRepository, titleID string) *models.Comment {
	t.Helper()
	c := &models.Comment{
		TitleID:  titleID,
		AuthorID: "author-1",
		Text:     "first!",
	}
	if err := repo.CreateComment(context.Background(), c); err != nil {
		t.Fatalf("seeding comment: %v", err)
	}
	return c
}

func TestCreateCommentAssignsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryCommentRepository()
	c := seedComment(t, repo, "title-1")

	if c.ID == "" {
		t.Error("expected an assigned ID")
	}
	if c.CreatedAt.IsZero() {
		t.Error("expected an assigned CreatedAt")
	}
	if c.LikingUserIDs == nil {
		t.Error("expected an initialized liking set")
	}
}

func TestToggleLikeAddsAndRemoves(t *testing.T) {
	repo := NewMemoryCommentRepository()
	c := seedComment(t, repo, "title-1")
	ctx := context.Background()

	liked, err := repo.ToggleLike(ctx, c.ID, "user-9")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !liked.LikedBy("user-9") || len(liked.LikingUserIDs) != 1 {
		t.Errorf("expected exactly [user-9], got %v", liked.LikingUserIDs)
	}

	unliked, err := repo.ToggleLike(ctx, c.ID, "user-9")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if unliked.LikedBy("user-9") || len(unliked.LikingUserIDs) != 0 {
		t.Errorf("expected toggle involution to restore empty set, got %v", unliked.LikingUserIDs)
	}
}

func TestToggleLikeLeavesOtherMembersAlone(t *testing.T) {
	repo := NewMemoryCommentRepository()
	c := seedComment(t, repo, "title-1")
	ctx := context.Background()

	if _, err := repo.ToggleLike(ctx, c.ID, "user-a"); err != nil {
		t.Fatal(err)
	}
	got, err := repo.ToggleLike(ctx, c.ID, "user-b")
	if err != nil {
		t.Fatal(err)
	}
	if !got.LikedBy("user-a") || !got.LikedBy("user-b") {
		t.Errorf("expected both user-a and user-b, got %v", got.LikingUserIDs)
	}
}

func TestToggleLikeUnknownComment(t *testing.T) {
	repo := NewMemoryCommentRepository()
	_, err := repo.ToggleLike(context.Background(), "nope", "user-1")
	if !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("expected ErrCommentNotFound, got %v", err)
	}
}

func TestConcurrentTogglesByDifferentUsersConverge(t *testing.T) {
	repo := NewMemoryCommentRepository()
	c := seedComment(t, repo, "title-1")
	ctx := context.Background()

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := repo.ToggleLike(ctx, c.ID, userID); err != nil {
				t.Errorf("toggle for %s: %v", userID, err)
			}
		}(u)
	}
	wg.Wait()

	final, err := repo.GetCommentByID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(final.LikingUserIDs) != len(users) {
		t.Fatalf("lost updates: expected %d likes, got %d (%v)",
			len(users), len(final.LikingUserIDs), final.LikingUserIDs)
	}
	for _, u := range users {
		if !final.LikedBy(u) {
			t.Errorf("missing like from %s", u)
		}
	}
}

func TestConcurrentToggleStormEndsConsistent(t *testing.T) {
	// Each user toggles an odd number of times; every one of them must end
	// up a member regardless of interleaving.
	repo := NewMemoryCommentRepository()
	c := seedComment(t, repo, "title-1")
	ctx := context.Background()

	users := []string{"u1", "u2", "u3"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := repo.ToggleLike(ctx, c.ID, userID); err != nil {
					t.Errorf("toggle for %s: %v", userID, err)
				}
			}
		}(u)
	}
	wg.Wait()

	final, err := repo.GetCommentByID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range users {
		if !final.LikedBy(u) {
			t.Errorf("expected %s to end as a member after 5 toggles", u)
		}
	}
	if len(final.LikingUserIDs) != len(users) {
		t.Errorf("expected %d members, got %v", len(users), final.LikingUserIDs)
	}
}

func TestGetCommentsByScopeFiltersAndOrders(t *testing.T) {
	repo := NewMemoryCommentRepository()
	ctx := context.Background()
	episode := "ep-1"

	titleWide := &models.Comment{TitleID: "title-1", AuthorID: "a", Text: "about the show"}
	episodeScoped := &models.Comment{TitleID: "title-1", EpisodeID: &episode, AuthorID: "a", Text: "about ep 1"}
	otherTitle := &models.Comment{TitleID: "title-2", AuthorID: "a", Text: "other"}
	for _, c := range []*models.Comment{titleWide, episodeScoped, otherTitle} {
		if err := repo.CreateComment(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.GetCommentsByScope(ctx, models.Scope{TitleID: "title-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != titleWide.ID {
		t.Errorf("title-wide scope: expected only %s, got %d comments", titleWide.ID, len(got))
	}

	got, err = repo.GetCommentsByScope(ctx, models.Scope{TitleID: "title-1", EpisodeID: &episode})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != episodeScoped.ID {
		t.Errorf("episode scope: expected only %s, got %d comments", episodeScoped.ID, len(got))
	}
}

func TestSubscribeEmitsInitialAndUpdatedSnapshots(t *testing.T) {
	repo := NewMemoryCommentRepository()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := seedComment(t, repo, "title-1")

	snapshots, err := repo.Subscribe(ctx, models.Scope{TitleID: "title-1"})
	if err != nil {
		t.Fatal(err)
	}

	initial := receiveSnapshot(t, snapshots)
	if len(initial) != 1 || initial[0].ID != first.ID {
		t.Fatalf("expected initial snapshot with the seeded comment, got %d", len(initial))
	}

	second := seedComment(t, repo, "title-1")
	updated := receiveSnapshot(t, snapshots)
	if len(updated) != 2 {
		t.Fatalf("expected 2 comments after second post, got %d", len(updated))
	}
	ids := map[string]bool{updated[0].ID: true, updated[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Errorf("expected snapshot to contain both comments, got %v", ids)
	}
}

func TestSubscribeIgnoresOtherScopes(t *testing.T) {
	repo := NewMemoryCommentRepository()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, err := repo.Subscribe(ctx, models.Scope{TitleID: "title-1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := receiveSnapshot(t, snapshots); len(got) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", len(got))
	}

	seedComment(t, repo, "title-2")

	select {
	case snap, ok := <-snapshots:
		if ok {
			t.Errorf("unexpected snapshot for unrelated scope: %d comments", len(snap))
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	repo := NewMemoryCommentRepository()
	ctx, cancel := context.WithCancel(context.Background())

	snapshots, err := repo.Subscribe(ctx, models.Scope{TitleID: "title-1"})
	if err != nil {
		t.Fatal(err)
	}
	receiveSnapshot(t, snapshots)

	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-snapshots:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func receiveSnapshot(t *testing.T, ch <-chan []models.Comment) []models.Comment {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
