package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aniview/aniview/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryCommentRepository is an in-process CommentRepository. It backs the
// test suites and the local development driver; nothing here survives a
// restart. A single mutex stands in for per-document transactions, which
// gives ToggleLike the same atomicity the real stores provide.
type MemoryCommentRepository struct {
	mu       sync.Mutex
	comments map[string]models.Comment
	subs     map[int]*memorySubscriber
	nextSub  int
}

type memorySubscriber struct {
	scope models.Scope
	ch    chan []models.Comment
}

// NewMemoryCommentRepository creates an empty MemoryCommentRepository
func NewMemoryCommentRepository() *MemoryCommentRepository {
	return &MemoryCommentRepository{
		comments: make(map[string]models.Comment),
		subs:     make(map[int]*memorySubscriber),
	}
}

// CreateComment stores a new comment, assigning its ID and CreatedAt.
func (r *MemoryCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	comment.ID = uuid.NewString()
	comment.CreatedAt = time.Now().UTC()
	comment.LikingUserIDs = append([]string{}, comment.LikingUserIDs...)
	r.comments[comment.ID] = *comment
	r.broadcastLocked(models.Scope{TitleID: comment.TitleID, EpisodeID: comment.EpisodeID})
	return nil
}

// GetCommentByID retrieves a stored comment by ID.
func (r *MemoryCommentRepository) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	comment, ok := r.comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	return &comment, nil
}

// GetCommentsByScope returns all comments in scope, newest first.
func (r *MemoryCommentRepository) GetCommentsByScope(ctx context.Context, scope models.Scope) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(scope), nil
}

// ToggleLike flips userID's membership in the comment's liking set. The
// repository mutex makes the read-modify-write atomic, so concurrent
// toggles by different users both land.
func (r *MemoryCommentRepository) ToggleLike(ctx context.Context, commentID, userID string) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	comment, ok := r.comments[commentID]
	if !ok {
		return nil, ErrCommentNotFound
	}
	comment.LikingUserIDs = toggleMembership(comment.LikingUserIDs, userID)
	r.comments[commentID] = comment
	r.broadcastLocked(models.Scope{TitleID: comment.TitleID, EpisodeID: comment.EpisodeID})
	return &comment, nil
}

// Subscribe registers a listener for the scope and immediately emits the
// current snapshot. Canceling ctx unregisters the listener and closes the
// channel.
func (r *MemoryCommentRepository) Subscribe(ctx context.Context, scope models.Scope) (<-chan []models.Comment, error) {
	r.mu.Lock()
	sub := &memorySubscriber{
		scope: scope,
		ch:    make(chan []models.Comment, 64),
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = sub
	sub.send(r.snapshotLocked(scope))
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, id)
		close(sub.ch)
		r.mu.Unlock()
	}()
	return sub.ch, nil
}

// send delivers a snapshot without ever blocking a mutation: if the
// subscriber is slow, the oldest pending snapshot is dropped since only the
// latest complete set matters.
func (s *memorySubscriber) send(snapshot []models.Comment) {
	for {
		select {
		case s.ch <- snapshot:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func (r *MemoryCommentRepository) broadcastLocked(scope models.Scope) {
	for _, sub := range r.subs {
		if scopesEqual(sub.scope, scope) {
			sub.send(r.snapshotLocked(sub.scope))
		}
	}
}

func (r *MemoryCommentRepository) snapshotLocked(scope models.Scope) []models.Comment {
	out := []models.Comment{}
	for _, c := range r.comments {
		if c.TitleID == scope.TitleID && episodesEqual(c.EpisodeID, scope.EpisodeID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func scopesEqual(a, b models.Scope) bool {
	return a.TitleID == b.TitleID && episodesEqual(a.EpisodeID, b.EpisodeID)
}

func episodesEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
