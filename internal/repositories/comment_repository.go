package repositories

import (
	"context"
	"errors"

	"github.com/aniview/aniview/backend/internal/models"
)

// ErrCommentNotFound is returned when an operation targets a comment that
// does not exist (or no longer exists).
var ErrCommentNotFound = errors.New("comment not found")

// CommentRepository defines the interface for comment data operations.
//
// Comments are append-only. The single mutable field, LikingUserIDs, may
// only change through ToggleLike, which every implementation must run as an
// atomic read-modify-write against the one comment document so that
// concurrent toggles from different users never lose an update.
type CommentRepository interface {
	// CreateComment persists a new comment, assigning its ID and CreatedAt.
	CreateComment(ctx context.Context, comment *models.Comment) error

	// GetCommentByID fetches a single comment, ErrCommentNotFound if absent.
	GetCommentByID(ctx context.Context, id string) (*models.Comment, error)

	// GetCommentsByScope returns the complete flat set of comments in
	// scope, newest first.
	GetCommentsByScope(ctx context.Context, scope models.Scope) ([]models.Comment, error)

	// ToggleLike flips userID's membership in the comment's liking set and
	// returns the comment as committed. Conflicting concurrent toggles are
	// retried a bounded number of times before the error surfaces.
	ToggleLike(ctx context.Context, commentID, userID string) (*models.Comment, error)

	// Subscribe streams snapshots of the scope's complete flat comment set,
	// one emission per change plus an initial emission. The channel closes
	// when ctx is canceled; canceling is how the caller detaches the
	// listener.
	Subscribe(ctx context.Context, scope models.Scope) (<-chan []models.Comment, error)
}

// toggleMembership returns ids with userID removed if present, appended if
// not. The returned slice never contains duplicates of userID even if the
// stored set somehow did.
func toggleMembership(ids []string, userID string) []string {
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, id := range ids {
		if id == userID {
			found = true
			continue
		}
		out = append(out, id)
	}
	if !found {
		out = append(out, userID)
	}
	return out
}
