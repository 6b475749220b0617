package models

import "time"

// Comment represents a single comment on a title or episode discussion.
// Comments are append-only: once written, every field except LikingUserIDs
// is immutable. LikingUserIDs mutates only through the transactional
// like toggle in the repository layer.
type Comment struct {
	ID            string    `json:"id" bson:"_id" firestore:"-"`
	TitleID       string    `json:"title_id" bson:"title_id" firestore:"title_id"`
	EpisodeID     *string   `json:"episode_id,omitempty" bson:"episode_id" firestore:"episode_id"` // nil means the comment applies to the whole title
	AuthorID      string    `json:"author_id" bson:"author_id" firestore:"author_id"`
	Text          string    `json:"text" bson:"text" firestore:"text"`
	IsSpoiler     bool      `json:"is_spoiler" bson:"is_spoiler" firestore:"is_spoiler"`
	LikingUserIDs []string  `json:"liking_user_ids" bson:"liking_user_ids" firestore:"liking_user_ids"`
	ParentID      *string   `json:"parent_id,omitempty" bson:"parent_id" firestore:"parent_id"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" firestore:"created_at,serverTimestamp"`
}

// LikedBy reports whether userID is a member of the comment's liking set.
func (c *Comment) LikedBy(userID string) bool {
	for _, id := range c.LikingUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Scope identifies the discussion a comment belongs to. A nil EpisodeID
// selects the title-wide discussion rather than a single episode's.
type Scope struct {
	TitleID   string
	EpisodeID *string
}

// CreateCommentRequest defines the request body for posting a new comment
type CreateCommentRequest struct {
	Text      string  `json:"text" validate:"required,min=1,max=2000"`
	EpisodeID *string `json:"episode_id,omitempty" validate:"omitempty,min=1,max=64"`
	ParentID  *string `json:"parent_id,omitempty" validate:"omitempty,min=1,max=64"`
	IsSpoiler bool    `json:"is_spoiler"`
}

// ToggleLikeResponse reports the post-toggle state of a comment's liking set.
type ToggleLikeResponse struct {
	CommentID  string `json:"comment_id"`
	UserID     string `json:"user_id"`
	Liked      bool   `json:"liked"`
	LikesCount int    `json:"likes_count"`
}
