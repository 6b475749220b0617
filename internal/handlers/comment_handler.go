package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/aniview/aniview/backend/internal/models"
	"github.com/aniview/aniview/backend/internal/repositories"
	"github.com/aniview/aniview/backend/internal/thread"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comment threads
type CommentHandler struct {
	commentRepository repositories.CommentRepository
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(commentRepo repositories.CommentRepository) *CommentHandler {
	return &CommentHandler{commentRepository: commentRepo}
}

// RegisterCommentRoutes registers comment-related routes. Reads are public;
// posting and liking require an authenticated caller.
func (h *CommentHandler) RegisterCommentRoutes(public, protected *echo.Group) {
	public.GET("/titles/:title_id/comments", h.GetThread)
	public.GET("/titles/:title_id/comments/stream", h.StreamThread)
	protected.POST("/titles/:title_id/comments", h.CreateComment)
	protected.POST("/comments/:id/like", h.ToggleLike)
}

// threadPayload is one rendered thread: the clamped forest plus the flat
// record count. Total deliberately counts the flat set — orphaned replies
// get promoted to roots, so the forest alone would undercount.
type threadPayload struct {
	TitleID   string         `json:"title_id"`
	EpisodeID *string        `json:"episode_id,omitempty"`
	Total     int            `json:"total"`
	Comments  []*thread.Node `json:"comments"`
}

func buildThreadPayload(scope models.Scope, comments []models.Comment) threadPayload {
	if n := orphanCount(comments); n > 0 {
		log.Printf("thread %s/%v: %d replies promoted to roots (parent outside scope)",
			scope.TitleID, scope.EpisodeID, n)
	}
	forest := thread.ClampDepth(thread.Build(comments), thread.MaxDepth)
	return threadPayload{
		TitleID:   scope.TitleID,
		EpisodeID: scope.EpisodeID,
		Total:     len(comments),
		Comments:  forest,
	}
}

// CreateComment posts a new comment or reply into a title's discussion
func (h *CommentHandler) CreateComment(c echo.Context) error {
	userID, err := authenticatedUser(c)
	if err != nil {
		return err
	}
	titleID := c.Param("title_id")

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	comment := &models.Comment{
		TitleID:       titleID,
		EpisodeID:     req.EpisodeID,
		AuthorID:      userID,
		Text:          req.Text,
		IsSpoiler:     req.IsSpoiler,
		LikingUserIDs: []string{},
		ParentID:      req.ParentID,
	}

	if req.ParentID != nil {
		parent, err := h.commentRepository.GetCommentByID(c.Request().Context(), *req.ParentID)
		if err != nil {
			if errors.Is(err, repositories.ErrCommentNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "Parent comment not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if parent.TitleID != titleID || !sameEpisode(parent.EpisodeID, req.EpisodeID) {
			return echo.NewHTTPError(http.StatusBadRequest, "Parent comment belongs to a different discussion")
		}
		// Replies are never spoiler-flagged; only roots carry the flag.
		comment.IsSpoiler = false
	}

	if err := h.commentRepository.CreateComment(c.Request().Context(), comment); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, comment)
}

// GetThread returns the reconstructed comment forest for one discussion
func (h *CommentHandler) GetThread(c echo.Context) error {
	scope := scopeFromRequest(c)

	comments, err := h.commentRepository.GetCommentsByScope(c.Request().Context(), scope)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, buildThreadPayload(scope, comments))
}

// StreamThread streams the discussion as server-sent events: one rendered
// thread per snapshot, starting with the current state. The subscription is
// detached when the client disconnects.
func (h *CommentHandler) StreamThread(c echo.Context) error {
	scope := scopeFromRequest(c)
	ctx := c.Request().Context()

	snapshots, err := h.commentRepository.Subscribe(ctx, scope)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case comments, ok := <-snapshots:
			if !ok {
				return nil
			}
			data, err := json.Marshal(buildThreadPayload(scope, comments))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// ToggleLike flips the caller's like on a comment
func (h *CommentHandler) ToggleLike(c echo.Context) error {
	userID, err := authenticatedUser(c)
	if err != nil {
		return err
	}
	commentID := c.Param("id")

	comment, err := h.commentRepository.ToggleLike(c.Request().Context(), commentID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Comment not found")
		}
		// Covers transaction retry exhaustion; the client may simply retry.
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Could not record the like, please try again")
	}

	return c.JSON(http.StatusOK, models.ToggleLikeResponse{
		CommentID:  comment.ID,
		UserID:     userID,
		Liked:      comment.LikedBy(userID),
		LikesCount: len(comment.LikingUserIDs),
	})
}

// authenticatedUser returns the caller's user ID, rejecting the request
// before any store call when authentication middleware has not attached one.
func authenticatedUser(c echo.Context) (string, error) {
	userID, ok := c.Get("firebaseUID").(string)
	if !ok || userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	return userID, nil
}

func scopeFromRequest(c echo.Context) models.Scope {
	scope := models.Scope{TitleID: c.Param("title_id")}
	if episode := c.QueryParam("episode_id"); episode != "" {
		scope.EpisodeID = &episode
	}
	return scope
}

func orphanCount(comments []models.Comment) int {
	ids := make(map[string]bool, len(comments))
	for _, c := range comments {
		ids[c.ID] = true
	}
	n := 0
	for _, c := range comments {
		if c.ParentID != nil && !ids[*c.ParentID] {
			n++
		}
	}
	return n
}

func sameEpisode(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
