package repositories

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/aniview/aniview/backend/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreCommentRepository implements CommentRepository on Firestore.
// Like toggles run inside RunTransaction, whose optimistic retry loop
// re-reads the document on every attempt, and live threads come from query
// snapshot listeners.
type FirestoreCommentRepository struct {
	client     *firestore.Client
	collection *firestore.CollectionRef
}

// NewFirestoreCommentRepository creates a new FirestoreCommentRepository
func NewFirestoreCommentRepository(client *firestore.Client) *FirestoreCommentRepository {
	return &FirestoreCommentRepository{
		client:     client,
		collection: client.Collection("comments"),
	}
}

// CreateComment writes a new comment document. The document ID is assigned
// locally, CreatedAt by the server (serverTimestamp tag on the model); the
// written document is read back so the caller sees the server-assigned
// timestamp.
func (r *FirestoreCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.LikingUserIDs == nil {
		comment.LikingUserIDs = []string{}
	}
	ref := r.collection.NewDoc()
	comment.ID = ref.ID
	if _, err := ref.Create(ctx, comment); err != nil {
		return err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		return err
	}
	return decodeComment(doc, comment)
}

// GetCommentByID retrieves a single comment document.
func (r *FirestoreCommentRepository) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	doc, err := r.collection.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	var comment models.Comment
	if err := decodeComment(doc, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetCommentsByScope returns all comments in scope, newest first.
func (r *FirestoreCommentRepository) GetCommentsByScope(ctx context.Context, scope models.Scope) ([]models.Comment, error) {
	docs, err := r.scopeQuery(scope).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(docs))
	for _, doc := range docs {
		var c models.Comment
		if err := decodeComment(doc, &c); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// ToggleLike flips userID's membership in the comment's liking set inside a
// Firestore transaction. RunTransaction re-runs the read-modify-write cycle
// on commit conflict up to its bounded attempt limit, so concurrent toggles
// against the same comment all land.
func (r *FirestoreCommentRepository) ToggleLike(ctx context.Context, commentID, userID string) (*models.Comment, error) {
	ref := r.collection.Doc(commentID)
	var updated models.Comment
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrCommentNotFound
			}
			return err
		}
		if err := decodeComment(doc, &updated); err != nil {
			return err
		}
		updated.LikingUserIDs = toggleMembership(updated.LikingUserIDs, userID)
		return tx.Update(ref, []firestore.Update{
			{Path: "liking_user_ids", Value: updated.LikingUserIDs},
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Subscribe attaches a snapshot listener to the scope query. Every emission
// carries the full current result set. Canceling ctx stops the listener and
// closes the channel.
func (r *FirestoreCommentRepository) Subscribe(ctx context.Context, scope models.Scope) (<-chan []models.Comment, error) {
	snaps := r.scopeQuery(scope).Snapshots(ctx)
	ch := make(chan []models.Comment)

	go func() {
		defer close(ch)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("comment snapshot listener stopped: %v", err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("reading comment snapshot: %v", err)
				continue
			}
			comments := make([]models.Comment, 0, len(docs))
			for _, doc := range docs {
				var c models.Comment
				if err := decodeComment(doc, &c); err != nil {
					log.Printf("decoding comment %s: %v", doc.Ref.ID, err)
					continue
				}
				comments = append(comments, c)
			}
			select {
			case ch <- comments:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (r *FirestoreCommentRepository) scopeQuery(scope models.Scope) firestore.Query {
	var episode interface{}
	if scope.EpisodeID != nil {
		episode = *scope.EpisodeID
	}
	return r.collection.
		Where("title_id", "==", scope.TitleID).
		Where("episode_id", "==", episode).
		OrderBy("created_at", firestore.Desc)
}

func decodeComment(doc *firestore.DocumentSnapshot, out *models.Comment) error {
	if err := doc.DataTo(out); err != nil {
		return err
	}
	out.ID = doc.Ref.ID
	return nil
}
