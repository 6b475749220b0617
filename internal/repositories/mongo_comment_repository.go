package repositories

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/aniview/aniview/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCommentRepository implements CommentRepository for MongoDB. Like
// toggles run inside a session transaction (WithTransaction retries
// transient commit errors), and Subscribe is backed by a change stream that
// re-lists the scope on every matching event, so each emission is a full
// snapshot like the Firestore listener's. Requires a replica set.
type MongoCommentRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoCommentRepository creates a new MongoCommentRepository
func NewMongoCommentRepository(db *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{
		client:     db.Client(),
		collection: db.Collection("comments"),
	}
}

// CreateComment inserts a new comment, assigning its ID and CreatedAt.
func (r *MongoCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = primitive.NewObjectID().Hex()
	comment.CreatedAt = time.Now().UTC()
	if comment.LikingUserIDs == nil {
		comment.LikingUserIDs = []string{}
	}
	_, err := r.collection.InsertOne(ctx, comment)
	return err
}

// GetCommentByID retrieves a comment by ID from MongoDB
func (r *MongoCommentRepository) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&comment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

// GetCommentsByScope returns all comments in scope, newest first.
func (r *MongoCommentRepository) GetCommentsByScope(ctx context.Context, scope models.Scope) ([]models.Comment, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, r.scopeFilter(scope), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	comments := []models.Comment{}
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// ToggleLike flips userID's membership in the comment's liking set inside a
// session transaction. The read and the write happen on the same session,
// so two racing toggles serialize instead of losing an update.
func (r *MongoCommentRepository) ToggleLike(ctx context.Context, commentID, userID string) (*models.Comment, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var comment models.Comment
		if err := r.collection.FindOne(sc, bson.M{"_id": commentID}).Decode(&comment); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrCommentNotFound
			}
			return nil, err
		}
		comment.LikingUserIDs = toggleMembership(comment.LikingUserIDs, userID)
		update := bson.M{"$set": bson.M{"liking_user_ids": comment.LikingUserIDs}}
		if _, err := r.collection.UpdateOne(sc, bson.M{"_id": commentID}, update); err != nil {
			return nil, err
		}
		return &comment, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Comment), nil
}

// Subscribe watches the collection for changes to the scope and emits the
// full comment set after each one, starting with the current state.
// Canceling ctx tears down the change stream and closes the channel.
func (r *MongoCommentRepository) Subscribe(ctx context.Context, scope models.Scope) (<-chan []models.Comment, error) {
	var episode interface{}
	if scope.EpisodeID != nil {
		episode = *scope.EpisodeID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"fullDocument.title_id":   scope.TitleID,
			"fullDocument.episode_id": episode,
		}}},
	}
	stream, err := r.collection.Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, err
	}

	ch := make(chan []models.Comment)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		if !r.emitSnapshot(ctx, scope, ch) {
			return
		}
		for stream.Next(ctx) {
			if !r.emitSnapshot(ctx, scope, ch) {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			log.Printf("comment change stream stopped: %v", err)
		}
	}()
	return ch, nil
}

func (r *MongoCommentRepository) emitSnapshot(ctx context.Context, scope models.Scope, ch chan<- []models.Comment) bool {
	comments, err := r.GetCommentsByScope(ctx, scope)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("listing comments for snapshot: %v", err)
		}
		return ctx.Err() == nil
	}
	select {
	case ch <- comments:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *MongoCommentRepository) scopeFilter(scope models.Scope) bson.M {
	var episode interface{}
	if scope.EpisodeID != nil {
		episode = *scope.EpisodeID
	}
	return bson.M{"title_id": scope.TitleID, "episode_id": episode}
}
