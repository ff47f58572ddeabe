package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ripplehq/ripple-backend/internal/models"
	"github.com/ripplehq/ripple-backend/internal/store"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	// ErrReplyDepth is returned when a reply targets another reply; comments
	// nest exactly one level.
	ErrReplyDepth = errors.New("replies cannot be nested")
	ErrNotOwner   = errors.New("not the author")
)

// PostService is direct plumbing over the document store: posts, comments
// with one reply level, likes, and counts. The derived like/comment/reply
// counters are maintained here with $inc updates.
type PostService struct {
	db       *mongo.Database
	accounts store.Accounts
}

// NewPostService returns a post service over db.
func NewPostService(db *mongo.Database, accounts store.Accounts) *PostService {
	return &PostService{db: db, accounts: accounts}
}

// EnsurePostIndexes configures the posts, comments, and likes indexes.
// Called on startup from main after Mongo has connected.
func EnsurePostIndexes(ctx context.Context, db *mongo.Database) error {
	postIdx := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("idx_author_created"),
	}}
	if _, err := db.Collection("posts").Indexes().CreateMany(ctx, postIdx); err != nil {
		return err
	}

	commentIdx := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("idx_post_created"),
	}}
	if _, err := db.Collection("comments").Indexes().CreateMany(ctx, commentIdx); err != nil {
		return err
	}

	likeIdx := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "account_id", Value: 1}},
		Options: options.Index().SetName("idx_post_account_unique").SetUnique(true),
	}}
	_, err := db.Collection("likes").Indexes().CreateMany(ctx, likeIdx)
	return err
}

func (s *PostService) CreatePost(ctx context.Context, author *models.Account, body, imageURL string) (*models.Post, error) {
	now := time.Now()
	post := &models.Post{
		ID:           primitive.NewObjectID(),
		CreatedAt:    now,
		UpdatedAt:    now,
		AuthorID:     author.ID,
		AuthorHandle: author.Handle,
		Body:         body,
		ImageURL:     imageURL,
	}
	if _, err := s.db.Collection("posts").InsertOne(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := s.db.Collection("posts").FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListPosts returns newest-first posts, optionally filtered by author.
func (s *PostService) ListPosts(ctx context.Context, authorID *primitive.ObjectID, skip, limit int64) ([]models.Post, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	filter := bson.M{}
	if authorID != nil {
		filter["author_id"] = *authorID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit + 1)

	cur, err := s.db.Collection("posts").Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(posts)) > limit
	if hasMore {
		posts = posts[:limit]
	}
	return posts, hasMore, nil
}

// DeletePost removes a post with its comments and likes. Only the author or
// a moderator/admin may delete.
func (s *PostService) DeletePost(ctx context.Context, actor *models.Account, id primitive.ObjectID) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.ID && actor.Role == models.RoleStandard {
		return ErrNotOwner
	}

	if _, err := s.db.Collection("posts").DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return err
	}
	if _, err := s.db.Collection("comments").DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
		return err
	}
	_, err = s.db.Collection("likes").DeleteMany(ctx, bson.M{"post_id": id})
	return err
}

// CreateComment adds a comment, or a reply when parentID is set. A reply's
// parent must be a top-level comment on the same post.
func (s *PostService) CreateComment(ctx context.Context, author *models.Account, postID primitive.ObjectID, parentID *primitive.ObjectID, body string) (*models.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	if parentID != nil {
		var parent models.Comment
		err := s.db.Collection("comments").FindOne(ctx, bson.M{"_id": *parentID, "post_id": postID}).Decode(&parent)
		if err == mongo.ErrNoDocuments {
			return nil, ErrCommentNotFound
		}
		if err != nil {
			return nil, err
		}
		if parent.ParentID != nil {
			return nil, ErrReplyDepth
		}
	}

	comment := &models.Comment{
		ID:           primitive.NewObjectID(),
		CreatedAt:    time.Now(),
		PostID:       postID,
		ParentID:     parentID,
		AuthorID:     author.ID,
		AuthorHandle: author.Handle,
		Body:         body,
	}
	if _, err := s.db.Collection("comments").InsertOne(ctx, comment); err != nil {
		return nil, err
	}

	if _, err := s.db.Collection("posts").UpdateByID(ctx, postID,
		bson.M{"$inc": bson.M{"comment_count": 1}}); err != nil {
		return nil, err
	}
	if parentID != nil {
		if _, err := s.db.Collection("comments").UpdateByID(ctx, *parentID,
			bson.M{"$inc": bson.M{"reply_count": 1}}); err != nil {
			return nil, err
		}
	}
	return comment, nil
}

// ListComments returns a post's comments oldest-first. Replies come back in
// the same flat list, grouped by their parent_id on the client.
func (s *PostService) ListComments(ctx context.Context, postID primitive.ObjectID, skip, limit int64) ([]models.Comment, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit + 1)

	cur, err := s.db.Collection("comments").Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var comments []models.Comment
	if err := cur.All(ctx, &comments); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(comments)) > limit
	if hasMore {
		comments = comments[:limit]
	}
	return comments, hasMore, nil
}

// DeleteComment removes one comment (author or moderator/admin) and settles
// the counters. Deleting a top-level comment removes its replies too.
func (s *PostService) DeleteComment(ctx context.Context, actor *models.Account, id primitive.ObjectID) error {
	var comment models.Comment
	err := s.db.Collection("comments").FindOne(ctx, bson.M{"_id": id}).Decode(&comment)
	if err == mongo.ErrNoDocuments {
		return ErrCommentNotFound
	}
	if err != nil {
		return err
	}
	if comment.AuthorID != actor.ID && actor.Role == models.RoleStandard {
		return ErrNotOwner
	}

	removed := int64(1)
	if comment.ParentID == nil {
		res, err := s.db.Collection("comments").DeleteMany(ctx, bson.M{"parent_id": id})
		if err != nil {
			return err
		}
		removed += res.DeletedCount
	} else {
		if _, err := s.db.Collection("comments").UpdateByID(ctx, *comment.ParentID,
			bson.M{"$inc": bson.M{"reply_count": -1}}); err != nil {
			return err
		}
	}

	if _, err := s.db.Collection("comments").DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return err
	}
	_, err = s.db.Collection("posts").UpdateByID(ctx, comment.PostID,
		bson.M{"$inc": bson.M{"comment_count": -removed}})
	return err
}

// LikePost records a like. The unique (post_id, account_id) index makes a
// second like from the same account a no-op.
func (s *PostService) LikePost(ctx context.Context, actor *models.Account, postID primitive.ObjectID) error {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return err
	}

	like := models.Like{
		ID:        primitive.NewObjectID(),
		CreatedAt: time.Now(),
		PostID:    postID,
		AccountID: actor.ID,
	}
	if _, err := s.db.Collection("likes").InsertOne(ctx, like); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	}

	_, err := s.db.Collection("posts").UpdateByID(ctx, postID,
		bson.M{"$inc": bson.M{"like_count": 1}})
	return err
}

// UnlikePost removes a like; removing a like that was never recorded is a
// no-op.
func (s *PostService) UnlikePost(ctx context.Context, actor *models.Account, postID primitive.ObjectID) error {
	res, err := s.db.Collection("likes").DeleteOne(ctx, bson.M{
		"post_id":    postID,
		"account_id": actor.ID,
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return nil
	}
	_, err = s.db.Collection("posts").UpdateByID(ctx, postID,
		bson.M{"$inc": bson.M{"like_count": -1}})
	return err
}

// Stats is the basic-statistics payload.
type Stats struct {
	Accounts int64 `json:"accounts"`
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
	Likes    int64 `json:"likes"`
}

// GetStats counts the main collections.
func (s *PostService) GetStats(ctx context.Context) (*Stats, error) {
	accounts, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.db.Collection("posts").CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	comments, err := s.db.Collection("comments").CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	likes, err := s.db.Collection("likes").CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	return &Stats{Accounts: accounts, Posts: posts, Comments: comments, Likes: likes}, nil
}
