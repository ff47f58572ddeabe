package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a public post. like_count and comment_count are derived counters
// maintained by the post service with $inc updates, never recomputed on read.
type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	AuthorID     primitive.ObjectID `bson:"author_id" json:"author_id"`
	AuthorHandle string             `bson:"author_handle" json:"author_handle"`

	Body     string `bson:"body" json:"body"`
	ImageURL string `bson:"image_url,omitempty" json:"image_url,omitempty"`

	LikeCount    int64 `bson:"like_count" json:"like_count"`
	CommentCount int64 `bson:"comment_count" json:"comment_count"`
}

// Comment is a comment on a post. ParentID is set for replies; replies
// cannot themselves be replied to (one nesting level only).
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`

	PostID   primitive.ObjectID  `bson:"post_id" json:"post_id"`
	ParentID *primitive.ObjectID `bson:"parent_id,omitempty" json:"parent_id,omitempty"`

	AuthorID     primitive.ObjectID `bson:"author_id" json:"author_id"`
	AuthorHandle string             `bson:"author_handle" json:"author_handle"`

	Body       string `bson:"body" json:"body"`
	ReplyCount int64  `bson:"reply_count" json:"reply_count"`
}

// Like records one account liking one post. A unique index on
// (post_id, account_id) makes liking idempotent at the store level.
type Like struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	PostID    primitive.ObjectID `bson:"post_id" json:"post_id"`
	AccountID primitive.ObjectID `bson:"account_id" json:"account_id"`
}
