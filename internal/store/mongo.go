package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ripplehq/ripple-backend/internal/models"
)

const accountsCollection = "accounts"

// MongoAccounts implements Accounts on top of a MongoDB collection.
type MongoAccounts struct {
	col *mongo.Collection
}

var _ Accounts = (*MongoAccounts)(nil)

// NewMongoAccounts returns an account store over db's accounts collection.
func NewMongoAccounts(db *mongo.Database) *MongoAccounts {
	return &MongoAccounts{col: db.Collection(accountsCollection)}
}

// EnsureAccountIndexes creates the unique indexes on handle and email.
// Called on startup from main after Mongo has connected.
func EnsureAccountIndexes(ctx context.Context, db *mongo.Database) error {
	col := db.Collection(accountsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "handle", Value: 1}},
			Options: options.Index().SetName("idx_handle_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_email_unique").SetUnique(true),
		},
	}

	for _, m := range indexes {
		if _, err := col.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoAccounts) Insert(ctx context.Context, a *models.Account) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, a)
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		// The duplicate-key message names the violated index.
		if strings.Contains(err.Error(), "idx_email_unique") {
			return ErrDuplicateEmail
		}
		return ErrDuplicateHandle
	}
	return err
}

func (s *MongoAccounts) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var a models.Account
	err := s.col.FindOne(ctx, filter).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoAccounts) ByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoAccounts) ByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"handle": identifier},
		bson.M{"email": strings.ToLower(strings.TrimSpace(identifier))},
	}})
}

func (s *MongoAccounts) ByVerificationDigest(ctx context.Context, digest string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"verify_token_digest": digest})
}

func (s *MongoAccounts) ByResetDigest(ctx context.Context, digest string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"reset_token_digest": digest})
}

func (s *MongoAccounts) ByRefreshToken(ctx context.Context, token string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"refresh_tokens.token": token})
}

func (s *MongoAccounts) update(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := s.col.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoAccounts) UpdateProfile(ctx context.Context, id primitive.ObjectID, displayName, bio, avatarURL string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{
		"display_name": displayName,
		"bio":          bio,
		"avatar_url":   avatarURL,
		"updated_at":   time.Now(),
	}})
}

func (s *MongoAccounts) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now(),
	}})
}

func (s *MongoAccounts) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{
		"active":     active,
		"updated_at": time.Now(),
	}})
}

func (s *MongoAccounts) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now(),
	}})
}

// IncFailedLogins increments the counter with a store-side $inc. The
// conditional lock set is a second update keyed on the returned count;
// concurrent attempts race last-write-wins on locked_until, which the
// design accepts for this counter.
func (s *MongoAccounts) IncFailedLogins(ctx context.Context, id primitive.ObjectID, threshold int, lockUntil time.Time) (int, error) {
	var a models.Account
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"failed_login_attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if threshold > 0 && a.FailedLoginAttempts >= threshold {
		if err := s.update(ctx, id, bson.M{"$set": bson.M{"locked_until": lockUntil}}); err != nil {
			return a.FailedLoginAttempts, err
		}
	}
	return a.FailedLoginAttempts, nil
}

func (s *MongoAccounts) ResetFailedLogins(ctx context.Context, id primitive.ObjectID, to int) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"failed_login_attempts": to},
		"$unset": bson.M{"locked_until": ""},
	})
}

func (s *MongoAccounts) RecordLoginSuccess(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"failed_login_attempts": 0, "last_login": at},
		"$unset": bson.M{"locked_until": ""},
	})
}

func (s *MongoAccounts) PushRefreshToken(ctx context.Context, id primitive.ObjectID, rec models.RefreshTokenRecord) error {
	return s.update(ctx, id, bson.M{"$push": bson.M{
		"refresh_tokens": bson.M{
			"$each":  bson.A{rec},
			"$slice": -MaxRefreshTokens,
		},
	}})
}

func (s *MongoAccounts) PullRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return s.update(ctx, id, bson.M{"$pull": bson.M{
		"refresh_tokens": bson.M{"token": token},
	}})
}

func (s *MongoAccounts) ClearRefreshTokens(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"refresh_tokens": bson.A{}}})
}

func (s *MongoAccounts) PruneRefreshTokens(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	return s.update(ctx, id, bson.M{"$pull": bson.M{
		"refresh_tokens": bson.M{"expires_at": bson.M{"$lte": now}},
	}})
}

func tokenDigestFields(kind TokenKind) (string, string) {
	if kind == TokenReset {
		return "reset_token_digest", "reset_token_expiry"
	}
	return "verify_token_digest", "verify_token_expiry"
}

func (s *MongoAccounts) SetTokenDigest(ctx context.Context, id primitive.ObjectID, kind TokenKind, digest string, expiry time.Time) error {
	digestField, expiryField := tokenDigestFields(kind)
	return s.update(ctx, id, bson.M{"$set": bson.M{
		digestField: digest,
		expiryField: expiry,
	}})
}

func (s *MongoAccounts) ClearTokenDigest(ctx context.Context, id primitive.ObjectID, kind TokenKind) error {
	digestField, expiryField := tokenDigestFields(kind)
	return s.update(ctx, id, bson.M{"$unset": bson.M{
		digestField: "",
		expiryField: "",
	}})
}

func (s *MongoAccounts) SetEmailVerified(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": time.Now()},
		"$unset": bson.M{"verify_token_digest": "", "verify_token_expiry": ""},
	})
}

func (s *MongoAccounts) Count(ctx context.Context) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{})
}
