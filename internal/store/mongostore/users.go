// Package mongostore is the default UserStore backend: one document per user
// in a "users" collection, unique email index created at startup.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rohanmainali/sharelytics/internal/domain/user"
	"github.com/rohanmainali/sharelytics/internal/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

type UsersRepo struct {
	client *mongo.Client
	users  *mongo.Collection
}

// New connects, pings and ensures the unique email index. The index is what
// makes concurrent signups with the same email safe; the repo never relies
// on a read-before-create check.
func New(ctx context.Context, uri, dbName string) (*UsersRepo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	users := client.Database(dbName).Collection("users")

	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &UsersRepo{client: client, users: users}, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *UsersRepo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, store.ErrUserNotFound
		}
		return user.User{}, err
	}

	return withDefaults(u), nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, store.ErrUserNotFound
		}
		return user.User{}, err
	}

	return withDefaults(u), nil
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name string) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  passwordHash,
		Name:          name,
		Portfolio:     []user.PortfolioEntry{},
		Watchlist:     []string{},
		Notifications: []user.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := r.users.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, store.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) UpdateFields(ctx context.Context, id string, f store.Fields) (user.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}

	if f.Name != nil {
		set["name"] = *f.Name
	}
	if f.Email != nil {
		set["email"] = *f.Email
	}
	if f.Watchlist != nil {
		set["watchlist"] = *f.Watchlist
	}
	if f.Portfolio != nil {
		set["portfolio"] = *f.Portfolio
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u user.User

	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, store.ErrUserNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, store.ErrEmailTaken
		}
		return user.User{}, err
	}

	return withDefaults(u), nil
}

func (r *UsersRepo) Save(ctx context.Context, u user.User) error {
	u.UpdatedAt = time.Now().UTC()

	res, err := r.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrEmailTaken
		}
		return err
	}

	if res.MatchedCount == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

// withDefaults replaces nil collections (possible on documents written by
// older schema versions) with empty ones so responses serialize as [].
func withDefaults(u user.User) user.User {
	if u.Portfolio == nil {
		u.Portfolio = []user.PortfolioEntry{}
	}
	if u.Watchlist == nil {
		u.Watchlist = []string{}
	}
	if u.Notifications == nil {
		u.Notifications = []user.Notification{}
	}
	return u
}
