package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

const (
	userCollection = "users"
	// loginHistoryCap bounds the embedded login history per user.
	loginHistoryCap = 50
)

// UserRepository implements ports.UserRepository using MongoDB.
type UserRepository struct {
	coll *mongo.Collection
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(userCollection)}
}

type mongoUser struct {
	ID                   primitive.ObjectID    `bson:"_id,omitempty"`
	Name                 string                `bson:"name"`
	Email                string                `bson:"email"`
	PasswordHash         string                `bson:"password_hash,omitempty"`
	Role                 string                `bson:"role"`
	EmailVerified        bool                  `bson:"email_verified"`
	IsApproved           bool                  `bson:"is_approved"`
	IsActive             bool                  `bson:"is_active"`
	ApprovedBy           string                `bson:"approved_by,omitempty"`
	ApprovedAt           *time.Time            `bson:"approved_at,omitempty"`
	TokenVersion         int                   `bson:"token_version"`
	OTP                  *domain.OTP           `bson:"otp,omitempty"`
	PasswordResetToken   string                `bson:"password_reset_token,omitempty"`
	PasswordResetExpiry  *time.Time            `bson:"password_reset_expiry,omitempty"`
	PasswordResetPending bool                  `bson:"password_reset_pending"`
	AuthProviders        []domain.AuthProvider `bson:"auth_providers"`
	LoginHistory         []domain.LoginRecord  `bson:"login_history"`
	CreatedAt            time.Time             `bson:"created_at"`
	UpdatedAt            time.Time             `bson:"updated_at"`
}

func toMongoUser(u *domain.User) mongoUser {
	providers := u.AuthProviders
	if providers == nil {
		providers = []domain.AuthProvider{}
	}
	history := u.LoginHistory
	if history == nil {
		history = []domain.LoginRecord{}
	}
	return mongoUser{
		Name:                 u.Name,
		Email:                u.Email,
		PasswordHash:         u.PasswordHash,
		Role:                 string(u.Role),
		EmailVerified:        u.EmailVerified,
		IsApproved:           u.IsApproved,
		IsActive:             u.IsActive,
		ApprovedBy:           u.ApprovedBy,
		ApprovedAt:           u.ApprovedAt,
		TokenVersion:         u.TokenVersion,
		OTP:                  u.OTP,
		PasswordResetToken:   u.PasswordResetToken,
		PasswordResetExpiry:  u.PasswordResetExpiry,
		PasswordResetPending: u.PasswordResetPending,
		AuthProviders:        providers,
		LoginHistory:         history,
		CreatedAt:            u.CreatedAt.UTC(),
		UpdatedAt:            u.UpdatedAt.UTC(),
	}
}

func (m *mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:                   m.ID.Hex(),
		Name:                 m.Name,
		Email:                m.Email,
		PasswordHash:         m.PasswordHash,
		Role:                 domain.Role(m.Role),
		EmailVerified:        m.EmailVerified,
		IsApproved:           m.IsApproved,
		IsActive:             m.IsActive,
		ApprovedBy:           m.ApprovedBy,
		ApprovedAt:           utcPtr(m.ApprovedAt),
		TokenVersion:         m.TokenVersion,
		OTP:                  m.OTP,
		PasswordResetToken:   m.PasswordResetToken,
		PasswordResetExpiry:  utcPtr(m.PasswordResetExpiry),
		PasswordResetPending: m.PasswordResetPending,
		AuthProviders:        m.AuthProviders,
		LoginHistory:         m.LoginHistory,
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := toMongoUser(user)
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByProvider(ctx context.Context, provider, providerID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"auth_providers": bson.M{
		"$elemMatch": bson.M{"provider": provider, "provider_id": providerID},
	}})
}

func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	if tokenHash == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"password_reset_token": tokenHash})
}

func (r *UserRepository) list(ctx context.Context, filter bson.M) ([]*domain.User, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]*domain.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toDomain())
	}
	return users, nil
}

func (r *UserRepository) ListPendingApproval(ctx context.Context) ([]*domain.User, error) {
	return r.list(ctx, bson.M{
		"email_verified": true,
		"is_approved":    false,
		"role":           bson.M{"$ne": string(domain.RoleGuest)},
	})
}

func (r *UserRepository) ListApprovers(ctx context.Context) ([]*domain.User, error) {
	return r.list(ctx, bson.M{
		"role":        string(domain.RoleAdmin),
		"is_approved": true,
		"is_active":   true,
	})
}

// updateByID applies update to one user and reports ErrUserNotFound when nothing matched.
func (r *UserRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrUserNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// findAndModify applies update to the document matching filter and returns it
// as stored after the write.
func (r *UserRepository) findAndModify(ctx context.Context, filter, update bson.M) (*domain.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var mu mongoUser
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) SetOTP(ctx context.Context, userID string, otp domain.OTP) error {
	otp.ExpiresAt = otp.ExpiresAt.UTC()
	return r.updateByID(ctx, userID, bson.M{"$set": bson.M{
		"otp":        otp,
		"updated_at": time.Now().UTC(),
	}})
}

func (r *UserRepository) ConsumeOTP(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	oid, ok := objectID(userID)
	if !ok {
		return false, domain.ErrUserNotFound
	}
	filter := bson.M{
		"_id":            oid,
		"otp.code":       code,
		"otp.expires_at": bson.M{"$gte": now.UTC()},
	}
	update := bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": now.UTC()},
		"$unset": bson.M{"otp": ""},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiry time.Time, pending bool) error {
	return r.updateByID(ctx, userID, bson.M{"$set": bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expiry":  expiry.UTC(),
		"password_reset_pending": pending,
		"updated_at":             time.Now().UTC(),
	}})
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*domain.User, error) {
	filter := bson.M{
		"password_reset_token":  tokenHash,
		"password_reset_expiry": bson.M{"$gte": now.UTC()},
	}
	update := bson.M{
		"$set": bson.M{
			"password_hash":          passwordHash,
			"password_reset_pending": false,
			"updated_at":             now.UTC(),
		},
		"$unset": bson.M{"password_reset_token": "", "password_reset_expiry": ""},
		"$inc":   bson.M{"token_version": 1},
	}
	user, err := r.findAndModify(ctx, filter, update)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrResetTokenInvalid
	}
	return user, err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.updateByID(ctx, userID, bson.M{
		"$set": bson.M{"password_hash": passwordHash, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"token_version": 1},
	})
}

func (r *UserRepository) IncrementTokenVersion(ctx context.Context, userID string) (int, error) {
	oid, ok := objectID(userID)
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	user, err := r.findAndModify(ctx, bson.M{"_id": oid}, bson.M{
		"$inc": bson.M{"token_version": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return user.TokenVersion, nil
}

func (r *UserRepository) Approve(ctx context.Context, userID string, role domain.Role, approvedBy string, at time.Time) (*domain.User, error) {
	oid, ok := objectID(userID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	filter := bson.M{"_id": oid, "email_verified": true, "is_approved": false}
	update := bson.M{"$set": bson.M{
		"role":        string(role),
		"is_approved": true,
		"approved_by": approvedBy,
		"approved_at": at.UTC(),
		"updated_at":  at.UTC(),
	}}
	user, err := r.findAndModify(ctx, filter, update)
	if !errors.Is(err, domain.ErrUserNotFound) {
		return user, err
	}
	if _, err := r.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return nil, domain.ErrNotPendingApproval
}

func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) (*domain.User, error) {
	oid, ok := objectID(userID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.findAndModify(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	}})
}

func (r *UserRepository) AddProvider(ctx context.Context, userID string, link domain.AuthProvider) (*domain.User, error) {
	oid, ok := objectID(userID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	filter := bson.M{
		"_id": oid,
		"auth_providers": bson.M{"$not": bson.M{
			"$elemMatch": bson.M{"provider": link.Provider, "provider_id": link.ProviderID},
		}},
	}
	update := bson.M{
		"$push": bson.M{"auth_providers": link},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	user, err := r.findAndModify(ctx, filter, update)
	if errors.Is(err, domain.ErrUserNotFound) {
		// Already linked, or the user is gone.
		return r.FindByID(ctx, userID)
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, domain.ErrUserExists
	}
	return user, err
}

func (r *UserRepository) ClaimUnverified(ctx context.Context, userID string, link domain.AuthProvider) (*domain.User, error) {
	oid, ok := objectID(userID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	filter := bson.M{"_id": oid, "email_verified": false}
	update := bson.M{
		"$set": bson.M{
			"email_verified":         true,
			"password_reset_pending": false,
			"updated_at":             time.Now().UTC(),
		},
		"$unset": bson.M{
			"password_hash":         "",
			"otp":                   "",
			"password_reset_token":  "",
			"password_reset_expiry": "",
		},
		"$inc":      bson.M{"token_version": 1},
		"$addToSet": bson.M{"auth_providers": link},
	}
	user, err := r.findAndModify(ctx, filter, update)
	if errors.Is(err, domain.ErrUserNotFound) {
		if _, ferr := r.FindByID(ctx, userID); ferr != nil {
			return nil, ferr
		}
		return nil, domain.ErrAlreadyVerified
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, domain.ErrUserExists
	}
	return user, err
}

func (r *UserRepository) AppendLogin(ctx context.Context, userID string, record domain.LoginRecord) error {
	record.Timestamp = record.Timestamp.UTC()
	return r.updateByID(ctx, userID, bson.M{"$push": bson.M{
		"login_history": bson.M{"$each": []domain.LoginRecord{record}, "$slice": -loginHistoryCap},
	}})
}

func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	oid, ok := objectID(userID)
	if !ok {
		return domain.ErrUserNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique and lookup indexes on the users collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{
				{Key: "auth_providers.provider", Value: 1},
				{Key: "auth_providers.provider_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
				"auth_providers.provider_id": bson.M{"$exists": true},
			}),
		},
		{Keys: bson.D{{Key: "password_reset_token", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "is_approved", Value: 1}, {Key: "email_verified", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
