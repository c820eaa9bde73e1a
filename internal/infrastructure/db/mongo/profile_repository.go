package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

const profileCollection = "role_profiles"

// ProfileRepository stores every role profile in one collection keyed by owner,
// with the role as discriminator.
type ProfileRepository struct {
	coll *mongo.Collection
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profileCollection)}
}

type mongoProfile struct {
	UserID      string    `bson:"user_id"`
	Role        string    `bson:"role"`
	CreatedAt   time.Time `bson:"created_at"`
	Phone       string    `bson:"phone,omitempty"`
	Preferences []string  `bson:"preferences,omitempty"`
	Department  string    `bson:"department,omitempty"`
	Position    string    `bson:"position,omitempty"`
	Permissions []string  `bson:"permissions,omitempty"`
}

func toMongoProfile(p domain.RoleProfile) mongoProfile {
	doc := mongoProfile{UserID: p.OwnerID(), Role: string(p.ProfileRole())}
	switch v := p.(type) {
	case domain.GuestProfile:
		doc.CreatedAt = v.CreatedAt
		doc.Phone = v.Phone
		doc.Preferences = v.Preferences
	case domain.StaffProfile:
		doc.CreatedAt = v.CreatedAt
		doc.Department = v.Department
		doc.Position = v.Position
	case domain.ManagerProfile:
		doc.CreatedAt = v.CreatedAt
		doc.Department = v.Department
	case domain.AdminProfile:
		doc.CreatedAt = v.CreatedAt
		doc.Permissions = v.Permissions
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	return doc
}

func (m *mongoProfile) toDomain() (domain.RoleProfile, error) {
	base := domain.ProfileBase{UserID: m.UserID, CreatedAt: m.CreatedAt.UTC()}
	switch domain.Role(m.Role) {
	case domain.RoleGuest:
		return domain.GuestProfile{ProfileBase: base, Phone: m.Phone, Preferences: m.Preferences}, nil
	case domain.RoleStaff:
		return domain.StaffProfile{ProfileBase: base, Department: m.Department, Position: m.Position}, nil
	case domain.RoleManager:
		return domain.ManagerProfile{ProfileBase: base, Department: m.Department}, nil
	case domain.RoleAdmin:
		perms := m.Permissions
		if perms == nil {
			perms = []string{}
		}
		return domain.AdminProfile{ProfileBase: base, Permissions: perms}, nil
	}
	return nil, fmt.Errorf("decode profile: unknown role %q", m.Role)
}

func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (domain.RoleProfile, error) {
	var doc mongoProfile
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return doc.toDomain()
}

func (r *ProfileRepository) Save(ctx context.Context, profile domain.RoleProfile) error {
	doc := toMongoProfile(profile)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"user_id": doc.UserID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// EnsureIndexes enforces one profile per user.
func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
