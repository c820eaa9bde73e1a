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

const invitationCollection = "invitations"

// InvitationRepository implements ports.InvitationRepository using MongoDB.
type InvitationRepository struct {
	coll *mongo.Collection
}

var _ ports.InvitationRepository = (*InvitationRepository)(nil)

func NewInvitationRepository(db *mongo.Database) *InvitationRepository {
	return &InvitationRepository{coll: db.Collection(invitationCollection)}
}

type mongoInvitation struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Email       string             `bson:"email"`
	Role        string             `bson:"role"`
	Department  string             `bson:"department,omitempty"`
	Position    string             `bson:"position,omitempty"`
	Permissions []string           `bson:"permissions,omitempty"`
	Token       string             `bson:"token"`
	CreatedBy   string             `bson:"created_by"`
	ExpiresAt   time.Time          `bson:"expires_at"`
	Used        bool               `bson:"used"`
	UsedAt      *time.Time         `bson:"used_at,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func toMongoInvitation(i *domain.Invitation) mongoInvitation {
	return mongoInvitation{
		Email:       i.Email,
		Role:        string(i.Role),
		Department:  i.Department,
		Position:    i.Position,
		Permissions: i.Permissions,
		Token:       i.Token,
		CreatedBy:   i.CreatedBy,
		ExpiresAt:   i.ExpiresAt.UTC(),
		Used:        i.Used,
		UsedAt:      utcPtr(i.UsedAt),
		CreatedAt:   i.CreatedAt.UTC(),
		UpdatedAt:   i.UpdatedAt.UTC(),
	}
}

func (m *mongoInvitation) toDomain() *domain.Invitation {
	return &domain.Invitation{
		ID:          m.ID.Hex(),
		Email:       m.Email,
		Role:        domain.Role(m.Role),
		Department:  m.Department,
		Position:    m.Position,
		Permissions: m.Permissions,
		Token:       m.Token,
		CreatedBy:   m.CreatedBy,
		ExpiresAt:   m.ExpiresAt.UTC(),
		Used:        m.Used,
		UsedAt:      utcPtr(m.UsedAt),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	doc := toMongoInvitation(inv)
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *InvitationRepository) findOne(ctx context.Context, filter bson.M) (*domain.Invitation, error) {
	var doc mongoInvitation
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *InvitationRepository) FindByID(ctx context.Context, id string) (*domain.Invitation, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	return r.findOne(ctx, bson.M{"token": token})
}

func (r *InvitationRepository) List(ctx context.Context) ([]*domain.Invitation, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoInvitation
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode invitations: %w", err)
	}
	out := make([]*domain.Invitation, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

// usedOrMissing explains why a conditional write on an unused invitation matched nothing.
func (r *InvitationRepository) usedOrMissing(ctx context.Context, oid primitive.ObjectID) error {
	if _, err := r.findOne(ctx, bson.M{"_id": oid}); err != nil {
		return err
	}
	return domain.ErrInvitationUsed
}

func (r *InvitationRepository) Update(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	oid, ok := objectID(inv.ID)
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	update := bson.M{"$set": bson.M{
		"email":       inv.Email,
		"role":        string(inv.Role),
		"department":  inv.Department,
		"position":    inv.Position,
		"permissions": inv.Permissions,
		"expires_at":  inv.ExpiresAt.UTC(),
		"updated_at":  inv.UpdatedAt.UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoInvitation
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid, "used": false}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.usedOrMissing(ctx, oid)
	}
	if err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *InvitationRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrInvitationNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid, "used": false})
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	if res.DeletedCount == 0 {
		return r.usedOrMissing(ctx, oid)
	}
	return nil
}

// MarkUsed is a compare-and-set on the used latch; the filter admits only a
// live, unused invitation so concurrent callers serialize on the document.
func (r *InvitationRepository) MarkUsed(ctx context.Context, token string, now time.Time) (*domain.Invitation, error) {
	filter := bson.M{
		"token":      token,
		"used":       false,
		"expires_at": bson.M{"$gte": now.UTC()},
	}
	update := bson.M{"$set": bson.M{
		"used":       true,
		"used_at":    now.UTC(),
		"updated_at": now.UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoInvitation
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("claim invitation: %w", err)
	}

	current, err := r.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if verr := current.Validate(now); verr != nil {
		return nil, verr
	}
	return nil, domain.ErrInvitationUsed
}

// EnsureIndexes creates the token and lookup indexes on the invitations collection.
func (r *InvitationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
