package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/direct-line/internal/domain"
	"github.com/spec-kit/direct-line/internal/lifecycle"
)

const (
	ticketsCollection  = "tickets"
	historyCollection  = "ticket_history"
	countersCollection = "counters"
	ticketCounterID    = "tickets"
)

type ticketDocument struct {
	TicketID     string     `bson:"ticketId"`
	Description  string     `bson:"description"`
	Location     string     `bson:"location"`
	Category     string     `bson:"category"`
	Status       string     `bson:"status"`
	CreatedAt    time.Time  `bson:"createdAt"`
	DispatchedAt *time.Time `bson:"dispatchedAt"`
	ResolvedAt   *time.Time `bson:"resolvedAt"`
	ReportedBy   string     `bson:"reportedBy"`
	Image        *string    `bson:"image,omitempty"`
}

func toTicketDocument(ticket *domain.Ticket) ticketDocument {
	return ticketDocument{
		TicketID:     ticket.ID,
		Description:  ticket.Description,
		Location:     ticket.Location,
		Category:     ticket.Category,
		Status:       string(ticket.Status),
		CreatedAt:    ticket.CreatedAt.UTC(),
		DispatchedAt: utcPtr(ticket.DispatchedAt),
		ResolvedAt:   utcPtr(ticket.ResolvedAt),
		ReportedBy:   ticket.ReportedBy,
		Image:        ticket.Image,
	}
}

func (d ticketDocument) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:           d.TicketID,
		Description:  d.Description,
		Location:     d.Location,
		Category:     d.Category,
		Status:       domain.TicketStatus(d.Status),
		CreatedAt:    d.CreatedAt,
		DispatchedAt: d.DispatchedAt,
		ResolvedAt:   d.ResolvedAt,
		ReportedBy:   d.ReportedBy,
		Image:        d.Image,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

type mongoTicketRepository struct {
	tickets  *mongo.Collection
	counters *mongo.Collection
}

// NewMongoTicketRepository builds a repository over the tickets collection and
// ensures the unique ticketId index exists.
func NewMongoTicketRepository(ctx context.Context, db *mongo.Database) (TicketRepository, error) {
	repo := &mongoTicketRepository{
		tickets:  db.Collection(ticketsCollection),
		counters: db.Collection(countersCollection),
	}
	_, err := repo.tickets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ticketId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket indexes: %w", err)
	}
	return repo, nil
}

func (r *mongoTicketRepository) NextSequence(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": ticketCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (r *mongoTicketRepository) HighestSequence(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ticketId": bson.M{"$regex": "^TICK-[0-9]+$"}}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"max": bson.M{"$max": bson.M{"$toLong": bson.M{"$substrCP": bson.A{"$ticketId", 5, 19}}}},
		}}},
	}
	cursor, err := r.tickets.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var result struct {
		Max int64 `bson:"max"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return 0, err
		}
	}
	return result.Max, cursor.Err()
}

func (r *mongoTicketRepository) EnsureSequenceAtLeast(ctx context.Context, floor int64) error {
	_, err := r.counters.UpdateOne(ctx,
		bson.M{"_id": ticketCounterID},
		bson.M{"$max": bson.M{"seq": floor}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	_, err := r.tickets.InsertOne(ctx, toTicketDocument(ticket))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("ticket %s: %w", ticket.ID, ErrDuplicate)
	}
	return err
}

func (r *mongoTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var doc ticketDocument
	err := r.tickets.FindOne(ctx, bson.M{"ticketId": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ticket := doc.toDomain()
	return &ticket, nil
}

func (r *mongoTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}
	if filter.Category != nil {
		query["category"] = *filter.Category
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "ticketId", Value: -1}}).
		SetLimit(int64(effectiveLimit(filter.Limit)))

	cursor, err := r.tickets.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := []domain.Ticket{}
	for cursor.Next(ctx) {
		var doc ticketDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toDomain())
	}
	return result, cursor.Err()
}

func (r *mongoTicketRepository) Count(ctx context.Context) (int64, error) {
	return r.tickets.CountDocuments(ctx, bson.M{})
}

func (r *mongoTicketRepository) Tally(ctx context.Context) (lifecycle.Tally, error) {
	resolvedCond := bson.M{"$and": bson.A{
		bson.M{"$eq": bson.A{"$status", string(domain.TicketStatusResolved)}},
		bson.M{"$gt": bson.A{"$resolvedAt", nil}},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      bson.M{"status": "$status", "category": "$category"},
			"count":    bson.M{"$sum": 1},
			"resolved": bson.M{"$sum": bson.M{"$cond": bson.A{resolvedCond, 1, 0}}},
			"millis": bson.M{"$sum": bson.M{"$cond": bson.A{
				resolvedCond,
				bson.M{"$subtract": bson.A{"$resolvedAt", "$createdAt"}},
				0,
			}}},
		}}},
	}

	tally := lifecycle.NewTally()
	cursor, err := r.tickets.Aggregate(ctx, pipeline)
	if err != nil {
		return tally, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var group struct {
			ID struct {
				Status   string `bson:"status"`
				Category string `bson:"category"`
			} `bson:"_id"`
			Count    int64   `bson:"count"`
			Resolved int64   `bson:"resolved"`
			Millis   float64 `bson:"millis"`
		}
		if err := cursor.Decode(&group); err != nil {
			return tally, err
		}
		hours := time.Duration(group.Millis * float64(time.Millisecond)).Hours()
		tally.AddGroup(domain.TicketStatus(group.ID.Status), group.ID.Category, int(group.Count), int(group.Resolved), hours)
	}
	return tally, cursor.Err()
}

func (r *mongoTicketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	res, err := r.tickets.UpdateOne(ctx,
		bson.M{"ticketId": ticket.ID, "status": string(expected)},
		bson.M{"$set": bson.M{
			"status":       string(ticket.Status),
			"dispatchedAt": utcPtr(ticket.DispatchedAt),
			"resolvedAt":   utcPtr(ticket.ResolvedAt),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, ticket.ID); err != nil {
		return err
	}
	return ErrStatusConflict
}

type historyDocument struct {
	ID        string    `bson:"_id"`
	TicketID  string    `bson:"ticketId"`
	OldStatus string    `bson:"oldStatus"`
	NewStatus string    `bson:"newStatus"`
	ChangedBy *string   `bson:"changedBy,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

type mongoTicketHistoryRepository struct {
	history *mongo.Collection
	newID   func() string
}

// NewMongoTicketHistoryRepository builds a history repository; newID supplies document ids.
func NewMongoTicketHistoryRepository(db *mongo.Database, newID func() string) TicketHistoryRepository {
	return &mongoTicketHistoryRepository{history: db.Collection(historyCollection), newID: newID}
}

func (r *mongoTicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	doc := historyDocument{
		ID:        r.newID(),
		TicketID:  history.TicketID,
		OldStatus: string(history.OldStatus),
		NewStatus: string(history.NewStatus),
		ChangedBy: history.ChangedBy,
		CreatedAt: history.CreatedAt.UTC(),
	}
	if _, err := r.history.InsertOne(ctx, doc); err != nil {
		return err
	}
	history.ID = doc.ID
	return nil
}

func (r *mongoTicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	cursor, err := r.history.Find(ctx, bson.M{"ticketId": ticketID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := []domain.TicketHistory{}
	for cursor.Next(ctx) {
		var doc historyDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, domain.TicketHistory{
			ID:        doc.ID,
			TicketID:  doc.TicketID,
			OldStatus: domain.TicketStatus(doc.OldStatus),
			NewStatus: domain.TicketStatus(doc.NewStatus),
			ChangedBy: doc.ChangedBy,
			CreatedAt: doc.CreatedAt,
		})
	}
	return result, cursor.Err()
}
