package db

import (
	"context"
	"fmt"
	"time"

	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StatementCollection holds the read-side projection of the ledger log.
const StatementCollection = "statements"

// for handling MongoDB operations
type MongoDB struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// statementEntry is how a ledger record is stored in the projection.
// AccountIDs lists every account the record moved money on.
type statementEntry struct {
	ID            string               `bson:"_id"`
	AccountIDs    []string             `bson:"account_ids"`
	AccountID     string               `bson:"account_id"`
	FromAccountID string               `bson:"from_account_id,omitempty"`
	ToAccountID   string               `bson:"to_account_id,omitempty"`
	Type          string               `bson:"type"`
	Status        string               `bson:"status"`
	Category      string               `bson:"category"`
	Amount        primitive.Decimal128 `bson:"amount"`
	BalanceAfter  primitive.Decimal128 `bson:"balance_after"`
	Note          string               `bson:"note,omitempty"`
	Reference     string               `bson:"reference,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
	ProjectedAt   time.Time            `bson:"projected_at"`
}

// creates a new MongoDB instance
func NewMongoDB(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Mongodb: %w", err)
	}

	// pinging the database
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping Mongodb: %w", err)
	}

	collection := client.Database(dbName).Collection(StatementCollection)

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "account_ids", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err = collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDB{
		client:     client,
		collection: collection,
	}, nil
}

// closes the mongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// UpsertTransaction projects one ledger record. Redelivered events replace the
// same document, so applying an event twice leaves one entry.
func (m *MongoDB) UpsertTransaction(ctx context.Context, tx *models.Transaction) error {
	entry, err := toStatementEntry(tx, time.Now().UTC())
	if err != nil {
		return err
	}

	_, err = m.collection.ReplaceOne(ctx, bson.M{"_id": entry.ID}, entry, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert statement entry: %w", err)
	}
	return nil
}

// GetStatement returns the records touching an account, newest first.
func (m *MongoDB) GetStatement(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.collection.Find(ctx, bson.M{"account_ids": accountID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find statement entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []statementEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode statement entries: %w", err)
	}

	records := make([]*models.Transaction, 0, len(entries))
	for i := range entries {
		record, err := entries[i].toTransaction()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func toStatementEntry(tx *models.Transaction, projectedAt time.Time) (*statementEntry, error) {
	amount, err := toDecimal128(tx.Amount)
	if err != nil {
		return nil, err
	}
	balance, err := toDecimal128(tx.BalanceAfter)
	if err != nil {
		return nil, err
	}

	accountIDs := []string{tx.AccountID}
	if tx.ToAccountID != "" && tx.ToAccountID != tx.AccountID {
		accountIDs = append(accountIDs, tx.ToAccountID)
	}

	return &statementEntry{
		ID:            tx.ID,
		AccountIDs:    accountIDs,
		AccountID:     tx.AccountID,
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		Category:      string(tx.Category),
		Amount:        amount,
		BalanceAfter:  balance,
		Note:          tx.Note,
		Reference:     tx.Reference,
		CreatedAt:     tx.CreatedAt.UTC(),
		ProjectedAt:   projectedAt,
	}, nil
}

func (e *statementEntry) toTransaction() (*models.Transaction, error) {
	amount, err := fromDecimal128(e.Amount)
	if err != nil {
		return nil, err
	}
	balance, err := fromDecimal128(e.BalanceAfter)
	if err != nil {
		return nil, err
	}

	return &models.Transaction{
		ID:            e.ID,
		AccountID:     e.AccountID,
		FromAccountID: e.FromAccountID,
		ToAccountID:   e.ToAccountID,
		Type:          models.TransactionType(e.Type),
		Status:        models.TransactionStatus(e.Status),
		Category:      models.Category(e.Category),
		Amount:        amount,
		BalanceAfter:  balance,
		Note:          e.Note,
		Reference:     e.Reference,
		CreatedAt:     e.CreatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to convert decimal128 %s: %w", v, err)
	}
	return d, nil
}
