package repository

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

// MongoRepo stores documents in a MongoDB collection keyed by _id. Every
// mutation is a single pipeline update (MongoDB 4.2+), so the diff is taken
// against the document exactly as the server sees it when writing.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Replace(ctx context.Context, id any, body map[string]any, actor history.Actor) (WriteResult, error) {
	opts := options.Update().SetUpsert(true)
	res, err := m.col.UpdateOne(ctx, bson.M{history.FieldID: id}, replacePipeline(body, actor), opts)
	if err != nil {
		return WriteResult{}, errors.Wrap(err, "replace document")
	}
	return WriteResult{Matched: res.MatchedCount, Upserted: res.UpsertedCount}, nil
}

func (m *MongoRepo) Update(ctx context.Context, id any, set map[string]any, unset []string, actor history.Actor) (WriteResult, error) {
	res, err := m.col.UpdateOne(ctx, bson.M{history.FieldID: id}, updatePipeline(set, unset, actor))
	if err != nil {
		return WriteResult{}, errors.Wrap(err, "update document")
	}
	return WriteResult{Matched: res.MatchedCount}, nil
}

func (m *MongoRepo) SetDeleted(ctx context.Context, id any, state bool, actor history.Actor) (bool, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(false).
		SetProjection(bson.M{history.FieldID: 1})
	err := m.col.FindOneAndUpdate(ctx, bson.M{history.FieldID: id}, deletedPipeline(state, actor), opts).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, errors.Wrap(err, "set deleted flag")
	}
	return true, nil
}

func (m *MongoRepo) Get(ctx context.Context, id any) (*history.Record, error) {
	var rec history.Record
	if err := m.col.FindOne(ctx, bson.M{history.FieldID: id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get document")
	}
	return &rec, nil
}
