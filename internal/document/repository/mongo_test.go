package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

func TestMongoRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("replace matched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		res, err := NewMongoRepo(mt.Coll).Replace(ctx, 1, map[string]any{"a": "x"}, history.Actor{})
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), res.Matched)
		assert.Zero(mt, res.Upserted)
	})

	mt.Run("replace upserted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: 5}}}},
		))
		res, err := NewMongoRepo(mt.Coll).Replace(ctx, 5, map[string]any{"a": "v"}, history.Actor{})
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), res.Upserted)
	})

	mt.Run("replace store error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "bad pipeline",
		}))
		_, err := NewMongoRepo(mt.Coll).Replace(ctx, 1, map[string]any{"a": "x"}, history.Actor{})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "replace document")
	})

	mt.Run("update unmatched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		res, err := NewMongoRepo(mt.Coll).Update(ctx, 9, map[string]any{"a": 1}, nil, history.Actor{})
		require.NoError(mt, err)
		assert.Zero(mt, res.Matched)
	})

	mt.Run("set deleted matched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: bson.D{{Key: "_id", Value: 1}}},
		))
		ok, err := NewMongoRepo(mt.Coll).SetDeleted(ctx, 1, true, history.Actor{})
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("set deleted unmatched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: nil},
		))
		ok, err := NewMongoRepo(mt.Coll).SetDeleted(ctx, 2, true, history.Actor{})
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("get decodes history", func(mt *mtest.T) {
		at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "doc-1"},
			{Key: "a", Value: "z"},
			{Key: "history", Value: bson.A{
				bson.D{
					{Key: "user", Value: "u1"},
					{Key: "date", Value: at},
					{Key: "diff", Value: bson.D{{Key: "a", Value: "z"}, {Key: "b", Value: nil}}},
				},
			}},
		}))
		rec, err := NewMongoRepo(mt.Coll).Get(ctx, "doc-1")
		require.NoError(mt, err)
		assert.Equal(mt, "doc-1", rec.ID)
		assert.False(mt, rec.Deleted)
		assert.Equal(mt, map[string]any{"a": "z"}, rec.Fields)
		require.Len(mt, rec.History, 1)
		assert.Equal(mt, "u1", rec.History[0].User)
		assert.True(mt, at.Equal(rec.History[0].Date))
		assert.Equal(mt, history.Diff{"a": "z", "b": nil}, rec.History[0].Diff)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err := NewMongoRepo(mt.Coll).Get(ctx, "missing")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}
