package service

import (
	"context"
	"errors"
	"sort"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gogotex/gogotex/backend/go-history/internal/apperrors"
	"github.com/gogotex/gogotex/backend/go-history/internal/document/repository"
	"github.com/gogotex/gogotex/backend/go-history/internal/history"
	"github.com/gogotex/gogotex/backend/go-history/internal/misc"
	"github.com/gogotex/gogotex/backend/go-history/internal/timeline"
	"github.com/gogotex/gogotex/backend/go-history/pkg/logger"
	"github.com/gogotex/gogotex/backend/go-history/pkg/metrics"
)

// Request errors raised before the store is contacted.
var (
	ErrEmptyID          = apperrors.NewRuntime("_id field cannot be empty")
	ErrEmptyReplacement = apperrors.NewRuntime("replacement document cannot be empty")
	ErrEmptyUpdate      = apperrors.NewRuntime("update document cannot be empty")
)

const msgWriteFailed = "Fail to write document to the database"

// Service is the versioned document API. Every mutation reports true on
// success and otherwise fails with an *apperrors.Error.
type Service interface {
	Replace(ctx context.Context, actor history.Actor, doc history.Document) (bool, error)
	Update(ctx context.Context, actor history.Actor, partial history.Document) (bool, error)
	ToggleDeleted(ctx context.Context, actor history.Actor, id any, state bool) (bool, error)
	Get(ctx context.Context, id any) (*history.Record, error)
	History(ctx context.Context, id any) ([]history.ChangeRecord, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache keeps rendered timelines in c.
func WithCache(c timeline.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(opts ...Option) Service {
	return New(repository.NewMemoryRepo(), opts...)
}

// NewMongoService returns a Service backed by a MongoDB collection.
// Caller is responsible for creating the collection (and client) and passing it in.
func NewMongoService(col *mongo.Collection, opts ...Option) Service {
	return New(repository.NewMongoRepo(col), opts...)
}

// Engine validates mutations and hands each one to the repository as a
// single atomic write. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	repo  repository.Repository
	cache timeline.Cache
}

func New(repo repository.Repository, opts ...Option) *Engine {
	e := &Engine{repo: repo}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Replace swaps the document's fields for the body of doc, creating the
// document when it doesn't exist. A nil value in a replacement means the
// field is absent.
func (e *Engine) Replace(ctx context.Context, actor history.Actor, doc history.Document) (bool, error) {
	const op = "replace"
	id, body := doc.Split()
	if misc.IsEmpty(id) {
		return e.fail(op, id, ErrEmptyID)
	}
	body = misc.FilterObject(body, func(v any, _ string) bool { return v != nil })
	if len(body) == 0 {
		return e.fail(op, id, ErrEmptyReplacement)
	}
	if err := checkReserved(body); err != nil {
		return e.fail(op, id, err)
	}

	res, err := e.repo.Replace(ctx, id, body, actor)
	if err != nil {
		return e.fail(op, id, apperrors.Wrap(err, msgWriteFailed))
	}
	if res.Matched+res.Upserted == 0 {
		return e.fail(op, id, apperrors.NewRuntime(msgWriteFailed))
	}
	if res.Upserted > 0 {
		logger.Debugf("history: created document %v", id)
	}
	return e.done(ctx, op, id)
}

// Update sets the non-nil fields of partial and removes the nil ones. It
// never creates documents.
func (e *Engine) Update(ctx context.Context, actor history.Actor, partial history.Document) (bool, error) {
	const op = "update"
	id, changes := partial.Split()
	if misc.IsEmpty(id) {
		return e.fail(op, id, ErrEmptyID)
	}
	if len(changes) == 0 {
		return e.fail(op, id, ErrEmptyUpdate)
	}
	if err := checkReserved(changes); err != nil {
		return e.fail(op, id, err)
	}

	set, unset := history.SplitChanges(changes)
	res, err := e.repo.Update(ctx, id, set, unset, actor)
	if err != nil {
		return e.fail(op, id, apperrors.Wrap(err, msgWriteFailed))
	}
	if res.Matched == 0 {
		return e.fail(op, id, apperrors.NewNotFound(""))
	}
	return e.done(ctx, op, id)
}

// ToggleDeleted sets the soft-delete flag. Setting the state the document
// already has succeeds without a history entry.
func (e *Engine) ToggleDeleted(ctx context.Context, actor history.Actor, id any, state bool) (bool, error) {
	op := "restore"
	if state {
		op = "delete"
	}
	if misc.IsEmpty(id) {
		return e.fail(op, id, ErrEmptyID)
	}
	ok, err := e.repo.SetDeleted(ctx, id, state, actor)
	if err != nil {
		return e.fail(op, id, apperrors.Wrap(err, msgWriteFailed))
	}
	if !ok {
		return e.fail(op, id, apperrors.NewNotFound(""))
	}
	return e.done(ctx, op, id)
}

// Get returns the stored document with its history log.
func (e *Engine) Get(ctx context.Context, id any) (*history.Record, error) {
	if misc.IsEmpty(id) {
		return nil, ErrEmptyID
	}
	rec, err := e.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("")
		}
		logger.Errorf("history: get %v: %v", id, err)
		return nil, apperrors.Wrap(err, "Fail to read document from the database")
	}
	return rec, nil
}

// History returns the rendered timeline of the document.
func (e *Engine) History(ctx context.Context, id any) ([]history.ChangeRecord, error) {
	if e.cache != nil && !misc.IsEmpty(id) {
		recs, ok, err := e.cache.Get(ctx, id)
		switch {
		case err != nil:
			metrics.TimelineCache.WithLabelValues("error").Inc()
			logger.Warnf("history: timeline cache get %v: %v", id, err)
		case ok:
			metrics.TimelineCache.WithLabelValues("hit").Inc()
			return recs, nil
		default:
			metrics.TimelineCache.WithLabelValues("miss").Inc()
		}
	}
	rec, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	recs := history.Render(rec.History)
	if e.cache != nil {
		if err := e.cache.Set(ctx, id, recs); err != nil {
			logger.Warnf("history: timeline cache set %v: %v", id, err)
		}
	}
	return recs, nil
}

func (e *Engine) done(ctx context.Context, op string, id any) (bool, error) {
	metrics.Mutations.WithLabelValues(op, "ok").Inc()
	logger.Debugf("history: %s %v ok", op, id)
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, id); err != nil {
			logger.Warnf("history: timeline cache invalidate %v: %v", id, err)
		}
	}
	return true, nil
}

func (e *Engine) fail(op string, id any, err *apperrors.Error) (bool, error) {
	outcome := "error"
	switch err.Kind {
	case apperrors.KindNotFound:
		outcome = "not_found"
	case apperrors.KindValidation:
		outcome = "invalid"
	}
	metrics.Mutations.WithLabelValues(op, outcome).Inc()
	if err.Kind == apperrors.KindRuntime && errors.Unwrap(err) != nil {
		logger.Errorf("history: %s %v: %v", op, id, err)
	} else {
		logger.Debugf("history: %s %v rejected: %v", op, id, err)
	}
	return false, err
}

// checkReserved rejects bodies that try to write store-managed fields.
func checkReserved(body map[string]any) *apperrors.Error {
	var details []apperrors.Detail
	for k := range body {
		if history.IsReserved(k) {
			details = append(details, apperrors.Detail{Key: k, Message: "field is managed by the store"})
		}
	}
	if len(details) == 0 {
		return nil
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Key < details[j].Key })
	return apperrors.NewValidation("reserved fields cannot be modified", details...)
}
