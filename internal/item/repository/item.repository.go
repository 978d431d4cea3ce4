// Package repository mediates between validated records and the document
// store. It owns per-operation use of the driver's pooled connections,
// enforces optimistic concurrency through the revision counter and maps
// every driver fault onto the package error taxonomy so driver error
// shapes never reach callers.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Yamemik/casher/internal/item/mapper"
	"github.com/Yamemik/casher/internal/item/model"
	"github.com/Yamemik/casher/internal/query"
	"github.com/Yamemik/casher/internal/schema"
	"github.com/Yamemik/casher/pkg/logger"
)

// Options tunes repository behavior.
type Options struct {
	// TombstoneRetain keeps deleted documents in place with a deletedAt
	// marker instead of removing them physically.
	TombstoneRetain bool

	// ReadRetries is how many times an idempotent read is retried after
	// a transient store failure. Writes are never retried.
	ReadRetries int

	// RetryBackoff is the base delay between read retries.
	RetryBackoff time.Duration
}

// ItemRepository provides collection-scoped CRUD over the document store.
type ItemRepository struct {
	db      *mongo.Database
	schemas *schema.Registry
	opts    Options
}

func NewItemRepository(db *mongo.Database, schemas *schema.Registry, opts Options) *ItemRepository {
	if opts.ReadRetries < 0 {
		opts.ReadRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	return &ItemRepository{db: db, schemas: schemas, opts: opts}
}

// notDeleted excludes tombstoned documents from every read and every
// conditional write.
func notDeleted() bson.M {
	return bson.M{"$exists": false}
}

// Create inserts a new item. Identifier assignment and revision=1 are
// atomic with the insert itself.
func (r *ItemRepository) Create(ctx context.Context, collection, owner string, rec schema.Record) (model.Item, error) {
	sch, err := r.schemas.Lookup(collection)
	if err != nil {
		return model.Item{}, err
	}

	doc := mapper.ToDocument(rec, owner, 1, time.Now())
	res, err := r.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return model.Item{}, classify(err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return model.Item{}, fmt.Errorf("%w: unexpected inserted id type %T", ErrStoreInternal, res.InsertedID)
	}
	doc["_id"] = oid
	return mapper.FromDocument(doc, sch)
}

// Get fetches one item by id, scoped to its owner.
func (r *ItemRepository) Get(ctx context.Context, collection, owner, id string) (model.Item, error) {
	sch, err := r.schemas.Lookup(collection)
	if err != nil {
		return model.Item{}, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	filter := bson.M{"_id": oid, "owner": owner, "deletedAt": notDeleted()}

	var item model.Item
	err = r.withReadRetry(ctx, func() error {
		var raw bson.M
		if err := r.db.Collection(collection).FindOne(ctx, filter).Decode(&raw); err != nil {
			return err
		}
		item, err = mapper.FromDocument(raw, sch)
		return err
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Item{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return model.Item{}, err
	}
	return item, nil
}

// Update applies a validated patch under optimistic concurrency: the
// write matches both id and expectedRevision and increments the revision
// server-side. A zero-match result on an existing id is a stale revision.
func (r *ItemRepository) Update(ctx context.Context, collection, owner, id string, expectedRevision int64, patch schema.Record) (model.Item, error) {
	sch, err := r.schemas.Lookup(collection)
	if err != nil {
		return model.Item{}, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	filter := bson.M{
		"_id":       oid,
		"owner":     owner,
		"revision":  expectedRevision,
		"deletedAt": notDeleted(),
	}
	update := bson.M{
		"$set": mapper.PatchSet(patch, time.Now()),
		"$inc": bson.M{"revision": int64(1)},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	err = r.db.Collection(collection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Item{}, r.resolveUpdateMiss(ctx, collection, owner, oid, id)
	}
	if err != nil {
		return model.Item{}, classify(err)
	}
	return mapper.FromDocument(raw, sch)
}

// resolveUpdateMiss distinguishes a stale revision from an absent item
// after a conditional update matched nothing.
func (r *ItemRepository) resolveUpdateMiss(ctx context.Context, collection, owner string, oid primitive.ObjectID, id string) error {
	n, err := r.db.Collection(collection).CountDocuments(ctx,
		bson.M{"_id": oid, "owner": owner, "deletedAt": notDeleted()})
	if err != nil {
		return classify(err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %q", ErrRevisionConflict, id)
	}
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Delete removes an item. With tombstone retention the document stays in
// place carrying a deletedAt marker and an incremented revision so
// concurrent conditional updates fail; otherwise it is removed physically.
func (r *ItemRepository) Delete(ctx context.Context, collection, owner, id string) error {
	if _, err := r.schemas.Lookup(collection); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	filter := bson.M{"_id": oid, "owner": owner, "deletedAt": notDeleted()}
	coll := r.db.Collection(collection)

	if r.opts.TombstoneRetain {
		res, err := coll.UpdateOne(ctx, filter, bson.M{
			"$set": bson.M{"deletedAt": mapper.NormalizeTime(time.Now())},
			"$inc": bson.M{"revision": int64(1)},
		})
		if err != nil {
			return classify(err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil
	}

	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return classify(err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

// List executes a query spec and returns one page plus the cursor of the
// next page, empty on the last. Each call re-executes the query.
func (r *ItemRepository) List(ctx context.Context, collection, owner string, spec query.Spec) ([]model.Item, string, error) {
	sch, err := r.schemas.Lookup(collection)
	if err != nil {
		return nil, "", err
	}

	filter, err := listFilter(owner, spec, sch)
	if err != nil {
		return nil, "", err
	}
	findOpts := options.Find().
		SetSort(sortDoc(spec)).
		SetLimit(int64(spec.PageSize) + 1)
	if spec.Cursor == nil && spec.Offset > 0 {
		findOpts.SetSkip(spec.Offset)
	}

	var items []model.Item
	err = r.withReadRetry(ctx, func() error {
		cur, err := r.db.Collection(collection).Find(ctx, filter, findOpts)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		items = items[:0]
		for cur.Next(ctx) {
			var raw bson.M
			if err := cur.Decode(&raw); err != nil {
				return err
			}
			it, err := mapper.FromDocument(raw, sch)
			if err != nil {
				return err
			}
			items = append(items, it)
		}
		return cur.Err()
	})
	if err != nil {
		return nil, "", err
	}

	page, next := trimPage(items, spec)
	return page, next, nil
}

// Count returns the derived item count of a collection for one owner.
// The count is informational only, never a consistency input.
func (r *ItemRepository) Count(ctx context.Context, collection, owner string) (int64, error) {
	if _, err := r.schemas.Lookup(collection); err != nil {
		return 0, err
	}
	var n int64
	err := r.withReadRetry(ctx, func() error {
		var err error
		n, err = r.db.Collection(collection).CountDocuments(ctx,
			bson.M{"owner": owner, "deletedAt": notDeleted()})
		return err
	})
	return n, err
}

// withReadRetry runs an idempotent read, retrying transient store
// failures with bounded backoff. Corrupt-document and not-found errors
// pass through untouched; everything else is classified.
func (r *ItemRepository) withReadRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.opts.ReadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * r.opts.RetryBackoff):
			}
			logger.Sugar.Warnf("Retrying read after transient store failure (attempt %d): %v", attempt, lastErr)
		}
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, mapper.ErrCorruptDocument) || errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		classified := classify(err)
		if !errors.Is(classified, ErrStoreUnavailable) {
			return classified
		}
		lastErr = classified
	}
	return lastErr
}

// classify maps driver faults onto the repository error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreInternal, err)
	}
}

// listFilter builds the Mongo filter for a list spec: owner scoping,
// tombstone exclusion, field filters and the cursor window.
func listFilter(owner string, spec query.Spec, sch *schema.Schema) (bson.M, error) {
	filter := bson.M{"owner": owner, "deletedAt": notDeleted()}
	for _, f := range spec.Filters {
		switch f.Op {
		case query.OpEq:
			// $eq rather than a bare value so it conjoins with range
			// operators on the same field.
			mergeOp(filter, f.Field, "$eq", f.Value)
		case query.OpGt:
			mergeOp(filter, f.Field, "$gt", f.Value)
		case query.OpLt:
			mergeOp(filter, f.Field, "$lt", f.Value)
		case query.OpIn:
			mergeOp(filter, f.Field, "$in", f.Values)
		}
	}

	if spec.Cursor == nil {
		return filter, nil
	}
	window, err := cursorWindow(spec, sch)
	if err != nil {
		return nil, err
	}
	return bson.M{"$and": bson.A{filter, window}}, nil
}

func mergeOp(filter bson.M, field, op string, v any) {
	if m, ok := filter[field].(bson.M); ok {
		m[op] = v
		return
	}
	filter[field] = bson.M{op: v}
}

// cursorWindow builds the strict total-order predicate positioning the
// page after the cursor row: (sortField, _id) beyond the last-seen pair.
// Documents without the sort field group at one end of the order, first
// ascending and last descending, and the window accounts for both the
// cursor row and later rows lacking the field.
func cursorWindow(spec query.Spec, sch *schema.Schema) (bson.M, error) {
	c := spec.Cursor
	t, ok := query.FieldTypeOf(sch, c.Field)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort field %q", query.ErrInvalidCursor, c.Field)
	}
	oid, err := primitive.ObjectIDFromHex(c.LastID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad last id", query.ErrInvalidCursor)
	}

	cmp := "$gt"
	if spec.SortDir == query.Desc {
		cmp = "$lt"
	}

	if c.Missing {
		if spec.SortDir == query.Asc {
			// Remaining field-less rows by id, then every row carrying
			// the field.
			return bson.M{"$or": bson.A{
				bson.M{c.Field: bson.M{"$exists": false}, "_id": bson.M{cmp: oid}},
				bson.M{c.Field: bson.M{"$exists": true}},
			}}, nil
		}
		return bson.M{c.Field: bson.M{"$exists": false}, "_id": bson.M{cmp: oid}}, nil
	}

	v, err := cursorValue(t, c.Value)
	if err != nil {
		return nil, err
	}
	window := bson.A{
		bson.M{c.Field: bson.M{cmp: v}},
		bson.M{c.Field: v, "_id": bson.M{cmp: oid}},
	}
	if spec.SortDir == query.Desc {
		// Typed comparisons skip field-less rows, which sort after every
		// value in descending order.
		window = append(window, bson.M{c.Field: bson.M{"$exists": false}})
	}
	return bson.M{"$or": window}, nil
}

// cursorValue rebuilds the typed sort value from its JSON-decoded form.
func cursorValue(t schema.FieldType, v any) (any, error) {
	switch t {
	case schema.Timestamp:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: timestamp value", query.ErrInvalidCursor)
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp value", query.ErrInvalidCursor)
		}
		return ts.UTC(), nil
	case schema.Number:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: number value", query.ErrInvalidCursor)
		}
		return f, nil
	case schema.String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: string value", query.ErrInvalidCursor)
		}
		return s, nil
	case schema.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: boolean value", query.ErrInvalidCursor)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: unsupported sort type", query.ErrInvalidCursor)
}

// sortDoc is the total-order sort: requested field plus _id as tie-break
// in the same direction, so duplicate sort values still page
// deterministically.
func sortDoc(spec query.Spec) bson.D {
	return bson.D{
		{Key: spec.SortField, Value: int(spec.SortDir)},
		{Key: "_id", Value: int(spec.SortDir)},
	}
}

// trimPage cuts the pageSize+1 overfetch down to one page and derives
// the next cursor from its last row. A last row without the sort field
// is recorded as Missing so the token stays replayable.
func trimPage(items []model.Item, spec query.Spec) ([]model.Item, string) {
	if len(items) <= spec.PageSize {
		return items, ""
	}
	page := items[:spec.PageSize]
	last := page[len(page)-1]
	c := query.Cursor{
		Field:  spec.SortField,
		Dir:    spec.SortDir,
		LastID: last.ID,
	}
	if v, ok := sortFieldValue(last, spec.SortField); ok {
		c.Value = encodeSortValue(v)
	} else {
		c.Missing = true
	}
	return page, c.Encode()
}

func sortFieldValue(item model.Item, field string) (any, bool) {
	switch field {
	case "createdAt":
		return item.CreatedAt, true
	case "updatedAt":
		return item.UpdatedAt, true
	default:
		v, ok := item.Fields[field]
		return v, ok
	}
}

// encodeSortValue pins the JSON form of a cursor value: timestamps travel
// as RFC 3339 strings so decoding is type-stable.
func encodeSortValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}
