package mapper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Yamemik/casher/internal/item/mapper"
	"github.com/Yamemik/casher/internal/schema"
)

func walletSchema() *schema.Schema {
	return &schema.Schema{
		Collection: "wallets",
		Fields: map[string]schema.FieldSpec{
			"name":     {Type: schema.String, Required: true},
			"amount":   {Type: schema.Number, Required: true},
			"currency": {Type: schema.String, Default: "RUB"},
			"opened":   {Type: schema.Timestamp},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	sch := walletSchema()
	now := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)

	rec, err := sch.Validate(map[string]any{
		"name":   "main",
		"amount": float64(10),
		"opened": "2024-04-01T09:30:00Z",
	})
	require.NoError(t, err)

	doc := mapper.ToDocument(rec, "owner-1", 1, now)
	doc["_id"] = primitive.NewObjectID()

	item, err := mapper.FromDocument(doc, sch)
	require.NoError(t, err)

	assert.Equal(t, "owner-1", item.Owner)
	assert.Equal(t, int64(1), item.Revision)
	assert.Equal(t, "main", item.Fields["name"])
	assert.Equal(t, float64(10), item.Fields["amount"])
	assert.Equal(t, "RUB", item.Fields["currency"], "default should be injected on read")
	assert.Equal(t, time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC), item.Fields["opened"])
	// Canonical precision is milliseconds.
	assert.Equal(t, now.Truncate(time.Millisecond), item.CreatedAt)
	assert.Equal(t, item.CreatedAt, item.UpdatedAt)
}

func TestToDocumentStripsManagedFields(t *testing.T) {
	rec := schema.Record{
		"name":     "main",
		"amount":   float64(5),
		"revision": int64(99),
		"owner":    "spoofed",
		"_id":      "spoofed",
	}

	doc := mapper.ToDocument(rec, "owner-1", 1, time.Now())

	assert.Equal(t, "owner-1", doc["owner"])
	assert.Equal(t, int64(1), doc["revision"])
	assert.NotContains(t, doc, "_id")
}

func TestPatchSet(t *testing.T) {
	now := time.Now()
	set := mapper.PatchSet(schema.Record{"amount": float64(20), "revision": int64(7)}, now)

	assert.Equal(t, float64(20), set["amount"])
	assert.NotContains(t, set, "revision")
	assert.Equal(t, mapper.NormalizeTime(now), set["updatedAt"])
	assert.NotContains(t, set, "createdAt")
}

func TestFromDocumentDateTime(t *testing.T) {
	sch := walletSchema()
	oid := primitive.NewObjectID()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	doc := bson.M{
		"_id":       oid,
		"owner":     "owner-1",
		"revision":  int32(3),
		"createdAt": primitive.NewDateTimeFromTime(ts),
		"updatedAt": primitive.NewDateTimeFromTime(ts),
		"name":      "main",
		"amount":    int64(7),
		"opened":    primitive.NewDateTimeFromTime(ts),
	}

	item, err := mapper.FromDocument(doc, sch)
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), item.ID)
	assert.Equal(t, int64(3), item.Revision)
	assert.Equal(t, float64(7), item.Fields["amount"], "stored integers read back as numbers")
	assert.Equal(t, ts, item.CreatedAt)
	assert.Equal(t, ts, item.Fields["opened"])
}

func TestFromDocumentCorrupt(t *testing.T) {
	sch := walletSchema()
	oid := primitive.NewObjectID()
	ts := primitive.NewDateTimeFromTime(time.Now())

	base := func() bson.M {
		return bson.M{
			"_id":       oid,
			"owner":     "owner-1",
			"revision":  int64(1),
			"createdAt": ts,
			"updatedAt": ts,
			"name":      "main",
			"amount":    float64(1),
		}
	}

	tests := []struct {
		name   string
		mutate func(bson.M)
	}{
		{"missing _id", func(d bson.M) { delete(d, "_id") }},
		{"string _id", func(d bson.M) { d["_id"] = "not-an-oid" }},
		{"missing owner", func(d bson.M) { delete(d, "owner") }},
		{"zero revision", func(d bson.M) { d["revision"] = int64(0) }},
		{"string revision", func(d bson.M) { d["revision"] = "1" }},
		{"missing createdAt", func(d bson.M) { delete(d, "createdAt") }},
		{"undeclared field", func(d bson.M) { d["legacy"] = "junk" }},
		{"mistyped field", func(d bson.M) { d["amount"] = "lots" }},
		{"missing required field", func(d bson.M) { delete(d, "name") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := base()
			tt.mutate(doc)
			_, err := mapper.FromDocument(doc, sch)
			assert.ErrorIs(t, err, mapper.ErrCorruptDocument)
		})
	}
}

func TestFromDocumentOptionalAbsent(t *testing.T) {
	sch := walletSchema()
	doc := bson.M{
		"_id":       primitive.NewObjectID(),
		"owner":     "owner-1",
		"revision":  int64(1),
		"createdAt": primitive.NewDateTimeFromTime(time.Now()),
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		"name":      "main",
		"amount":    float64(1),
	}

	item, err := mapper.FromDocument(doc, sch)
	require.NoError(t, err)
	// Optional without default stays absent; optional with default is filled.
	assert.NotContains(t, item.Fields, "opened")
	assert.Equal(t, "RUB", item.Fields["currency"])
}

func TestNormalizeTime(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	in := time.Date(2024, 5, 1, 13, 0, 0, 999999999, loc)

	out := mapper.NormalizeTime(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 999000000, out.Nanosecond())
}
