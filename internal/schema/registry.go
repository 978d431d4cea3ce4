package schema

import "fmt"

// Registry maps collection names to their declared schemas. It is built
// once at startup and read-only afterwards.
type Registry struct {
	schemas map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds a schema under its collection name. Registering the same
// name twice is a programming error.
func (r *Registry) Register(s *Schema) {
	if _, ok := r.schemas[s.Collection]; ok {
		panic(fmt.Sprintf("schema registry: duplicate collection %q", s.Collection))
	}
	r.schemas[s.Collection] = s
}

// Lookup resolves the schema for a collection name.
func (r *Registry) Lookup(collection string) (*Schema, error) {
	s, ok := r.schemas[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return s, nil
}

// Default returns the registry seeded with the casher collections.
func Default() *Registry {
	r := NewRegistry()

	priceMin := 0.0
	r.Register(&Schema{
		Collection: "items",
		Fields: map[string]FieldSpec{
			"category":      {Type: String, Required: true, MinLen: 1, MaxLen: 120},
			"product":       {Type: String, Required: true, MinLen: 1, MaxLen: 200},
			"price":         {Type: Number, Required: true, Min: &priceMin},
			"size":          {Type: String, Enum: []string{"XS", "S", "M", "L", "XL", "XXL"}},
			"description":   {Type: String, MaxLen: 4000, Default: ""},
			"is_visible":    {Type: Boolean, Default: true},
			"released_at":   {Type: Timestamp},
			"checker":       {Type: String, Default: ""},
			"img_reference": {Type: String, Default: ""},
		},
	})

	amountMin := 0.0
	r.Register(&Schema{
		Collection: "orders",
		Fields: map[string]FieldSpec{
			"number": {Type: String, Required: true, MinLen: 1, MaxLen: 64},
			"status": {Type: String, Required: true, Enum: []string{"new", "paid", "shipped", "done", "cancelled"}},
			"amount": {Type: Number, Required: true, Min: &amountMin},
			"placed": {Type: Timestamp},
		},
	})

	r.Register(&Schema{
		Collection: "wallets",
		Fields: map[string]FieldSpec{
			"name":   {Type: String, Required: true, MinLen: 1, MaxLen: 120},
			"amount": {Type: Number, Required: true},
		},
	})

	return r
}
