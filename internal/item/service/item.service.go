package service

import (
	"context"
	"net/url"

	"github.com/Yamemik/casher/internal/item/model"
	"github.com/Yamemik/casher/internal/query"
	"github.com/Yamemik/casher/internal/schema"
	"github.com/Yamemik/casher/socket"
)

// Store is the repository surface the service depends on.
type Store interface {
	Create(ctx context.Context, collection, owner string, rec schema.Record) (model.Item, error)
	Get(ctx context.Context, collection, owner, id string) (model.Item, error)
	Update(ctx context.Context, collection, owner, id string, expectedRevision int64, patch schema.Record) (model.Item, error)
	Delete(ctx context.Context, collection, owner, id string) error
	List(ctx context.Context, collection, owner string, spec query.Spec) ([]model.Item, string, error)
	Count(ctx context.Context, collection, owner string) (int64, error)
}

// ItemService validates payloads and query parameters at the boundary,
// delegates to the repository, and publishes mutation events. Every
// operation is scoped to the authenticated owner.
type ItemService struct {
	Store       Store
	Schemas     *schema.Registry
	Hub         *socket.Hub
	MaxPageSize int
}

func NewItemService(store Store, schemas *schema.Registry, hub *socket.Hub, maxPageSize int) *ItemService {
	return &ItemService{Store: store, Schemas: schemas, Hub: hub, MaxPageSize: maxPageSize}
}

func (s *ItemService) CreateItem(ctx context.Context, collection, owner string, payload map[string]any) (model.Item, error) {
	sch, err := s.Schemas.Lookup(collection)
	if err != nil {
		return model.Item{}, err
	}
	rec, err := sch.Validate(payload)
	if err != nil {
		return model.Item{}, err
	}

	item, err := s.Store.Create(ctx, collection, owner, rec)
	if err != nil {
		return model.Item{}, err
	}
	s.Hub.Publish(socket.Event{
		Type:       socket.CreatedType,
		Collection: collection,
		Owner:      owner,
		ItemID:     item.ID,
		Revision:   item.Revision,
	})
	return item, nil
}

func (s *ItemService) GetItem(ctx context.Context, collection, owner, id string) (model.Item, error) {
	if _, err := s.Schemas.Lookup(collection); err != nil {
		return model.Item{}, err
	}
	return s.Store.Get(ctx, collection, owner, id)
}

func (s *ItemService) UpdateItem(ctx context.Context, collection, owner, id string, req model.UpdateItemRequest) (model.Item, error) {
	sch, err := s.Schemas.Lookup(collection)
	if err != nil {
		return model.Item{}, err
	}
	patch, err := sch.ValidatePartial(req.Patch)
	if err != nil {
		return model.Item{}, err
	}

	item, err := s.Store.Update(ctx, collection, owner, id, req.ExpectedRevision, patch)
	if err != nil {
		return model.Item{}, err
	}
	s.Hub.Publish(socket.Event{
		Type:       socket.UpdatedType,
		Collection: collection,
		Owner:      owner,
		ItemID:     item.ID,
		Revision:   item.Revision,
	})
	return item, nil
}

func (s *ItemService) DeleteItem(ctx context.Context, collection, owner, id string) error {
	if _, err := s.Schemas.Lookup(collection); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, collection, owner, id); err != nil {
		return err
	}
	s.Hub.Publish(socket.Event{
		Type:       socket.DeletedType,
		Collection: collection,
		Owner:      owner,
		ItemID:     id,
	})
	return nil
}

func (s *ItemService) ListItems(ctx context.Context, collection, owner string, params url.Values) (model.ListItemsResponse, error) {
	sch, err := s.Schemas.Lookup(collection)
	if err != nil {
		return model.ListItemsResponse{}, err
	}
	spec, err := query.Build(params, sch, s.MaxPageSize)
	if err != nil {
		return model.ListItemsResponse{}, err
	}

	items, next, err := s.Store.List(ctx, collection, owner, spec)
	if err != nil {
		return model.ListItemsResponse{}, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return model.ListItemsResponse{Items: items, NextCursor: next}, nil
}

func (s *ItemService) CountItems(ctx context.Context, collection, owner string) (model.CountResponse, error) {
	n, err := s.Store.Count(ctx, collection, owner)
	if err != nil {
		return model.CountResponse{}, err
	}
	return model.CountResponse{Collection: collection, Count: n}, nil
}
