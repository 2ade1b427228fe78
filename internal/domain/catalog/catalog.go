// Package catalog resolves item ids to item records within one snapshot.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/quickcart/internal/model"
)

// ItemNotFoundError indicates a referenced item does not exist.
type ItemNotFoundError struct {
	ItemID int
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d not found", e.ItemID)
}

// Resolver is an id index over the items of one document. Lookups return
// pointers into the document, so mutations through them land in the snapshot.
type Resolver struct {
	byID map[int]*model.Item
}

// NewResolver indexes items. The slice must outlive the Resolver.
func NewResolver(items []model.Item) *Resolver {
	byID := make(map[int]*model.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	return &Resolver{byID: byID}
}

// Lookup returns the item with the given id or an *ItemNotFoundError.
func (r *Resolver) Lookup(id int) (*model.Item, error) {
	it, ok := r.byID[id]
	if !ok {
		return nil, &ItemNotFoundError{ItemID: id}
	}
	return it, nil
}

// Repository provides read access to the document.
type Repository interface {
	View(ctx context.Context, fn func(doc *model.Document) error) error
}

// Service exposes the catalog for listing.
type Service struct {
	docs Repository
}

// NewService creates a catalog Service.
func NewService(docs Repository) *Service {
	return &Service{docs: docs}
}

// List returns every item in catalog order.
func (s *Service) List(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	err := s.docs.View(ctx, func(doc *model.Document) error {
		items = append([]model.Item{}, doc.Items...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	return items, nil
}
