package services

import (
	"context"
	"fmt"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/store"
)

// CategoryInput carries user-submitted category fields.
type CategoryInput struct {
	Name  string
	Type  string
	Color string
}

type CategoryService struct {
	categories store.DocumentStore
	logger     *log.Logger
}

func NewCategoryService(categories store.DocumentStore, logger *log.Logger) *CategoryService {
	return &CategoryService{
		categories: categories,
		logger:     logger.WithComponent(log.ComponentService),
	}
}

func (s *CategoryService) Create(ctx context.Context, ownerID string, input CategoryInput) (core.Category, error) {
	cat := core.Category{Name: input.Name, Type: input.Type, Color: input.Color}
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	if cat.Color == "" {
		cat.Color = core.CategoryColor(cat.Name)
	}

	record := core.RawRecord{
		"name":  cat.Name,
		"type":  cat.Type,
		"color": cat.Color,
	}
	id, err := s.categories.Add(ctx, ownerID, record)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	return s.get(ctx, ownerID, id)
}

func (s *CategoryService) Update(ctx context.Context, ownerID, id string, input CategoryInput) (core.Category, error) {
	cat := core.Category{Name: input.Name, Type: input.Type, Color: input.Color}
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return core.Category{}, err
	}

	changes := core.RawRecord{"name": cat.Name, "type": cat.Type}
	if cat.Color != "" {
		changes["color"] = cat.Color
	}
	if err := s.categories.Update(ctx, id, changes); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return s.get(ctx, ownerID, id)
}

func (s *CategoryService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// List returns the owner's categories, filtered by type when typ is
// "income" or "expense".
func (s *CategoryService) List(ctx context.Context, ownerID, typ string) ([]core.Category, error) {
	records, err := s.categories.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return core.FilterCategoriesByType(core.NormalizeCategories(records), typ), nil
}

// Names returns the category names offered for a transaction type. Owners
// with no categories of their own get the stock defaults instead; the two
// sets never mix.
func (s *CategoryService) Names(ctx context.Context, ownerID, typ string) ([]string, error) {
	records, err := s.categories.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return core.CategoryNamesFor(core.NormalizeCategories(records), typ), nil
}

func (s *CategoryService) get(ctx context.Context, ownerID, id string) (core.Category, error) {
	record, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return core.Category{}, err
	}
	return core.NormalizeCategory(record), nil
}

func (s *CategoryService) owned(ctx context.Context, ownerID, id string) (core.RawRecord, error) {
	record, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner, _ := record["ownerId"].(string); owner != ownerID {
		return nil, store.ErrNotFound
	}
	return record, nil
}
