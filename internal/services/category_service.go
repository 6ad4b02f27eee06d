package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/validation"

	"github.com/go-playground/validator/v10"
)

// CategoryService handles business logic related to catalog categories.
type CategoryService struct {
	repo     repositories.CategoryRepository
	validate *validator.Validate
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(repo repositories.CategoryRepository) *CategoryService {
	return &CategoryService{
		repo:     repo,
		validate: validation.New(),
	}
}

// ListCategories returns every category, newest first.
func (s *CategoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.repo.GetAll(ctx)
}

// GetCategory returns a category by ID.
func (s *CategoryService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	return category, nil
}

// CreateCategory stores a new category. The name must not be taken.
func (s *CategoryService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	category := &models.Category{Name: strings.TrimSpace(name)}
	if err := s.check(ctx, category); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// UpdateCategory renames a category.
func (s *CategoryService) UpdateCategory(ctx context.Context, id, name string) (*models.Category, error) {
	category := &models.Category{ID: id, Name: strings.TrimSpace(name)}
	if err := s.check(ctx, category); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	return category, nil
}

// DeleteCategory removes a category by ID.
func (s *CategoryService) DeleteCategory(ctx context.Context, id string) error {
	return notFound(s.repo.Delete(ctx, id), ErrCategoryNotFound)
}

// check validates the name and rejects one already used by another category.
func (s *CategoryService) check(ctx context.Context, category *models.Category) error {
	if category.Name == "" {
		return invalid("Category name is required")
	}
	if err := s.validate.Struct(category); err != nil {
		return validationFailure(err)
	}
	existing, err := s.repo.GetByName(ctx, category.Name)
	switch {
	case err == nil && existing.ID != category.ID:
		return fmt.Errorf("%w: %s", ErrCategoryExists, category.Name)
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("failed to check category name: %w", err)
	}
	return nil
}
