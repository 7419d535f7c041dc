package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
)

const productEventsTopic = "product_events"

// Indexer mirrors catalog writes into the search backend.
type Indexer interface {
	IndexProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type CatalogService struct {
	Repo     *repo.GormRepo
	Producer *mykafka.Producer
	Indexer  Indexer
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Discount    decimal.Decimal
	Stock       int
	CategoryID  *uuid.UUID
}

type PatchProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Discount    *decimal.Decimal
	Stock       *int
	IsActive    *bool
	CategoryID  *uuid.UUID
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.Repo.GetProduct(ctx, id)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return product, err
}

func (s *CatalogService) GetProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.GetProducts(ctx, offset, limit)
}

func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	if err := validatePricing(in.Price, in.Discount); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	if in.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must be >= 0", ErrValidation)
	}

	product := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Slug:        Slugify(in.Name),
		Price:       in.Price,
		Discount:    in.Discount,
		Stock:       in.Stock,
		IsActive:    true,
		CategoryID:  in.CategoryID,
	}

	product, err := s.Repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	s.index(ctx, product)
	s.publish(ctx, map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"name":      product.Name,
	})
	return product, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, id uuid.UUID, in PatchProductInput) (*models.Product, error) {
	product, err := s.Repo.GetProduct(ctx, id)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		product.Name = *in.Name
		product.Slug = Slugify(*in.Name)
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.Price != nil {
		product.Price = *in.Price
	}
	if in.Discount != nil {
		product.Discount = *in.Discount
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must be >= 0", ErrValidation)
		}
		product.Stock = *in.Stock
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}
	if in.CategoryID != nil {
		product.CategoryID = in.CategoryID
	}

	if err := validatePricing(product.Price, product.Discount); err != nil {
		return nil, err
	}

	product, err = s.Repo.SaveProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	s.index(ctx, product)
	s.publish(ctx, map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
		"name":      product.Name,
	})
	return product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := s.Repo.DeleteProduct(ctx, id)
	if repo.IsNotFound(err) {
		return fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	if s.Indexer != nil {
		if err := s.Indexer.DeleteProduct(ctx, id); err != nil {
			logging.FromContext(ctx).Error("search deindex", "product_id", id, "error", err)
		}
	}
	s.publish(ctx, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})
	return nil
}

func (s *CatalogService) GetCategories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.GetCategories(ctx)
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	return s.Repo.CreateCategory(ctx, &models.Category{Name: name, Slug: Slugify(name)})
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	err := s.Repo.DeleteCategory(ctx, id)
	if repo.IsNotFound(err) {
		return fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	return err
}

func validatePricing(price, discount decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}
	if discount.IsNegative() {
		return fmt.Errorf("%w: discount must be >= 0", ErrValidation)
	}
	if discount.GreaterThan(price) {
		return fmt.Errorf("%w: discount cannot exceed price", ErrValidation)
	}
	return nil
}

// Slugify lowercases the name and collapses everything outside
// [a-z0-9] into single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (s *CatalogService) index(ctx context.Context, product *models.Product) {
	if s.Indexer == nil {
		return
	}
	if err := s.Indexer.IndexProduct(ctx, product); err != nil {
		logging.FromContext(ctx).Error("search index", "product_id", product.ID, "error", err)
	}
}

func (s *CatalogService) publish(ctx context.Context, event map[string]any) {
	if s.Producer == nil {
		return
	}
	if err := s.Producer.PublishEvent(ctx, productEventsTopic, fmt.Sprint(event["productID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish", "topic", productEventsTopic, "error", err)
	}
}
