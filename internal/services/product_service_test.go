package services_test

import (
	"context"
	"fmt"
	"testing"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/stretchr/testify/assert"
)

const (
	productA = "3f1c3d8e-6a70-4a0e-9d8e-2b8f9c1a0a01"
	productB = "3f1c3d8e-6a70-4a0e-9d8e-2b8f9c1a0a02"
)

func TestProductService_GetAllProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expectedProducts := []models.Product{
		{ID: productA, Name: "Product A", Price: dec("10"), Stock: 100},
		{ID: productB, Name: "Product B", Price: dec("20"), Stock: 50},
	}

	mockRepo.On("GetAll").Return(expectedProducts, nil).Once()

	products, err := service.GetAllProducts(context.Background())

	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, expectedProducts, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expectedProduct := &models.Product{ID: productA, Name: "Product A", Price: dec("10"), Stock: 100}

	// Test successful retrieval
	mockRepo.On("GetByID", productA).Return(expectedProduct, nil).Once()
	product, err := service.GetProductByID(context.Background(), productA)
	assert.NoError(t, err)
	assert.Equal(t, expectedProduct, product)

	// Test product not found
	mockRepo.On("GetByID", "99").Return(nil, fmt.Errorf("product with ID 99: %w", repositories.ErrNotFound)).Once()
	product, err = service.GetProductByID(context.Background(), "99")
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	assert.Nil(t, product)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	newProduct := &models.Product{Name: "New Product", Price: dec("15"), Stock: 20}

	mockRepo.On("Create", newProduct).Return(nil).Once()

	err := service.CreateProduct(context.Background(), newProduct)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	// Invalid product is rejected before the repository
	err = service.CreateProduct(context.Background(), &models.Product{Name: "No", Price: dec("-1")})
	var vErr *services.ValidationError
	assert.ErrorAs(t, err, &vErr)
	mockRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestProductService_UpdateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	updatedProduct := &models.Product{ID: productA, Name: "Updated Product", Price: dec("12"), Stock: 90}

	mockRepo.On("Update", updatedProduct).Return(nil).Once()
	err := service.UpdateProduct(context.Background(), updatedProduct)
	assert.NoError(t, err)

	missing := &models.Product{ID: productB, Name: "Missing Product", Price: dec("1")}
	mockRepo.On("Update", missing).Return(fmt.Errorf("product with ID %s for update: %w", productB, repositories.ErrNotFound)).Once()
	err = service.UpdateProduct(context.Background(), missing)
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_DeleteProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	mockRepo.On("Delete", productA).Return(nil).Once()
	err := service.DeleteProduct(context.Background(), productA)
	assert.NoError(t, err)

	mockRepo.On("Delete", "99").Return(fmt.Errorf("product with ID 99 for deletion: %w", repositories.ErrNotFound)).Once()
	err = service.DeleteProduct(context.Background(), "99")
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	mockRepo.AssertExpectations(t)
}
