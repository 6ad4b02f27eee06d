package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	user := &models.User{
		Username: "testuser",
		Email:    "Test@Example.com",
		Password: "password123",
	}

	mockRepo.On("GetByEmail", "test@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := authService.RegisterUser(context.Background(), user)
	assert.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// Email already registered
	mockRepo.On("GetByEmail", "taken@example.com").Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(context.Background(), &models.User{Username: "other", Email: "taken@example.com", Password: "password123"})
	assert.ErrorIs(t, err, services.ErrEmailTaken)
	mockRepo.AssertExpectations(t)

	// Invalid payload never reaches the repository
	err = authService.RegisterUser(context.Background(), &models.User{Username: "x", Email: "not-an-email", Password: "1"})
	var vErr *services.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Username: "testuser",
		Email:    "test@example.com",
		Password: string(hashedPassword),
	}

	// Test successful login
	mockRepo.On("GetByEmail", user.Email).Return(user, nil).Once()
	token, loggedIn, err := authService.LoginUser(context.Background(), "test@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	mockRepo.AssertExpectations(t)

	// Wrong password
	mockRepo.On("GetByEmail", user.Email).Return(user, nil).Once()
	_, _, err = authService.LoginUser(context.Background(), user.Email, "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Unknown user gets the same generic error
	mockRepo.On("GetByEmail", "nobody@example.com").Return(nil, repositories.ErrNotFound).Once()
	_, _, err = authService.LoginUser(context.Background(), "nobody@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, time.Hour)

	validToken, err := authService.IssueToken(&models.User{ID: "user-123"})
	require.NoError(t, err)

	claims, err := authService.ValidateToken(validToken)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", claims["user_id"])

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	expiredString, _ := expired.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredString)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "user-123"})
	foreignString, _ := foreign.SignedString([]byte("another_secret"))
	_, err = authService.ValidateToken(foreignString)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	_, err = authService.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestAuthService_Authenticate(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	token, err := authService.IssueToken(&models.User{ID: "user-123"})
	require.NoError(t, err)

	mockRepo.On("GetByID", "user-123").Return(&models.User{ID: "user-123", IsAdmin: true}, nil).Once()
	user, err := authService.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	// Deleted user
	mockRepo.On("GetByID", "user-123").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	mockRepo.On("GetByEmail", "admin@example.com").Return(nil, repositories.ErrNotFound).Twice()
	mockRepo.On("Create", mock.MatchedBy(func(u *models.User) bool { return u.IsAdmin && u.Username == "admin" })).Return(nil).Once()
	require.NoError(t, authService.EnsureAdmin(context.Background(), "", "admin@example.com", "supersecret"))

	mockRepo.On("GetByEmail", "admin@example.com").Return(&models.User{ID: "a1", IsAdmin: true}, nil).Once()
	require.NoError(t, authService.EnsureAdmin(context.Background(), "", "admin@example.com", "supersecret"))

	// Nothing configured
	require.NoError(t, authService.EnsureAdmin(context.Background(), "", "", ""))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	ctx := context.Background()

	current := func() *models.User {
		return &models.User{ID: "user-1", Username: "shopper", Email: "shopper@example.com", Password: "old-hash"}
	}

	mockRepo.On("GetByID", "user-1").Return(current(), nil).Once()
	mockRepo.On("GetByEmail", "new@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.User")).Return(nil).Once()

	updated, err := authService.UpdateProfile(ctx, "user-1", models.ProfileUpdate{Email: "New@Example.com", Password: "newpassword"})
	require.NoError(t, err)
	assert.Equal(t, "shopper", updated.Username)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.Password), []byte("newpassword")))
	mockRepo.AssertExpectations(t)

	// Email held by someone else
	mockRepo.On("GetByID", "user-1").Return(current(), nil).Once()
	mockRepo.On("GetByEmail", "taken@example.com").Return(&models.User{ID: "user-2"}, nil).Once()
	_, err = authService.UpdateProfile(ctx, "user-1", models.ProfileUpdate{Email: "taken@example.com"})
	assert.ErrorIs(t, err, services.ErrEmailTaken)

	// Too short a password never reaches the repository
	_, err = authService.UpdateProfile(ctx, "user-1", models.ProfileUpdate{Password: "12"})
	var vErr *services.ValidationError
	assert.ErrorAs(t, err, &vErr)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_UpdateUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	promote := true

	mockRepo.On("GetByID", "user-1").Return(&models.User{ID: "user-1", Username: "shopper", Email: "shopper@example.com"}, nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(u *models.User) bool { return u.IsAdmin && u.Username == "manager" })).Return(nil).Once()

	updated, err := authService.UpdateUser(context.Background(), "user-1", models.UserUpdate{Username: "manager", IsAdmin: &promote})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)
	assert.Equal(t, "shopper@example.com", updated.Email)

	mockRepo.On("GetByID", "missing").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.UpdateUser(context.Background(), "missing", models.UserUpdate{Username: "ghost"})
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_DeleteUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	mockRepo.On("GetByID", "user-1").Return(&models.User{ID: "user-1"}, nil).Once()
	mockRepo.On("Delete", "user-1").Return(nil).Once()
	assert.NoError(t, authService.DeleteUser(context.Background(), "user-1"))

	mockRepo.On("GetByID", "admin-1").Return(&models.User{ID: "admin-1", Email: "admin@example.com", IsAdmin: true}, nil).Once()
	assert.ErrorIs(t, authService.DeleteUser(context.Background(), "admin-1"), services.ErrCannotDeleteAdmin)

	mockRepo.On("GetByID", "missing").Return(nil, repositories.ErrNotFound).Once()
	assert.ErrorIs(t, authService.DeleteUser(context.Background(), "missing"), services.ErrUserNotFound)

	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Delete", "admin-1")
}
