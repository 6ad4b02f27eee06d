// Package app wires configuration, stores, the payment gateway and HTTP routes together.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/payment"
	"storefront/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Dependencies are the collaborators New builds the HTTP app from.
type Dependencies struct {
	DB        *gorm.DB
	Orders    repositories.OrderRepository
	Gateway   payment.Gateway
	Publisher events.Publisher
}

// Server owns the running app and the connections opened for it.
type Server struct {
	App *fiber.App
	// Broker is nil when RABBITMQ_URL is empty.
	Broker  *rabbitmq.Client
	closers []func()
}

// Bootstrap opens every backing service named by cfg and builds the app.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{}

	db, err := repositories.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := repositories.Migrate(db); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		s.closers = append(s.closers, func() { _ = sqlDB.Close() })
	}

	orders, err := s.openOrderStore(ctx, cfg, db)
	if err != nil {
		s.Close()
		return nil, err
	}

	var publisher events.Publisher = events.LogPublisher{}
	if cfg.RabbitMQURL != "" {
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		s.Broker = client
		s.closers = append(s.closers, func() { _ = client.Close() })
		publisher = events.NewBrokerPublisher(client)
	} else {
		log.Println("RABBITMQ_URL not set, order events will only be logged")
	}

	gateway := payment.NewBreakerGateway(
		payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Currency:      cfg.PaymentCurrency,
			Timeout:       cfg.GatewayTimeout,
		}),
		payment.BreakerSettings{
			Name:        "stripe",
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		},
	)

	s.App, err = New(ctx, cfg, Dependencies{
		DB:        db,
		Orders:    orders,
		Gateway:   gateway,
		Publisher: publisher,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) openOrderStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (repositories.OrderRepository, error) {
	switch cfg.OrderStore {
	case "mongo":
		mdb, err := repositories.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { disconnect(mdb.Client()) })
		repo := repositories.NewMongoOrderRepository(mdb)
		if err := repo.CreateIndexes(ctx); err != nil {
			return nil, err
		}
		log.Printf("Order store: mongo (%s)", cfg.MongoDatabase)
		return repo, nil
	case "memory":
		log.Println("Order store: memory (orders are lost on restart)")
		return repositories.NewMockOrderRepository(), nil
	default:
		log.Printf("Order store: gorm (%s)", cfg.DatabaseDriver)
		return repositories.NewGORMOrderRepository(db), nil
	}
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	}
}

// Close releases connections in reverse order of opening.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// New builds the Fiber app from cfg and deps. A nil Orders store falls back to the
// gorm store on deps.DB.
func New(ctx context.Context, cfg *config.Config, deps Dependencies) (*fiber.App, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("a database is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("a payment gateway is required")
	}
	if deps.Orders == nil {
		deps.Orders = repositories.NewGORMOrderRepository(deps.DB)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.LogPublisher{}
	}

	productRepo := repositories.NewGORMProductRepository(deps.DB)
	userRepo := repositories.NewGORMUserRepository(deps.DB)
	categoryRepo := repositories.NewGORMCategoryRepository(deps.DB)

	pricing := services.PricingPolicy{
		TaxRate:            cfg.TaxRate,
		ShippingFlat:       cfg.ShippingFlat,
		HonorClientCharges: cfg.HonorClientCharges,
	}
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL)
	productService := services.NewProductService(productRepo)
	categoryService := services.NewCategoryService(categoryRepo)
	orderService := services.NewOrderService(deps.Orders, productRepo, deps.Publisher, pricing, services.OrderPolicy{
		RequirePaidForDelivery: cfg.RequirePaidForDelivery,
	})
	checkoutService := services.NewCheckoutService(deps.Orders, deps.Gateway, deps.Publisher, pricing, services.CheckoutConfig{
		SuccessURL:    cfg.SuccessURL(),
		CancelURL:     cfg.CancelURL(),
		PaymentMethod: cfg.PaymentMethodLabel,
	})
	reconciliationService := services.NewReconciliationService(deps.Orders, deps.Gateway, deps.Publisher)

	if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{AppName: "storefront"})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${method} ${path} ${latency}\n",
	}))
	if cfg.ClientURL != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.ClientURL,
			AllowCredentials: true,
		}))
	}

	auth := middleware.AuthRequired(authService)
	admin := middleware.AdminRequired()

	api := app.Group("/api")
	handlers.NewAuthHandler(authService, cfg.CookieSecure).RegisterRoutes(api, auth, admin)
	handlers.NewProductHandler(productService).RegisterRoutes(api, auth, admin)
	handlers.NewCategoryHandler(categoryService).RegisterRoutes(api, auth, admin)
	handlers.NewCheckoutHandler(checkoutService, reconciliationService).RegisterRoutes(api, auth)
	handlers.NewOrderHandler(orderService).RegisterRoutes(api, auth, admin)

	app.Get("/health", healthHandler(deps))

	return app, nil
}

func healthHandler(deps Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		}
		status := fiber.StatusOK
		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			status = fiber.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
		if g, ok := deps.Gateway.(*payment.BreakerGateway); ok {
			body["payment_gateway"] = g.State().String()
		}
		return c.Status(status).JSON(body)
	}
}
