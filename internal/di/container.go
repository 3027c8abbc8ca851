package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/core2cover/api/internal/platform/config"
	"github.com/core2cover/api/internal/platform/observability"
	"github.com/core2cover/api/internal/repositories"
	"github.com/core2cover/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Pricing     *services.PricingEngine
	Checkout    services.CheckoutService
	Orders      services.OrderService
	Returns     services.ReturnService
	Products    services.ProductService
	StoreCredit services.StoreCreditService
	System      services.SystemService
}

// Externals carries collaborators that live outside the repository registry. Nil members disable
// the features that need them: no Refunds means original-payment refunds are refused, no Uploads
// means signed upload URLs are unavailable.
type Externals struct {
	Notifications services.NotificationPublisher
	Refunds       services.RefundGateway
	Uploads       services.UploadSigner
	Build         services.BuildInfo
	Logger        *zap.Logger
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, ext Externals) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, ext)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, ext Externals) (Services, error) {
	var svc Services

	logger := ext.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	svc.Pricing = services.NewPricingEngine(services.PricingEngineDeps{
		Currency: cfg.Pricing.Currency,
		Logger:   observability.EventLogger(logger, "pricing"),
	})

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:            reg.Orders(),
		Products:          reg.Products(),
		StoreCredits:      reg.StoreCredits(),
		Pricing:           svc.Pricing,
		Notifications:     ext.Notifications,
		EnableStoreCredit: cfg.Features.EnableStoreCredit,
		Logger:            observability.EventLogger(logger, "checkout"),
	})
	if err != nil {
		return svc, fmt.Errorf("init checkout service: %w", err)
	}
	svc.Checkout = checkout

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		OrderItems: reg.OrderItems(),
		Returns:    reg.Returns(),
		Logger:     observability.EventLogger(logger, "orders"),
	})
	if err != nil {
		return svc, fmt.Errorf("init order service: %w", err)
	}
	svc.Orders = orders

	refunds := ext.Refunds
	if !cfg.Features.EnableRefundsPSP {
		refunds = nil
	}
	returns, err := services.NewReturnService(services.ReturnServiceDeps{
		Returns:           reg.Returns(),
		OrderItems:        reg.OrderItems(),
		Orders:            reg.Orders(),
		Refunds:           refunds,
		Uploads:           ext.Uploads,
		Notifications:     ext.Notifications,
		EnableStoreCredit: cfg.Features.EnableStoreCredit,
		Currency:          svc.Pricing.Currency(),
		Logger:            observability.EventLogger(logger, "returns"),
	})
	if err != nil {
		return svc, fmt.Errorf("init return service: %w", err)
	}
	svc.Returns = returns

	products, err := services.NewProductService(services.ProductServiceDeps{
		Products: reg.Products(),
		Uploads:  ext.Uploads,
		Logger:   observability.EventLogger(logger, "products"),
	})
	if err != nil {
		return svc, fmt.Errorf("init product service: %w", err)
	}
	svc.Products = products

	credits, err := services.NewStoreCreditService(services.StoreCreditServiceDeps{
		StoreCredits: reg.StoreCredits(),
	})
	if err != nil {
		return svc, fmt.Errorf("init store credit service: %w", err)
	}
	svc.StoreCredit = credits

	if health := reg.Health(); health != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: health,
			Build:            ext.Build,
			Integrations: &services.Integrations{
				Uploads:     ext.Uploads != nil,
				Refunds:     ext.Refunds != nil && cfg.Features.EnableRefundsPSP,
				StoreCredit: cfg.Features.EnableStoreCredit,
			},
		})
		if err != nil {
			return svc, fmt.Errorf("init system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
