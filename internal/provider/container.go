package provider

import (
	"time"

	"github.com/threadline/storefront/internal/authz"
	"github.com/threadline/storefront/internal/cache"
	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/payment/razorpay"
	"github.com/threadline/storefront/internal/queue"
	"github.com/threadline/storefront/internal/repository"
	"github.com/threadline/storefront/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	Gateway     *razorpay.Client

	// Repositories
	AdminRepo       repository.AdminRepository
	UserRepo        repository.UserRepository
	OrderRepo       repository.OrderRepository
	ProductRepo     repository.ProductRepository
	CategoryRepo    repository.CategoryRepository
	CartRepo        repository.CartRepository
	CouponRepo      *repository.GormCouponRepository
	CouponUsageRepo repository.CouponUsageRepository
	PaymentLogRepo  repository.PaymentLogRepository
	AuthzAuditRepo  repository.AuthzAuditLogRepository

	// Services
	AuthzService       *authz.Service
	AuthService        *service.AuthService
	UserAuthService    *service.UserAuthService
	EmailService       *service.EmailService
	StockService       *service.StockService
	CouponService      *service.CouponService
	CouponAdminService *service.CouponAdminService
	CartService        *service.CartService
	OrderService       *service.OrderService
	PaymentService     *service.PaymentService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，失败时降级为同步处理
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		DB:          models.DB,
		QueueClient: queueClient,
		Gateway: razorpay.NewClient(razorpay.Config{
			KeyID:         cfg.Razorpay.KeyID,
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecret,
			APIBaseURL:    cfg.Razorpay.APIBaseURL,
			Timeout:       time.Duration(cfg.Razorpay.TimeoutSeconds) * time.Second,
		}, nil),
	}
	if !c.Gateway.Enabled() {
		logger.Warnw("provider_razorpay_not_configured")
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := c.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.CategoryRepo = repository.NewCategoryRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.CouponRepo = repository.NewCouponRepository(db)
	c.CouponUsageRepo = repository.NewCouponUsageRepository(db)
	c.PaymentLogRepo = repository.NewPaymentLogRepository(db)
	c.AuthzAuditRepo = repository.NewAuthzAuditLogRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	orderCfg := c.Config.Order
	gatewayTimeout := time.Duration(c.Config.Razorpay.TimeoutSeconds) * time.Second

	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.StockService = service.NewStockService(c.ProductRepo)
	c.CouponService = service.NewCouponService(c.CouponRepo)
	c.CouponAdminService = service.NewCouponAdminService(c.DB, c.CouponRepo).WithCategories(c.CategoryRepo)
	c.CartService = service.NewCartService(c.CartRepo, c.StockService, orderCfg.Currency)
	c.OrderService = service.NewOrderService(service.OrderServiceOptions{
		OrderRepo:       c.OrderRepo,
		ProductRepo:     c.ProductRepo,
		CartRepo:        c.CartRepo,
		CouponRepo:      c.CouponRepo,
		CouponUsageRepo: c.CouponUsageRepo,
		PaymentLogRepo:  c.PaymentLogRepo,
		StockService:    c.StockService,
		CouponService:   c.CouponService,
		Gateway:         c.Gateway,
		QueueClient:     c.QueueClient,
		EmailService:    c.EmailService,
		Pricing: service.OrderPricing{
			Currency:              orderCfg.Currency,
			TaxRatePercent:        decimal.NewFromFloat(orderCfg.TaxRatePercent),
			ShippingFee:           decimal.NewFromFloat(orderCfg.ShippingFee),
			FreeShippingThreshold: decimal.NewFromFloat(orderCfg.FreeShippingThreshold),
		},
		GatewayTimeout: gatewayTimeout,
	})
	c.PaymentService = service.NewPaymentService(service.PaymentServiceOptions{
		OrderRepo:        c.OrderRepo,
		PaymentLogRepo:   c.PaymentLogRepo,
		CouponRepo:       c.CouponRepo,
		CouponUsageRepo:  c.CouponUsageRepo,
		StockService:     c.StockService,
		Gateway:          c.Gateway,
		QueueClient:      c.QueueClient,
		EmailService:     c.EmailService,
		AbandonedMinutes: orderCfg.AbandonedMinutes,
		GatewayTimeout:   gatewayTimeout,
	})
}
