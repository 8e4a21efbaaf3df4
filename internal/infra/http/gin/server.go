package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stayflow/internal/infra/config"
	"stayflow/internal/infra/obs"
)

type CheckoutHTTP interface {
	RequestPayment(c *gin.Context)
	ListInstruments(c *gin.Context)
}

type TransactionHTTP interface {
	Get(c *gin.Context)
	Accept(c *gin.Context)
	Decline(c *gin.Context)
	Cancel(c *gin.Context)
	Complete(c *gin.Context)
	RefundDeposit(c *gin.Context)
	RequestDepositClaim(c *gin.Context)
	ResolveDepositClaim(c *gin.Context)
}

type LedgerHTTP interface {
	ListByTransaction(c *gin.Context)
	RepairPayout(c *gin.Context)
}

type WebhookHTTP interface {
	Receive(c *gin.Context)
}

type Handlers struct {
	Checkout       CheckoutHTTP
	Transaction    TransactionHTTP
	Ledger         LedgerHTTP
	Webhook        WebhookHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, metricsReg prometheus.Gatherer, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if metricsReg != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	if h.Checkout != nil {
		api.POST("/checkout/payment", h.Checkout.RequestPayment)
		api.GET("/checkout/instruments", h.Checkout.ListInstruments)
	}
	if h.Transaction != nil {
		api.GET("/transactions/:id", h.Transaction.Get)
		api.POST("/transactions/:id/accept", h.Transaction.Accept)
		api.POST("/transactions/:id/decline", h.Transaction.Decline)
		api.POST("/transactions/:id/cancel", h.Transaction.Cancel)
		api.POST("/transactions/:id/complete", h.Transaction.Complete)
		api.POST("/transactions/:id/deposit/refund", h.Transaction.RefundDeposit)
		api.POST("/transactions/:id/deposit/claim", h.Transaction.RequestDepositClaim)
		api.POST("/transactions/:id/deposit/claim/resolve", h.Transaction.ResolveDepositClaim)
	}
	if h.Ledger != nil {
		api.GET("/transactions/:id/ledger", h.Ledger.ListByTransaction)
		api.POST("/ledger/:entry/repair", h.Ledger.RepairPayout)
	}
	if h.Webhook != nil {
		router.POST("/webhooks/stripe", h.Webhook.Receive)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
