package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware(logger))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户与余额
		account := api.Group("/account")
		{
			account.POST("", h.CreateAccount)
			account.GET("/balance", h.GetBalance)
			account.GET("/history", h.GetHistory)
		}

		// 价格目录
		pricing := api.Group("/pricing")
		{
			pricing.POST("/quote", h.Quote)
			pricing.GET("/catalog", h.GetCatalog)
			pricing.POST("/base-price", h.SetBasePrice)
			pricing.POST("/color-multiplier", h.SetColorMultiplier)
			pricing.POST("/discount-tier", h.SetDiscountTier)
			pricing.POST("/discount-tier/deactivate", h.DeactivateDiscountTier)
			pricing.POST("/topup-bonus-tier", h.SetTopupBonusTier)
		}

		// 打印任务
		job := api.Group("/job")
		{
			job.POST("/create", h.CreateJob)
			job.GET("/detail", h.GetJob)
			job.GET("/quote-current", h.QuoteCurrent)
			job.POST("/progress", h.JobProgress)
		}

		// 支付
		payment := api.Group("/payment")
		{
			payment.POST("/allocate", h.Allocate)
			payment.POST("/create", h.CreatePayment)
			payment.POST("/complete", h.CompletePayment)
			payment.POST("/fail", h.FailPayment)
			payment.GET("/detail", h.GetPayment)
			payment.GET("/list", h.ListPayments)
		}

		// 充值
		topup := api.Group("/topup")
		{
			topup.POST("/create", h.CreateTopup)
			topup.POST("/complete", h.CompleteTopup)
			topup.POST("/fail", h.FailTopup)
		}

		// 补贴
		subsidy := api.Group("/subsidy")
		{
			subsidy.POST("/grant", h.GrantSubsidy)
			subsidy.POST("/schedule", h.ScheduleSubsidy)
		}

		// 退款
		refund := api.Group("/refund")
		{
			refund.POST("/job", h.RefundJob)
		}

		// 流水更正
		api.POST("/ledger/correct", h.CorrectEntry)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
