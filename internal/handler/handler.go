package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"printledger/internal/model"
	"printledger/internal/service"
	"printledger/pkg/response"
)

// Services 处理器依赖的全部业务服务
type Services struct {
	Catalog     *service.CatalogService
	Jobs        *service.JobService
	Balances    *service.BalanceService
	Topups      *service.TopupService
	Subsidy     *service.SubsidyService
	Payments    *service.PaymentService
	Refunds     *service.RefundService
	Corrections *service.CorrectionService
	Currency    string
}

// Handler 统一处理器
type Handler struct {
	svc *Services
}

func NewHandler(svc *Services) *Handler {
	return &Handler{svc: svc}
}

func queryInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || v <= 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return v, true
}

func queryPage(c *gin.Context) (int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		response.ParamError(c, "page 参数错误")
		return 0, false
	}
	return page, true
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询余额（流水实时汇总）
// GET /api/v1/account/balance?account_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	accountID, ok := queryInt64(c, "account_id")
	if !ok {
		return
	}

	balance, err := h.svc.Balances.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": accountID,
		"balance":    balance,
		"currency":   h.svc.Currency,
	})
}

// GetHistory 流水分页
// GET /api/v1/account/history?account_id=xxx&page=1
func (h *Handler) GetHistory(c *gin.Context) {
	accountID, ok := queryInt64(c, "account_id")
	if !ok {
		return
	}
	page, ok := queryPage(c)
	if !ok {
		return
	}

	history, err := h.svc.Balances.GetHistory(c.Request.Context(), accountID, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, history)
}

type CreateAccountRequest struct {
	UserRef string `json:"user_ref" binding:"required"`
}

// CreateAccount 获取或创建账户
// POST /api/v1/account
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bind(c, &req) {
		return
	}

	account, err := h.svc.Balances.GetOrCreateAccount(c.Request.Context(), req.UserRef)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, account)
}

// ============================================================
// 价格目录
// ============================================================

// Quote 按当前目录计价
// POST /api/v1/pricing/quote
func (h *Handler) Quote(c *gin.Context) {
	var req service.PriceRequest
	if !bind(c, &req) {
		return
	}

	snapshot, err := h.svc.Jobs.PriceJob(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, snapshot)
}

// GetCatalog 当前有效目录
// GET /api/v1/pricing/catalog
func (h *Handler) GetCatalog(c *gin.Context) {
	catalog, err := h.svc.Catalog.ActiveCatalog(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, catalog)
}

type SetBasePriceRequest struct {
	SizeClass string          `json:"size_class" binding:"required"`
	Duplex    bool            `json:"duplex"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SetBasePrice POST /api/v1/pricing/base-price
func (h *Handler) SetBasePrice(c *gin.Context) {
	var req SetBasePriceRequest
	if !bind(c, &req) {
		return
	}

	row, err := h.svc.Catalog.SetBasePrice(c.Request.Context(), req.SizeClass, model.SidesFor(req.Duplex), req.UnitPrice)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, row)
}

type SetColorMultiplierRequest struct {
	ColorMode  string          `json:"color_mode" binding:"required"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// SetColorMultiplier POST /api/v1/pricing/color-multiplier
func (h *Handler) SetColorMultiplier(c *gin.Context) {
	var req SetColorMultiplierRequest
	if !bind(c, &req) {
		return
	}

	row, err := h.svc.Catalog.SetColorMultiplier(c.Request.Context(), req.ColorMode, req.Multiplier)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, row)
}

type SetDiscountTierRequest struct {
	Name     string          `json:"name"`
	MinUnits int64           `json:"min_units" binding:"required,gt=0"`
	Percent  decimal.Decimal `json:"percent"`
}

// SetDiscountTier 同门槛的旧档位会被停用
// POST /api/v1/pricing/discount-tier
func (h *Handler) SetDiscountTier(c *gin.Context) {
	var req SetDiscountTierRequest
	if !bind(c, &req) {
		return
	}

	row, err := h.svc.Catalog.SetDiscountTier(c.Request.Context(), req.Name, req.MinUnits, req.Percent)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, row)
}

type DeactivateDiscountTierRequest struct {
	TierID int64 `json:"tier_id" binding:"required"`
}

// DeactivateDiscountTier POST /api/v1/pricing/discount-tier/deactivate
func (h *Handler) DeactivateDiscountTier(c *gin.Context) {
	var req DeactivateDiscountTierRequest
	if !bind(c, &req) {
		return
	}

	if err := h.svc.Catalog.DeactivateDiscountTier(c.Request.Context(), req.TierID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"tier_id": req.TierID, "is_active": false})
}

type SetTopupBonusTierRequest struct {
	Name         string          `json:"name"`
	MinDeposit   int64           `json:"min_deposit" binding:"required,gt=0"`
	BonusPercent decimal.Decimal `json:"bonus_percent"`
}

// SetTopupBonusTier POST /api/v1/pricing/topup-bonus-tier
func (h *Handler) SetTopupBonusTier(c *gin.Context) {
	var req SetTopupBonusTierRequest
	if !bind(c, &req) {
		return
	}

	row, err := h.svc.Catalog.SetTopupBonusTier(c.Request.Context(), req.Name, req.MinDeposit, req.BonusPercent)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, row)
}

// ============================================================
// 打印任务
// ============================================================

// CreateJob 创建任务并冻结价格
// POST /api/v1/job/create
func (h *Handler) CreateJob(c *gin.Context) {
	var req service.CreateJobRequest
	if !bind(c, &req) {
		return
	}

	job, err := h.svc.Jobs.CreateJob(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, job)
}

// GetJob GET /api/v1/job/detail?job_id=xxx
func (h *Handler) GetJob(c *gin.Context) {
	jobID, ok := queryInt64(c, "job_id")
	if !ok {
		return
	}

	job, err := h.svc.Jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, job)
}

// QuoteCurrent 用今天的价格重新计价（不影响任务快照）
// GET /api/v1/job/quote-current?job_id=xxx
func (h *Handler) QuoteCurrent(c *gin.Context) {
	jobID, ok := queryInt64(c, "job_id")
	if !ok {
		return
	}

	snapshot, err := h.svc.Jobs.QuoteCurrentPrice(c.Request.Context(), jobID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, snapshot)
}

type JobProgressRequest struct {
	JobID  int64  `json:"job_id" binding:"required"`
	Status string `json:"status" binding:"required,oneof=PRINTING COMPLETED"`
}

// JobProgress 打印进度回报
// POST /api/v1/job/progress
func (h *Handler) JobProgress(c *gin.Context) {
	var req JobProgressRequest
	if !bind(c, &req) {
		return
	}

	var err error
	switch req.Status {
	case model.JobStatusPrinting:
		err = h.svc.Jobs.MarkPrinting(c.Request.Context(), req.JobID)
	case model.JobStatusCompleted:
		err = h.svc.Jobs.MarkCompleted(c.Request.Context(), req.JobID)
	}
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"job_id": req.JobID, "status": req.Status})
}

// ============================================================
// 支付
// ============================================================

type AllocateRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
	Price     int64 `json:"price" binding:"gte=0"`
}

// Allocate 预览余额/外部渠道拆分
// POST /api/v1/payment/allocate
func (h *Handler) Allocate(c *gin.Context) {
	var req AllocateRequest
	if !bind(c, &req) {
		return
	}

	alloc, err := h.svc.Payments.Allocate(c.Request.Context(), req.AccountID, req.Price)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, alloc)
}

type JobIDRequest struct {
	JobID int64 `json:"job_id" binding:"required"`
}

// CreatePayment POST /api/v1/payment/create
func (h *Handler) CreatePayment(c *gin.Context) {
	var req JobIDRequest
	if !bind(c, &req) {
		return
	}

	payment, err := h.svc.Payments.CreatePayment(c.Request.Context(), req.JobID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

type PaymentIDRequest struct {
	PaymentID int64 `json:"payment_id" binding:"required"`
}

// CompletePayment 支付完成（外部渠道回调也走这里）
// POST /api/v1/payment/complete
func (h *Handler) CompletePayment(c *gin.Context) {
	var req PaymentIDRequest
	if !bind(c, &req) {
		return
	}

	payment, err := h.svc.Payments.CompletePayment(c.Request.Context(), req.PaymentID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// FailPayment POST /api/v1/payment/fail
func (h *Handler) FailPayment(c *gin.Context) {
	var req PaymentIDRequest
	if !bind(c, &req) {
		return
	}

	payment, err := h.svc.Payments.FailPayment(c.Request.Context(), req.PaymentID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// GetPayment GET /api/v1/payment/detail?payment_id=xxx
func (h *Handler) GetPayment(c *gin.Context) {
	paymentID, ok := queryInt64(c, "payment_id")
	if !ok {
		return
	}

	payment, err := h.svc.Payments.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// ListPayments GET /api/v1/payment/list?account_id=xxx&page=1
func (h *Handler) ListPayments(c *gin.Context) {
	accountID, ok := queryInt64(c, "account_id")
	if !ok {
		return
	}
	page, ok := queryPage(c)
	if !ok {
		return
	}

	payments, total, err := h.svc.Payments.ListPayments(c.Request.Context(), accountID, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  payments,
		"total": total,
		"page":  page,
	})
}

// ============================================================
// 充值 / 补贴 / 退款
// ============================================================

// CreateTopup POST /api/v1/topup/create
func (h *Handler) CreateTopup(c *gin.Context) {
	var req service.CreateTopupRequest
	if !bind(c, &req) {
		return
	}

	topup, err := h.svc.Topups.CreateTopup(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, topup)
}

type TopupIDRequest struct {
	TopupID int64 `json:"topup_id" binding:"required"`
}

// CompleteTopup 充值渠道回调
// POST /api/v1/topup/complete
func (h *Handler) CompleteTopup(c *gin.Context) {
	var req TopupIDRequest
	if !bind(c, &req) {
		return
	}

	topup, err := h.svc.Topups.CompleteTopup(c.Request.Context(), req.TopupID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, topup)
}

// FailTopup POST /api/v1/topup/fail
func (h *Handler) FailTopup(c *gin.Context) {
	var req TopupIDRequest
	if !bind(c, &req) {
		return
	}

	topup, err := h.svc.Topups.FailTopup(c.Request.Context(), req.TopupID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, topup)
}

// GrantSubsidy POST /api/v1/subsidy/grant
func (h *Handler) GrantSubsidy(c *gin.Context) {
	var req service.GrantSubsidyRequest
	if !bind(c, &req) {
		return
	}

	grant, err := h.svc.Subsidy.GrantSubsidy(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, grant)
}

// ScheduleSubsidy POST /api/v1/subsidy/schedule
func (h *Handler) ScheduleSubsidy(c *gin.Context) {
	var req service.GrantSubsidyRequest
	if !bind(c, &req) {
		return
	}

	grant, err := h.svc.Subsidy.ScheduleSubsidy(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, grant)
}

// RefundJob 取消任务并按未交付比例退款
// POST /api/v1/refund/job
func (h *Handler) RefundJob(c *gin.Context) {
	var req service.RefundRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.svc.Refunds.RefundJob(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, resp)
}

// ============================================================
// 流水更正
// ============================================================

// CorrectEntry 追加一条反向流水更正指定流水
// POST /api/v1/ledger/correct
func (h *Handler) CorrectEntry(c *gin.Context) {
	var req service.CorrectEntryRequest
	if !bind(c, &req) {
		return
	}

	entry, err := h.svc.Corrections.CorrectEntry(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}
