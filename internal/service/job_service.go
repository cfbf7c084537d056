package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/errs"
	"printledger/internal/model"
	"printledger/internal/pricing"
	"printledger/internal/repository"
	"printledger/pkg/idgen"
)

type JobService struct {
	db          *gorm.DB
	logger      *zap.Logger
	catalogRepo *repository.CatalogRepository
	jobRepo     *repository.JobRepository
	accountRepo *repository.AccountRepository
}

func NewJobService(db *gorm.DB, logger *zap.Logger) *JobService {
	return &JobService{
		db:          db,
		logger:      logger.Named("job"),
		catalogRepo: repository.NewCatalogRepository(db),
		jobRepo:     repository.NewJobRepository(db),
		accountRepo: repository.NewAccountRepository(db),
	}
}

// PriceRequest 计价参数
type PriceRequest struct {
	Pages     int64  `json:"pages" binding:"required,gt=0"`
	Copies    int64  `json:"copies" binding:"required,gt=0"`
	ColorMode string `json:"color_mode" binding:"required"`
	SizeClass string `json:"size_class" binding:"required"`
	Duplex    bool   `json:"duplex"`
}

type CreateJobRequest struct {
	AccountID int64  `json:"account_id" binding:"required"`
	FileRef   string `json:"file_ref"`
	PriceRequest
}

// PriceJob 按当前有效目录计价（只读）
func (s *JobService) PriceJob(ctx context.Context, req PriceRequest) (*model.PricingSnapshot, error) {
	return s.priceJob(ctx, nil, req)
}

func (s *JobService) priceJob(ctx context.Context, tx *gorm.DB, req PriceRequest) (*model.PricingSnapshot, error) {
	units, err := pricing.TotalUnits(req.Pages, req.Copies)
	if err != nil {
		return nil, err
	}

	base, err := s.catalogRepo.ActiveBasePrice(ctx, tx, req.SizeClass, model.SidesFor(req.Duplex))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Validation("size_class", "没有有效的纸张单价: %s/%s", req.SizeClass, model.SidesFor(req.Duplex))
		}
		return nil, err
	}
	color, err := s.catalogRepo.ActiveColorMultiplier(ctx, tx, req.ColorMode)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Validation("color_mode", "没有有效的色彩倍率: %s", req.ColorMode)
		}
		return nil, err
	}
	tier, err := s.catalogRepo.ApplicableDiscountTier(ctx, tx, units)
	if err != nil {
		return nil, err
	}

	in := pricing.Input{
		Pages:           req.Pages,
		Copies:          req.Copies,
		BasePrice:       base.UnitPrice,
		ColorMultiplier: color.Multiplier,
		DiscountPercent: decimal.Zero,
	}
	snapshot := &model.PricingSnapshot{
		BasePriceID:       base.ID,
		ColorMultiplierID: color.ID,
	}
	if tier != nil {
		in.DiscountPercent = tier.Percent
		id := tier.ID
		snapshot.DiscountTierID = &id
		snapshot.DiscountPercent = decimal.NewNullDecimal(tier.Percent)
	}

	quote, err := pricing.Calculate(in)
	if err != nil {
		return nil, err
	}
	snapshot.TotalUnits = quote.TotalUnits
	snapshot.Subtotal = quote.Subtotal
	snapshot.DiscountAmount = quote.DiscountAmount
	snapshot.FinalPrice = quote.FinalPrice
	return snapshot, nil
}

// CreateJob 创建打印任务并冻结价格快照
//
// 计价与写入在同一事务内完成，快照引用的目录行就是计价时读到的那一行
func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (*model.PrintJob, error) {
	job := &model.PrintJob{
		JobNo:     idgen.GenerateJobNo(),
		AccountID: req.AccountID,
		FileRef:   req.FileRef,
		Pages:     req.Pages,
		Copies:    req.Copies,
		SizeClass: req.SizeClass,
		ColorMode: req.ColorMode,
		Duplex:    req.Duplex,
		Status:    model.JobStatusPendingPayment,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.GetByID(ctx, tx, req.AccountID); err != nil {
			return err
		}
		snapshot, err := s.priceJob(ctx, tx, req.PriceRequest)
		if err != nil {
			return err
		}
		job.Pricing = *snapshot
		return s.jobRepo.Create(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("打印任务已创建",
		zap.String("job_no", job.JobNo),
		zap.Int64("account_id", job.AccountID),
		zap.Int64("total_units", job.Pricing.TotalUnits),
		zap.Int64("final_price", job.Pricing.FinalPrice))
	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, jobID int64) (*model.PrintJob, error) {
	return s.jobRepo.GetByID(ctx, nil, jobID)
}

// QuoteCurrentPrice 用今天的目录重新计价，不落库，任务快照保持不变
func (s *JobService) QuoteCurrentPrice(ctx context.Context, jobID int64) (*model.PricingSnapshot, error) {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	return s.PriceJob(ctx, PriceRequest{
		Pages:     job.Pages,
		Copies:    job.Copies,
		ColorMode: job.ColorMode,
		SizeClass: job.SizeClass,
		Duplex:    job.Duplex,
	})
}

// MarkPrinting QUEUED -> PRINTING
func (s *JobService) MarkPrinting(ctx context.Context, jobID int64) error {
	return s.advance(ctx, jobID, model.JobStatusQueued, model.JobStatusPrinting)
}

// MarkCompleted PRINTING -> COMPLETED
func (s *JobService) MarkCompleted(ctx context.Context, jobID int64) error {
	return s.advance(ctx, jobID, model.JobStatusPrinting, model.JobStatusCompleted)
}

func (s *JobService) advance(ctx context.Context, jobID int64, from, to string) error {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return err
	}
	if job.Status == to {
		return nil
	}
	if job.Status != from {
		return fmt.Errorf("任务 %s 当前状态 %s 不能变为 %s: %w", job.JobNo, job.Status, to, errs.ErrInvalidTransition)
	}
	if err := s.jobRepo.UpdateStatus(ctx, nil, jobID, from, to); err != nil {
		return err
	}

	s.logger.Info("打印任务状态更新",
		zap.String("job_no", job.JobNo),
		zap.String("from", from),
		zap.String("to", to))
	return nil
}
