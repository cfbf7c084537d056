package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"printledger/internal/handler"
	"printledger/internal/infrastructure/database"
	"printledger/internal/infrastructure/mq"
	"printledger/internal/job"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务与后台任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(a)
		},
	}
}

func serve(a *app) error {
	cfg, log := a.cfg, a.logger

	var publisher mq.Publisher
	if cfg.Kafka.Enabled {
		p, err := mq.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			return err
		}
		publisher = p
	} else {
		log.Warn("Kafka 未启用，账本事件只写日志")
		publisher = mq.NewLogPublisher(log)
	}
	defer publisher.Close()

	svc := a.services()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(a.db, publisher, cfg.Business.MaxRetryCount, log)
	go outboxSender.Start(ctx)

	expiryJob := job.NewPaymentExpiryJob(svc.Payments, log)
	go expiryJob.Start(ctx)

	reconciler := job.NewReconciler(a.db, cfg.Business.ReconcileInterval, log)
	go reconciler.Start(ctx)

	router := handler.SetupRouter(handler.NewHandler(svc), log)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("服务关闭异常", zap.Error(err))
	}

	log.Info("服务已关闭")
	return nil
}

func newMigrateCmd(configPath *string) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "迁移表结构，可选初始化默认价格目录",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			a.logger.Info("表结构迁移完成")

			if seed {
				return a.services().Catalog.SeedDefaults(cmd.Context())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "初始化默认价格目录（已存在时跳过）")
	return cmd
}

func newReconcileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "执行一次账本对账，发现不一致时以非零状态退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			violations, err := job.NewReconciler(a.db, a.cfg.Business.ReconcileInterval, a.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range violations {
				fmt.Fprintln(cmd.OutOrStdout(), v.Error())
			}
			if len(violations) > 0 {
				return fmt.Errorf("发现 %d 处账本不一致", len(violations))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "账本一致")
			return nil
		},
	}
}
