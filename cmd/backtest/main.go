package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"booktrader/internal/app"
	"booktrader/internal/config"
	"booktrader/internal/log"
	"booktrader/internal/store"
)

func main() {
	var (
		configPath  string
		importFiles string
		chartPath   string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&importFiles, "import", "", "逗号分隔的 CSV 文件，导入到 SQLite 后退出")
	flag.StringVar(&chartPath, "chart", "", "回测结束后将行情、指标与权益周期序列写入该 JSON 文件")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging, cfg.App.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	backtester := app.New(cfg, logger, sqliteStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if importFiles != "" {
		n, err := backtester.Import(ctx, strings.Split(importFiles, ","))
		if err != nil {
			logger.Error("导入历史数据失败", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("历史数据已导入", zap.Int("snapshots", n), zap.String("instrument", cfg.Backtest.Instrument))
		return
	}

	report, err := backtester.Run(ctx)
	if err != nil {
		logger.Error("回测运行异常", zap.Error(err))
		os.Exit(1)
	}

	if chartPath != "" {
		data, err := json.MarshalIndent(report.Chart, "", "  ")
		if err == nil {
			err = os.WriteFile(chartPath, data, 0o644)
		}
		if err != nil {
			logger.Error("写入图表数据失败", zap.String("path", chartPath), zap.Error(err))
			os.Exit(1)
		}
		logger.Info("图表数据已写入", zap.String("path", chartPath), zap.Int("bars", len(report.Chart.Market)))
	}

	logger.Info("回测已退出",
		zap.String("run_id", report.RunID),
		zap.String("status", string(report.Result.Status)),
	)
}
