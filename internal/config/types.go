package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"booktrader/internal/errs"
)

const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// Config 聚合了回测运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Gap      GapConfig      `mapstructure:"gap"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// BacktestConfig 描述历史数据来源与模拟参数。
type BacktestConfig struct {
	Source        string        `mapstructure:"source"` // csv 或 sqlite
	Files         []string      `mapstructure:"files"`
	Timezone      string        `mapstructure:"timezone"` // 历史文件默认时区
	Instrument    string        `mapstructure:"instrument"`
	From          time.Time     `mapstructure:"from"`
	To            time.Time     `mapstructure:"to"`
	ProgressEvery int           `mapstructure:"progress_every"`
	BarSize       time.Duration `mapstructure:"bar_size"`
	InitialEquity float64       `mapstructure:"initial_equity"`
	Multiplier    float64       `mapstructure:"multiplier"`
	Commission    float64       `mapstructure:"commission"`
}

// ScheduleConfig 描述交易时段。
type ScheduleConfig struct {
	Timezone        string        `mapstructure:"timezone"`
	Intervals       []string      `mapstructure:"intervals"` // 形如 "09:35-15:45"
	ExitBeforeClose time.Duration `mapstructure:"exit_before_close"`
}

// GapConfig 控制断档判定阈值，0 表示不检查。
type GapConfig struct {
	MaxInterval  time.Duration `mapstructure:"max_interval"`
	MaxPriceJump float64       `mapstructure:"max_price_jump"`
}

// IndicatorConfig 描述单个指标。
type IndicatorConfig struct {
	Name   string `mapstructure:"name"`
	Type   string `mapstructure:"type"`
	Period int    `mapstructure:"period"`
}

// StrategyConfig 描述策略参数。
type StrategyConfig struct {
	Name               string            `mapstructure:"name"`
	Quantity           int64             `mapstructure:"quantity"`
	FlattenOffSchedule bool              `mapstructure:"flatten_off_schedule"`
	Indicators         []IndicatorConfig `mapstructure:"indicators"`
	Agreement          []string          `mapstructure:"agreement"` // 参与同号判断的指标，空表示全部
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MonitorConfig 控制监控接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}

	switch strings.ToLower(c.Backtest.Source) {
	case SourceCSV:
		if len(c.Backtest.Files) == 0 {
			err = multierr.Append(err, errors.New("backtest.files 至少包含一个文件"))
		}
	case SourceSQLite:
		if c.Backtest.Instrument == "" {
			err = multierr.Append(err, errors.New("backtest.instrument 不能为空"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("backtest.source 取值非法: %q", c.Backtest.Source))
	}
	if !c.Backtest.From.IsZero() && !c.Backtest.To.IsZero() && !c.Backtest.From.Before(c.Backtest.To) {
		err = multierr.Append(err, errors.New("backtest.from 必须早于 backtest.to"))
	}
	if c.Backtest.ProgressEvery <= 0 {
		err = multierr.Append(err, errors.New("backtest.progress_every 必须大于0"))
	}
	if c.Backtest.BarSize < 0 {
		err = multierr.Append(err, errors.New("backtest.bar_size 不能为负"))
	}
	if c.Backtest.InitialEquity <= 0 {
		err = multierr.Append(err, errors.New("backtest.initial_equity 必须大于0"))
	}
	if c.Backtest.Multiplier <= 0 {
		err = multierr.Append(err, errors.New("backtest.multiplier 必须大于0"))
	}
	if c.Backtest.Commission < 0 {
		err = multierr.Append(err, errors.New("backtest.commission 不能为负"))
	}

	if c.Schedule.Timezone == "" {
		err = multierr.Append(err, errors.New("schedule.timezone 不能为空"))
	}
	if c.Schedule.ExitBeforeClose < 0 {
		err = multierr.Append(err, errors.New("schedule.exit_before_close 不能为负"))
	}

	if c.Gap.MaxInterval < 0 {
		err = multierr.Append(err, errors.New("gap.max_interval 不能为负"))
	}
	if c.Gap.MaxPriceJump < 0 {
		err = multierr.Append(err, errors.New("gap.max_price_jump 不能为负"))
	}

	if c.Strategy.Name == "" {
		err = multierr.Append(err, errors.New("strategy.name 不能为空"))
	}
	if c.Strategy.Quantity <= 0 {
		err = multierr.Append(err, errors.New("strategy.quantity 必须大于0"))
	}
	names := make(map[string]struct{}, len(c.Strategy.Indicators))
	for i, ind := range c.Strategy.Indicators {
		if ind.Type == "" {
			err = multierr.Append(err, fmt.Errorf("strategy.indicators[%d].type 不能为空", i))
		}
		if ind.Period <= 0 {
			err = multierr.Append(err, fmt.Errorf("strategy.indicators[%d].period 必须大于0", i))
		}
		if ind.Name != "" {
			names[ind.Name] = struct{}{}
		}
	}
	for _, name := range c.Strategy.Agreement {
		if _, ok := names[name]; !ok {
			err = multierr.Append(err, fmt.Errorf("strategy.agreement 引用了未命名的指标 %q", name))
		}
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于[1,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w: %w", errs.ErrConfiguration, err)
	}

	return nil
}
