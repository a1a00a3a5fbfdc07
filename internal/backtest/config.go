package backtest

// DefaultProgressEvery 为默认的进度上报与取消检查间隔。
const DefaultProgressEvery = 100000

// Config 定义回放参数。
type Config struct {
	ProgressEvery int    // 每处理多少个快照上报一次进度并检查取消
	Label         string // 进度描述
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	if cfg.Label == "" {
		cfg.Label = "Backtesting..."
	}
	return cfg
}
