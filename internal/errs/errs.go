// Package errs 定义回测链路共享的错误类别。
//
// 各组件使用 fmt.Errorf("pkg: ...: %w", errs.ErrXxx) 包装，调用方通过 errors.Is 判别。
package errs

import "errors"

var (
	// ErrDataLoad 表示快照序列不可用或已损坏，回放不会开始。
	ErrDataLoad = errors.New("data load error")
	// ErrConfiguration 表示交易时段、指标等配置非法，在进入循环前抛出。
	ErrConfiguration = errors.New("configuration error")
	// ErrIndicator 表示指标在回放过程中计算失败，回放立即终止。
	ErrIndicator = errors.New("indicator computation error")
)
