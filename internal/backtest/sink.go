package backtest

import (
	"context"
	"errors"

	"go.uber.org/multierr"
)

// ChanSink 将事件投递到通道，通道满时阻塞直到 ctx 结束。
type ChanSink chan Event

func (c ChanSink) Notify(ctx context.Context, event Event) error {
	if c == nil {
		return errors.New("backtest: 事件通道为空")
	}
	select {
	case c <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MultiSink 依次通知所有接收者，汇总全部错误。
type MultiSink []EventSink

func (m MultiSink) Notify(ctx context.Context, event Event) error {
	var err error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		err = multierr.Append(err, sink.Notify(ctx, event))
	}
	return err
}
