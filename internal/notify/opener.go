package notify

import (
	"context"

	"go.uber.org/zap"
)

// Opener hands a composed message to the outside world.
type Opener interface {
	Open(ctx context.Context, msg OutboundMessage) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, msg OutboundMessage) error

func (f OpenerFunc) Open(ctx context.Context, msg OutboundMessage) error {
	return f(ctx, msg)
}

// LogOpener records messages in the structured log. Used when no relay topic is configured.
type LogOpener struct {
	logger *zap.Logger
}

func NewLogOpener(logger *zap.Logger) *LogOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogOpener{logger: logger}
}

func (o *LogOpener) Open(_ context.Context, msg OutboundMessage) error {
	o.logger.Info("outbound message",
		zap.String("dispatch_id", msg.DispatchID),
		zap.String("channel", msg.Channel),
		zap.String("order_code", msg.OrderCode),
		zap.Int64("total", msg.Total),
		zap.String("url", msg.URL),
	)
	return nil
}
