package notify

import (
	"context"

	"foodrescue/internal/usecase"

	"github.com/labstack/gommon/log"
)

// LogNotifier はログに出すだけ（開発用）
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New("notify")
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, ev usecase.OrderEvent) error {
	n.logger.Infof("%s order=%d buyer=%d restaurant=%d status=%s", ev.Type, ev.OrderID, ev.BuyerID, ev.RestaurantID, ev.Status)
	return nil
}
