package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/notify"
)

const (
	forwardBuffer  = 64
	forwardTimeout = 5 * time.Second
)

// Subscriber 通知订阅源（service.NotificationService 实现）
type Subscriber interface {
	Subscribe(buffer int) (<-chan notify.Event, func())
}

// NotificationForwarder 将新通知转发到 Service Bus 主题，供其他部门系统订阅。
// 转发尽力而为，失败只记日志，不影响进程内通知。
type NotificationForwarder struct {
	sender Sender
	source Subscriber
	logger *zap.Logger
}

// NewNotificationForwarder 创建 NotificationForwarder
func NewNotificationForwarder(sender Sender, source Subscriber, logger *zap.Logger) *NotificationForwarder {
	return &NotificationForwarder{sender: sender, source: source, logger: logger}
}

// Run 转发直到 ctx 取消或通知源关闭
func (f *NotificationForwarder) Run(ctx context.Context) error {
	events, cancel := f.source.Subscribe(forwardBuffer)
	defer cancel()

	f.logger.Info("通知转发启动")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				f.logger.Info("通知源已关闭，转发结束")
				return nil
			}
			f.forward(ctx, ev)
		}
	}
}

func (f *NotificationForwarder) forward(ctx context.Context, ev notify.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		f.logger.Error("序列化通知失败", zap.Uint64("id", ev.ID), zap.Error(err))
		return
	}

	msgID := strconv.FormatUint(ev.ID, 10)
	subject := ev.Type
	contentType := "application/json"
	msg := &azservicebus.Message{
		MessageID:   &msgID,
		Subject:     &subject,
		ContentType: &contentType,
		Body:        body,
		ApplicationProperties: map[string]any{
			"department": ev.Department,
			"priority":   string(ev.Priority),
		},
	}

	sctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()
	if err := f.sender.SendMessage(sctx, msg, nil); err != nil {
		f.logger.Warn("转发通知失败", zap.Uint64("id", ev.ID), zap.String("type", ev.Type), zap.Error(err))
	}
}
