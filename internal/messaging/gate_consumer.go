package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/service"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
)

// 门禁设备上报的事件类型
const (
	EventGateEntry = "GateEntry"
	EventGateExit  = "GateExit"
)

const (
	defaultBatchSize = 10
	receiveBackoff   = 2 * time.Second
)

// GateMessage 队列消息信封
type GateMessage struct {
	EventType string               `json:"eventType"`
	Data      dto.GateEventRequest `json:"data"`
}

// GateRecorder 门禁事件落库（service.AttendanceService 实现）
type GateRecorder interface {
	RecordGateEvent(ctx context.Context, direction service.GateDirection, req *dto.GateEventRequest) (*dto.AttendanceResponse, error)
}

// errMalformed 消息本身无法处理，重投无意义
var errMalformed = errors.New("消息格式非法")

// GateConsumer 从队列消费门禁事件并交给考勤引擎
//
// 成功 Complete；依赖故障 Abandon 等待重投；
// 格式错误与业务拒绝（未知身份、无进场记录等）直接死信。
type GateConsumer struct {
	receiver  Receiver
	recorder  GateRecorder
	batchSize int
	backoff   time.Duration
	logger    *zap.Logger
}

// NewGateConsumer 创建 GateConsumer
func NewGateConsumer(receiver Receiver, recorder GateRecorder, logger *zap.Logger) *GateConsumer {
	return &GateConsumer{
		receiver:  receiver,
		recorder:  recorder,
		batchSize: defaultBatchSize,
		backoff:   receiveBackoff,
		logger:    logger,
	}
}

// Run 持续消费直到 ctx 取消
func (c *GateConsumer) Run(ctx context.Context) error {
	c.logger.Info("门禁事件消费者启动")
	for {
		messages, err := c.receiver.ReceiveMessages(ctx, c.batchSize, nil)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("门禁事件消费者退出")
				return nil
			}
			c.logger.Error("接收门禁事件失败", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		for _, msg := range messages {
			c.settle(ctx, msg, c.process(ctx, msg))
		}
	}
}

func (c *GateConsumer) process(ctx context.Context, msg *azservicebus.ReceivedMessage) error {
	var env GateMessage
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	var direction service.GateDirection
	switch env.EventType {
	case EventGateEntry:
		direction = service.GateEntry
	case EventGateExit:
		direction = service.GateExit
	default:
		return fmt.Errorf("%w: 未知事件类型 %q", errMalformed, env.EventType)
	}

	if err := dto.Validate(&env.Data); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	_, err := c.recorder.RecordGateEvent(ctx, direction, &env.Data)
	return err
}

func (c *GateConsumer) settle(ctx context.Context, msg *azservicebus.ReceivedMessage, err error) {
	fields := []zap.Field{zap.String("message_id", msg.MessageID)}

	switch {
	case err == nil:
		if cerr := c.receiver.CompleteMessage(ctx, msg, nil); cerr != nil {
			c.logger.Error("确认消息失败", append(fields, zap.Error(cerr))...)
		}
	case errors.Is(err, pkgerrors.ErrDependencyTimeout), errors.Is(err, pkgerrors.ErrDependencyUnavailable):
		c.logger.Warn("门禁事件处理失败，等待重投", append(fields, zap.Error(err))...)
		if aerr := c.receiver.AbandonMessage(ctx, msg, nil); aerr != nil {
			c.logger.Error("退回消息失败", append(fields, zap.Error(aerr))...)
		}
	default:
		reason := "rejected"
		if errors.Is(err, errMalformed) {
			reason = "malformed"
		}
		desc := err.Error()
		c.logger.Warn("门禁事件无法处理，转入死信", append(fields, zap.String("reason", reason), zap.Error(err))...)
		if derr := c.receiver.DeadLetterMessage(ctx, msg, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &desc,
		}); derr != nil {
			c.logger.Error("消息转入死信失败", append(fields, zap.Error(derr))...)
		}
	}
}
