package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
)

// Receiver 队列接收端（*azservicebus.Receiver 实现）
type Receiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
	Close(ctx context.Context) error
}

// Sender 主题发送端（*azservicebus.Sender 实现）
type Sender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// Bus Service Bus 连接及其收发端
type Bus struct {
	client   *azservicebus.Client
	Receiver Receiver
	Sender   Sender
}

// Open 按配置建立连接；队列或主题名为空时对应端为 nil
func Open(cfg config.ServiceBusConfig) (*Bus, error) {
	if !cfg.Enabled() {
		return nil, errors.New("servicebus.connection_string 为空")
	}
	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 Service Bus 客户端失败: %w", err)
	}

	bus := &Bus{client: client}
	if cfg.GateQueue != "" {
		receiver, err := client.NewReceiverForQueue(cfg.GateQueue, nil)
		if err != nil {
			_ = client.Close(context.Background())
			return nil, fmt.Errorf("创建队列接收端失败: %w", err)
		}
		bus.Receiver = receiver
	}
	if cfg.NotificationTopic != "" {
		sender, err := client.NewSender(cfg.NotificationTopic, nil)
		if err != nil {
			bus.Close(context.Background())
			return nil, fmt.Errorf("创建主题发送端失败: %w", err)
		}
		bus.Sender = sender
	}
	return bus, nil
}

// Close 依次关闭收发端与连接
func (b *Bus) Close(ctx context.Context) error {
	var errs []error
	if b.Receiver != nil {
		errs = append(errs, b.Receiver.Close(ctx))
	}
	if b.Sender != nil {
		errs = append(errs, b.Sender.Close(ctx))
	}
	if b.client != nil {
		errs = append(errs, b.client.Close(ctx))
	}
	return errors.Join(errs...)
}
