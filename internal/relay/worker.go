package relay

import (
	"context"

	"moff.io/hedera-dapp/internal/aws"
	"moff.io/hedera-dapp/internal/config"
	"moff.io/hedera-dapp/pkg/log"
)

// QueueConsumer is satisfied by *aws.Clients.
type QueueConsumer interface {
	ConsumeSQSMessages(ctx context.Context, queueURL string, handler aws.QueueMessageHandler) error
}

// Worker relays messages queued on SQS through the Service.
type Worker struct {
	service  *Service
	consumer QueueConsumer
	queueURL string
}

func NewWorker(service *Service, consumer QueueConsumer) *Worker {
	return &Worker{service: service, consumer: consumer}
}

func (w *Worker) Apply(c *config.Configuration) {
	w.queueURL = c.Telegram.QueueURL
}

// Start blocks until ctx ends. Without a queue url or consumer it only waits.
func (w *Worker) Start(ctx context.Context) error {
	if w.queueURL == "" || w.consumer == nil {
		log.Info("Relay queue not configured, worker idle.")
		<-ctx.Done()
		return nil
	}
	log.Infof("Relay worker consuming %s", w.queueURL)
	return w.consumer.ConsumeSQSMessages(ctx, w.queueURL, w.service.HandleQueueMessage)
}
