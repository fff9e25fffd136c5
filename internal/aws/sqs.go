package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

const (
	deduplicationTTL   = time.Hour * 24 * 3
	longPollingSeconds = 20
	receiveRetryDelay  = time.Second
)

type QueueMessageHandler func(ctx context.Context, msg *types.Message) (deleteMsg bool, err error)

// ConsumeSQSMessages blocks until ctx is done, handing every new message to
// handler. Messages already seen within the deduplication window are deleted
// unhandled.
func (s *Clients) ConsumeSQSMessages(ctx context.Context, queueURL string, handler QueueMessageHandler) error {
	// 获取队列名称
	idx := strings.LastIndex(queueURL, "/")
	queueName := queueURL[idx+1:]
	log.Infof("Blocking consume messages from queue %v...", queueName)
	if s.dedup == nil {
		log.Warnf("redis not configured, messages from queue %v are not deduplicated", queueName)
	}
	defer log.Infof("Stopped to consume messages from queue %v...", queueName)
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := s.GetSingleMessageFromSQS(ctx, queueURL)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			log.Error(err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(receiveRetryDelay):
			}
			continue
		}
		if msg == nil {
			continue
		}
		s.handleSQSMessage(ctx, queueURL, queueName, msg, handler)
	}
}

func (s *Clients) handleSQSMessage(ctx context.Context, queueURL, queueName string, msg *types.Message, handler QueueMessageHandler) {
	messageID := aws.ToString(msg.MessageId)
	receipt := aws.ToString(msg.ReceiptHandle)
	if s.dedup == nil {
		deleteMsg, err := handler(ctx, msg)
		if err != nil {
			log.Error(err)
			return
		}
		if deleteMsg {
			if err := s.DeleteSingleMessageFromSQS(ctx, queueURL, receipt); err != nil {
				log.Error(err)
			}
		}
		return
	}
	// 尝试添加消息去重缓存，添加成功则表示新消息，否则按历史消息处理，直接从队列删除该消息
	cacheKey := fmt.Sprintf("%v_deduplication:%v", queueName, messageID)
	set, err := s.dedup.SetNX(ctx, cacheKey, 1, deduplicationTTL).Result()
	if err != nil {
		log.Error(errors.WrapAndReport(err, "deduplicate queue message"))
		return
	}
	if !set {
		// 默认当前是重复消息
		if err := s.DeleteSingleMessageFromSQS(ctx, queueURL, receipt); err != nil {
			log.Error(err)
		}
		return
	}

	deleteMsg, err := handler(ctx, msg)
	if err != nil {
		log.Error(err)
		s.releaseDeduplication(ctx, cacheKey, queueName, messageID)
		return
	}
	if deleteMsg {
		if err := s.DeleteSingleMessageFromSQS(ctx, queueURL, receipt); err != nil {
			log.Error(err)
		}
		return
	}
	// 移除消息去重，等待消息再次可见后重试
	s.releaseDeduplication(ctx, cacheKey, queueName, messageID)
}

func (s *Clients) releaseDeduplication(ctx context.Context, cacheKey, queueName, messageID string) {
	if err := s.dedup.Del(ctx, cacheKey).Err(); err != nil {
		log.Error(errors.WrapfAndReport(err, "delete queue %v message %v deduplication", queueName, messageID))
	}
}

func (s *Clients) GetSingleMessageFromSQS(ctx context.Context, queueUrl string) (*types.Message, error) {
	output, err := s.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueUrl),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     longPollingSeconds,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapfAndReport(err, "query sqs message from %s", queueUrl)
	}
	if len(output.Messages) == 0 {
		return nil, nil
	}
	return &output.Messages[0], nil
}

func (s *Clients) DeleteSingleMessageFromSQS(ctx context.Context, queueUrl, receiptHandle string) error {
	_, err := s.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueUrl),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return errors.WrapfAndReport(err, "delete sqs message from %s", queueUrl)
}
