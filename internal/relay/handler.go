package relay

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/gin-gonic/gin"
	"moff.io/hedera-dapp/pkg/log"
)

// Handler serves POST /send-telegram.
func (s *Service) Handler(c *gin.Context) {
	var req Request
	// 请求体缺失或格式错误时按空消息处理
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugf("relay request body ignored: %v", err)
		req = Request{}
	}
	resp := s.Send(c.Request.Context(), req)
	c.JSON(resp.StatusCode, resp.Body)
}

// HandleQueueMessage relays a queued {"message": ...} body. Upstream 4xx
// rejections are final and the message is deleted; anything else is left
// on the queue for redelivery.
func (s *Service) HandleQueueMessage(ctx context.Context, msg *types.Message) (deleteMsg bool, err error) {
	var req Request
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &req); err != nil {
		log.Warnf("drop malformed relay queue message %s: %v", aws.ToString(msg.MessageId), err)
		return true, nil
	}
	resp := s.Send(ctx, req)
	switch {
	case resp.StatusCode == 200:
		return true, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429:
		log.Warnf("relay queue message %s rejected with %d: %v", aws.ToString(msg.MessageId), resp.StatusCode, resp.Body["error"])
		return true, nil
	default:
		return false, nil
	}
}
