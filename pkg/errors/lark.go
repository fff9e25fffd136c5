package errors

import (
	"fmt"
	"github.com/go-lark/lark"
	"moff.io/hedera-dapp/pkg/log"
	"time"
)

type larkReporter struct {
	title string
	bot   *lark.Bot
	delay *rateLimiter
}

// NewLarkReporter 初始化飞书机器人上报错误，title为空时使用默认标题
func NewLarkReporter(title, webhook string, silent time.Duration) {
	if webhook == "" {
		log.Warn("empty lark webhook found, skipping lark reporter initialization.")
		return
	}
	if title == "" {
		title = "hedera-dapp error"
	}
	larkReporter := &larkReporter{
		title: title,
		bot:   lark.NewNotificationBot(webhook),
		delay: newRateLimiter(silent),
	}
	RegisterReporter(larkReporter)
	log.Info("Lark error reporter initialized.")
}

func (r *larkReporter) Report(err error) {
	if err == nil {
		return
	}
	stacks := callers().fullStack()
	limited, stats := r.delay.StackBasedRateLimited(stacks[2])
	if limited {
		return
	}
	pb := lark.NewPostBuilder()
	pb.Title(r.title)
	pb.TextTag(fmt.Sprintf("Last Report: %v", formatReportTime(stats.lastReportTime)), 1, true)
	pb.TextTag(fmt.Sprintf("\nError Count Since Last Report: %v", stats.occurCountSinceLastReport), 1, true)
	pb.TextTag(fmt.Sprintf("\nMessage: %v", err.Error()), 1, true)
	pb.TextTag("\nStacks:", 1, true)
	for _, s := range stacks {
		pb.TextTag(fmt.Sprintf("\n    %s", s), 1, true)
	}
	if _, err := r.bot.PostNotificationV2(lark.OutcomingMessage{
		MsgType: "post",
		Content: lark.MessageContent{
			Post: pb.Render(),
		},
	}); err != nil {
		log.Error(WithStack(err))
	}
}

func formatReportTime(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format("2006.01.02 15:04")
}
