package errors

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/certifi/gocertifi"
	"github.com/getsentry/sentry-go"
	"moff.io/hedera-dapp/pkg/errors/reporter"
	"moff.io/hedera-dapp/pkg/log"
)

// 设置该环境变量后不会上报任何错误
const debugMode = "DEBUG"

var (
	reportersMu sync.RWMutex
	reporters   []Reporter
)

func init() {
	if os.Getenv(debugMode) == "" {
		log.Info("Env DEBUG not set, report errors enabled.")
	} else {
		log.Info("Env DEBUG set, report errors disabled.")
	}
}

func report(err error) {
	if err == nil || os.Getenv(debugMode) != "" {
		return
	}
	reportersMu.RLock()
	defer reportersMu.RUnlock()
	for _, r := range reporters {
		r.Report(err)
	}
}

// Reporter 错误报告器
type Reporter interface {
	Report(error)
}

// RegisterReporter 注册自定义报告器，如进程内的计数器
func RegisterReporter(r Reporter) {
	if r == nil {
		return
	}
	reportersMu.Lock()
	reporters = append(reporters, r)
	reportersMu.Unlock()
}

// ResetReporters 清空已注册的报告器
func ResetReporters() {
	reportersMu.Lock()
	reporters = nil
	reportersMu.Unlock()
}

type sentryReporter struct{}

func (s *sentryReporter) Report(err error) {
	sentry.CaptureException(err)
}

// NewSentryReporter
// 初始化错误sentry报告器，带report的错误会上报至该sentry仓库
func NewSentryReporter(sentryDSN string) error {
	if sentryDSN == "" {
		log.Warn("empty DSN found, skipping sentry reporter initialization.")
		return nil
	}
	rootCAs, err := gocertifi.CACerts()
	if err != nil {
		return Wrap(err, "init sentry CA")
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:     sentryDSN,
		CaCerts: rootCAs,
	})
	if err != nil {
		return Wrap(err, "init sentry")
	}
	RegisterReporter(&sentryReporter{})
	log.Info("sentry error reporter initialized.")
	return nil
}

type dingTalkRobotReporter struct {
	limiter *rateLimiter
	robot   reporter.DingTalkRobot
}

// NewDingTalkReporter
// 初始化钉钉机器人上报错误至指定的webhook，同一调用栈reportDelay内只上报一次
func NewDingTalkReporter(webhook, secret string, reportDelay time.Duration) {
	if webhook == "" {
		log.Warn("empty dingtalk webhook found, skipping dingtalk reporter initialization.")
		return
	}
	RegisterReporter(&dingTalkRobotReporter{
		limiter: newRateLimiter(reportDelay),
		robot:   reporter.NewDingTalkRobot(webhook).WithSecret(secret),
	})
	log.Info("dingtalk error reporter initialized.")
}

func (r *dingTalkRobotReporter) Report(err error) {
	if err == nil {
		return
	}
	stacks := callers().fullStack()
	limited, stats := r.limiter.StackBasedRateLimited(stacks[2])
	if limited {
		return
	}
	if err := r.robot.SendText(reportContent(err, stacks, stats), nil, true); err != nil {
		log.Warn(WithStack(err))
	}
}

func reportContent(err error, stacks []string, stats errorStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "last report: %s\n", formatReportTime(stats.lastReportTime))
	fmt.Fprintf(&b, "occur since last report: %d\n", stats.occurCountSinceLastReport)
	fmt.Fprintf(&b, "error: %s\nstacks:\n", err.Error())
	for _, s := range stacks {
		b.WriteString("\t")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}
