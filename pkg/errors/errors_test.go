package errors

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type countingReporter struct {
	errs []error
}

func (r *countingReporter) Report(err error) {
	r.errs = append(r.errs, err)
}

func withReporter(t *testing.T) *countingReporter {
	t.Helper()
	prev, had := os.LookupEnv(debugMode)
	require.NoError(t, os.Unsetenv(debugMode))
	r := &countingReporter{}
	ResetReporters()
	RegisterReporter(r)
	t.Cleanup(func() {
		ResetReporters()
		if had {
			os.Setenv(debugMode, prev)
		}
	})
	return r
}

func TestWrapAndReportNil(t *testing.T) {
	r := withReporter(t)
	assert.NoError(t, WrapAndReport(nil, "nothing"))
	assert.NoError(t, WrapfAndReport(nil, "nothing %d", 1))
	assert.NoError(t, WithStackAndReport(nil))
	assert.Empty(t, r.errs)
}

func TestWrapAndReportKeepsCause(t *testing.T) {
	r := withReporter(t)
	base := New("boom")
	err := WrapAndReport(base, "dial bridge")
	require.Error(t, err)
	assert.True(t, Is(err, base))
	assert.Equal(t, base, Cause(err))
	assert.Equal(t, "dial bridge: boom", err.Error())
	require.Len(t, r.errs, 1)
}

func TestDebugModeSilencesReport(t *testing.T) {
	r := withReporter(t)
	require.NoError(t, os.Setenv(debugMode, "1"))
	defer os.Unsetenv(debugMode)

	_ = NewWithReport("quiet")
	assert.Empty(t, r.errs)
}

func TestStackBasedRateLimited(t *testing.T) {
	limiter := newRateLimiter(time.Hour)
	now := time.Date(2022, 11, 25, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limited, stats := limiter.StackBasedRateLimited("a")
	assert.False(t, limited)
	assert.True(t, stats.lastReportTime.IsZero())

	limited, stats = limiter.StackBasedRateLimited("a")
	assert.True(t, limited)
	assert.Equal(t, now, stats.lastReportTime)

	limited, _ = limiter.StackBasedRateLimited("b")
	assert.False(t, limited)

	now = now.Add(2 * time.Hour)
	limited, stats = limiter.StackBasedRateLimited("a")
	assert.False(t, limited)
	assert.Equal(t, 1, stats.occurCountSinceLastReport)
	assert.Equal(t, 2, stats.totalOccurCount)
}

func TestFormatReportTime(t *testing.T) {
	assert.Equal(t, "none", formatReportTime(time.Time{}))
	assert.Equal(t, "2022.11.25 08:30", formatReportTime(time.Date(2022, 11, 25, 8, 30, 0, 0, time.UTC)))
}

func TestFullStackHasReporterIndex(t *testing.T) {
	stacks := callers().fullStack()
	assert.GreaterOrEqual(t, len(stacks), 3)
}

func TestDingTalkReporterLimitedPerStack(t *testing.T) {
	withReporter(t)
	bodies := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := ioutil.ReadAll(r.Body)
		bodies <- gjson.GetBytes(raw, "text.content").String()
		w.Write([]byte(`{"errcode":0}`))
	}))
	defer srv.Close()

	NewDingTalkReporter(srv.URL, "", time.Hour)
	for i := 0; i < 3; i++ {
		_ = WrapAndReport(New("boom"), "relay")
	}

	require.Len(t, bodies, 1)
	content := <-bodies
	assert.Contains(t, content, "last report: none")
	assert.Contains(t, content, "error: relay: boom")
	assert.Contains(t, content, "TestDingTalkReporterLimitedPerStack")
}
