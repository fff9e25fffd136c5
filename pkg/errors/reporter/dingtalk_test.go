package reporter

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTextSigned(t *testing.T) {
	var (
		query url.Values
		body  textMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		raw, _ := ioutil.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	robot := NewDingTalkRobot(srv.URL + "/robot/send?access_token=abc").WithSecret("SEC")
	robot.(*dingTalkRobot).now = func() time.Time { return time.UnixMilli(1700000000000) }
	require.NoError(t, robot.SendText("boom", nil, true))

	assert.Equal(t, "abc", query.Get("access_token"))
	assert.Equal(t, "1700000000000", query.Get("timestamp"))
	assert.Equal(t, sign("1700000000000", "SEC"), query.Get("sign"))
	assert.Equal(t, "text", body.MsgType)
	assert.Equal(t, "boom", body.Text.Content)
	assert.True(t, body.At.IsAtAll)
}

func TestSendTextErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") == "status" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"errcode":310000,"errmsg":"sign not match"}`))
	}))
	defer srv.Close()

	err := NewDingTalkRobot(srv.URL).SendText("x", nil, false)
	assert.EqualError(t, err, "dingtalk robot send failed: sign not match")

	err = NewDingTalkRobot(srv.URL+"?fail=status").SendText("x", nil, false)
	assert.EqualError(t, err, "dingtalk robot responded 502")
}
