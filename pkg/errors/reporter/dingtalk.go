package reporter

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DingTalkRobot 钉钉自定义机器人，只发送文本消息
type DingTalkRobot interface {
	SendText(content string, atMobiles []string, isAtAll bool) error
	WithSecret(secret string) DingTalkRobot
}

type dingTalkRobot struct {
	webHook string
	secret  string
	client  *http.Client
	now     func() time.Time
}

// NewDingTalkRobot returns a robot posting to webHook.
func NewDingTalkRobot(webHook string) DingTalkRobot {
	return &dingTalkRobot{
		webHook: webHook,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// WithSecret enables the signed webhook mode.
func (r *dingTalkRobot) WithSecret(secret string) DingTalkRobot {
	r.secret = secret
	return r
}

type textMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
	At struct {
		AtMobiles []string `json:"atMobiles,omitempty"`
		IsAtAll   bool     `json:"isAtAll"`
	} `json:"at"`
}

func (r *dingTalkRobot) SendText(content string, atMobiles []string, isAtAll bool) error {
	msg := textMessage{MsgType: "text"}
	msg.Text.Content = content
	msg.At.AtMobiles = atMobiles
	msg.At.IsAtAll = isAtAll
	return r.send(&msg)
}

type dingResponse struct {
	Errcode int    `json:"errcode"`
	Errmsg  string `json:"errmsg"`
}

func (r *dingTalkRobot) send(msg interface{}) error {
	m, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	webURL, err := r.signedURL()
	if err != nil {
		return err
	}
	resp, err := r.client.Post(webURL, "application/json", bytes.NewReader(m))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dingtalk robot responded %d", resp.StatusCode)
	}
	var dr dingResponse
	if err := json.Unmarshal(data, &dr); err != nil {
		return err
	}
	if dr.Errcode != 0 {
		return fmt.Errorf("dingtalk robot send failed: %v", dr.Errmsg)
	}
	return nil
}

// signedURL appends timestamp and sign when a secret is set.
func (r *dingTalkRobot) signedURL() (string, error) {
	if r.secret == "" {
		return r.webHook, nil
	}
	u, err := url.Parse(r.webHook)
	if err != nil {
		return "", err
	}
	timestamp := strconv.FormatInt(r.now().UnixMilli(), 10)
	q := u.Query()
	q.Set("timestamp", timestamp)
	q.Set("sign", sign(timestamp, r.secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sign(timestamp, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + "\n" + secret))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
