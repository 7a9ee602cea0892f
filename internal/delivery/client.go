// Package delivery sends validated messages to the collection endpoint.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"usagestats/internal/metrics"
	"usagestats/internal/model"
	"usagestats/internal/transport"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Kind 는 전송 결과 분류.
type Kind int

const (
	Delivered   Kind = iota + 1 // 2xx + {"event_count": N>=1}
	Rejected                    // 수집기가 응답했지만 수락하지 않음
	Unreachable                 // 연결 실패 / timeout / 내부 오류
)

func (k Kind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case Unreachable:
		return "unreachable"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome 은 Send 한 번의 결과. 호스트에는 전달되지 않고 관측용으로만 쓰인다.
type Outcome struct {
	Kind   Kind
	Status int
	Err    error
}

var errTimeout = errors.New("delivery: send timed out")

// Client
// ------------------------------------------------------------
// 메시지 하나를 한 번만 전송한다 (재시도 없음, at-most-once).
//
//   - 전체 시도는 timeout 으로 제한된다. transport 가 context 를 무시하더라도
//     Send 는 timeout 이후 바로 반환한다 (진행 중인 요청은 버려진다).
//   - 어떤 경우에도 panic 을 호출자에게 전파하지 않는다.
type Client struct {
	url       string
	timeout   time.Duration
	transport transport.Transport
	metrics   *metrics.Metrics
}

func NewClient(url string, timeout time.Duration, t transport.Transport, m *metrics.Metrics) *Client {
	return &Client{url: url, timeout: timeout, transport: t, metrics: m}
}

type postResult struct {
	status int
	body   []byte
	err    error
}

// Send 는 메시지를 JSON 으로 직렬화해 한 번 POST 한다.
func (c *Client) Send(ctx context.Context, msg model.Message) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Kind: Unreachable, Err: fmt.Errorf("delivery: panic: %v", r)}
		}
		c.observe(msg, out)
	}()

	body, err := json.Marshal(msg)
	if err != nil {
		return Outcome{Kind: Unreachable, Err: fmt.Errorf("encode message: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// 버퍼 1: timeout 으로 먼저 반환해도 goroutine 이 막히지 않는다
	done := make(chan postResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- postResult{err: fmt.Errorf("transport panic: %v", r)}
			}
		}()
		status, respBody, err := c.transport.Post(ctx, c.url, body, c.timeout)
		done <- postResult{status: status, body: respBody, err: err}
	}()

	select {
	case res := <-done:
		return classify(res)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{Kind: Unreachable, Err: errTimeout}
		}
		return Outcome{Kind: Unreachable, Err: ctx.Err()}
	}
}

type ackBody struct {
	EventCount *int `json:"event_count"`
}

// classify
//
// 성공 조건: 2xx 이면서 body 가 {"event_count": N} (N >= 1).
// 2xx 라도 body 가 맞지 않으면 Rejected.
func classify(res postResult) Outcome {
	if res.err != nil {
		return Outcome{Kind: Unreachable, Status: res.status, Err: res.err}
	}
	if res.status < 200 || res.status > 299 {
		return Outcome{Kind: Rejected, Status: res.status, Err: fmt.Errorf("collector returned status %d", res.status)}
	}
	var ack ackBody
	if err := json.Unmarshal(res.body, &ack); err != nil {
		return Outcome{Kind: Rejected, Status: res.status, Err: fmt.Errorf("unexpected collector response: %w", err)}
	}
	if ack.EventCount == nil || *ack.EventCount < 1 {
		return Outcome{Kind: Rejected, Status: res.status, Err: errors.New("collector acknowledged no events")}
	}
	return Outcome{Kind: Delivered, Status: res.status}
}

func (c *Client) observe(msg model.Message, out Outcome) {
	switch out.Kind {
	case Delivered:
		c.metrics.Inc(metrics.SendDelivered)
		log.Debug().Str("event", string(msg.Event())).Int("status", out.Status).Msg("usage event delivered")
	case Rejected:
		c.metrics.Inc(metrics.SendRejected)
		log.Warn().Str("event", string(msg.Event())).Int("status", out.Status).Err(out.Err).Msg("usage event rejected by collector")
	default:
		c.metrics.Inc(metrics.SendUnreachable)
		log.Debug().Str("event", string(msg.Event())).Err(out.Err).Msg("usage collector unreachable")
	}
}
