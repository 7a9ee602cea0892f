// Package transport is the outbound capability the delivery client posts through.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"usagestats/internal/pool"

	"github.com/klauspost/compress/gzip"
)

// maxResponseBody 는 응답 body 를 읽는 최대 크기.
// 수집기 응답은 {"event_count": N} 정도이므로 1KiB 면 충분하다.
const maxResponseBody = 1 << 10

// maxPooledBody 보다 커진 압축 버퍼는 풀에 돌려주지 않는다.
const maxPooledBody = 64 << 10

// Transport
//
// 메시지 하나를 POST 하고 (status, 응답 body) 를 돌려준다.
// 연결 실패/timeout 은 error 로 보고한다. 재시도는 하지 않는다.
type Transport interface {
	Post(ctx context.Context, url string, body []byte, timeout time.Duration) (int, []byte, error)
}

// Func 는 함수를 Transport 로 쓰기 위한 어댑터.
type Func func(ctx context.Context, url string, body []byte, timeout time.Duration) (int, []byte, error)

func (f Func) Post(ctx context.Context, url string, body []byte, timeout time.Duration) (int, []byte, error) {
	return f(ctx, url, body, timeout)
}

// HTTP 는 net/http 기반 Transport.
type HTTP struct {
	client   *http.Client
	compress bool
}

type Option func(*HTTP)

// WithClient 는 내부 http.Client 를 교체한다.
func WithClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithGzip 은 요청 body 를 gzip 으로 압축해 보낸다 (Content-Encoding: gzip).
func WithGzip(on bool) Option {
	return func(h *HTTP) { h.compress = on }
}

func NewHTTP(opts ...Option) *HTTP {
	h := &HTTP{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Post
//
// 요청 전체(연결 + 전송 + 응답 읽기)를 timeout 으로 제한한다.
func (h *HTTP) Post(ctx context.Context, url string, body []byte, timeout time.Duration) (int, []byte, error) {
	// 전송 실패 시 RoundTripper 가 body 를 아직 읽고 있을 수 있으므로 버퍼를 회수하지 않는다
	release := false
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	encoded := body
	if h.compress {
		buf := pool.BodyPool.Get().(*bytes.Buffer)
		buf.Reset()
		if err := gzipInto(buf, body); err != nil {
			pool.PutBody(buf, maxPooledBody)
			return 0, nil, fmt.Errorf("gzip request body: %w", err)
		}
		encoded = buf.Bytes()
		// 요청 body 가 끝까지 읽힌 뒤(응답 수신 후)에만 풀에 돌려준다
		defer func() {
			if release {
				pool.PutBody(buf, maxPooledBody)
			}
		}()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		release = true
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	release = true
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	// keep-alive 재사용을 위해 나머지는 버린다
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, out, nil
}

// gzipInto 는 b 를 압축해 buf 에 쓴다. writer 는 GzipPool 에서 빌린다.
func gzipInto(buf *bytes.Buffer, b []byte) error {
	zw := pool.GzipPool.Get().(*gzip.Writer)
	defer pool.GzipPool.Put(zw)
	zw.Reset(buf)
	if _, err := zw.Write(b); err != nil {
		return err
	}
	return zw.Close()
}
