// Package collector is a local stand-in for the usage-statistics collection endpoint.
package collector

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"usagestats/internal/config"
	"usagestats/internal/metrics"
	"usagestats/internal/model"
	"usagestats/internal/pool"
	"usagestats/internal/schema"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// 수집 엔드포인트 경로. 두 번째는 공개 수집기와 같은 경로.
const (
	PathCollect       = "/usage_statistics"
	PathCollectPublic = "/great_expectations/v1/usage_statistics"
)

// Sink 는 수락된 메시지를 받는 하류 파이프라인 (*archive.Archive 가 만족).
// 가득 차면 false 를 반환해야 한다.
type Sink interface {
	Submit(msg model.Message) bool
}

type Handler struct {
	cfg       config.CollectorConfig
	validator *schema.Validator
	sink      Sink
	metrics   *metrics.Metrics
}

// NewHandler 는 수집 핸들러를 만든다. sink 가 nil 이면 수락만 하고 보관하지 않는다.
func NewHandler(cfg config.CollectorConfig, v *schema.Validator, sink Sink, m *metrics.Metrics) *Handler {
	if v == nil {
		v = schema.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handler{cfg: cfg, validator: v, sink: sink, metrics: m}
}

// NewMux 는 수집기 라우팅을 구성한다.
//   - /usage_statistics, /great_expectations/v1/usage_statistics : 수집
//   - /metrics : 카운터 텍스트
//   - /health : 헬스 체크
func NewMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(PathCollect, h.HandleCollect)
	mux.HandleFunc(PathCollectPublic, h.HandleCollect)
	mux.HandleFunc("/metrics", h.HandleMetrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

var errTooLarge = errors.New("request body too large")

// HandleCollect
//
// 메시지 하나를 받아 공개 수집기와 같은 규칙으로 처리한다.
//  1. POST 만 허용 (OPTIONS 는 204)
//  2. body 크기 제한 (MaxBodySize, gzip 해제 후 크기에도 적용)
//  3. JSON 디코딩 + 스키마 검증 → 실패 시 400
//  4. x-forwarded-for 주석 후 sink 로 전달 (가득 차면 503)
//  5. 201 {"event_count":1}
func (h *Handler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	h.metrics.Inc(metrics.HTTPRequests)

	switch r.Method {
	case http.MethodPost:
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize)
	defer r.Body.Close()

	buf := pool.BodyPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer pool.PutBody(buf, h.cfg.MaxBodySize*2)

	if err := h.readBody(buf, r); err != nil {
		if errors.Is(err, errTooLarge) {
			h.metrics.Inc(metrics.HTTPBodyTooLarge)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		h.metrics.Inc(metrics.HTTPInvalid)
		writeError(w, http.StatusBadRequest, "unreadable body", nil)
		return
	}

	var msg model.Message
	if err := json.Unmarshal(buf.Bytes(), &msg); err != nil || msg == nil {
		h.metrics.Inc(metrics.HTTPInvalid)
		writeError(w, http.StatusBadRequest, "body must be a JSON object", nil)
		return
	}

	res := h.validator.Validate(msg)
	if !res.Valid {
		h.metrics.Inc(metrics.HTTPInvalid)
		log.Info().Str("event", truncate(string(msg.Event()), 128)).Strs("violations", res.Paths()).Msg("collector rejected message")
		writeError(w, http.StatusBadRequest, "invalid message", res.Paths())
		return
	}

	if ff := forwardedFor(r); ff != "" {
		msg[model.FieldForwardedFor] = ff
	}

	if h.sink != nil && !h.sink.Submit(msg) {
		h.metrics.Inc(metrics.HTTPQueueFull)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	h.metrics.Inc(metrics.HTTPAccepted)
	log.Debug().Str("event", string(msg.Event())).Str("revision", res.Revision).Msg("collector accepted message")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"event_count":1}`))
}

// readBody 는 body 를 buf 로 읽는다. Content-Encoding: gzip 이면 해제하며
// 해제 후 크기도 MaxBodySize 로 제한한다.
func (h *Handler) readBody(buf *bytes.Buffer, r *http.Request) error {
	var src io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return tooLargeOr(err)
		}
		defer zr.Close()
		src = zr
	}

	n, err := io.Copy(buf, io.LimitReader(src, h.cfg.MaxBodySize+1))
	if err != nil {
		return tooLargeOr(err)
	}
	if n > h.cfg.MaxBodySize {
		return errTooLarge
	}
	return nil
}

func tooLargeOr(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return errTooLarge
	}
	return err
}

type errorBody struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, violations []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Violations: violations})
}

// HandleMetrics 는 카운터 값을 텍스트로 출력한다.
func (h *Handler) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.metrics.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
