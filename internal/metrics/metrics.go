package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics 는 emitter 와 수집기의 상태 카운터 모음이다.
// 모든 필드는 atomic 으로만 접근한다. 보고는 fire-and-forget 이며 실패하지 않는다.
type Metrics struct {
	// ======================
	// Emitter 지표
	// ======================

	// EventsEmittedTotal
	// - Emit / EmitMessage 호출 수 (비활성 상태의 no-op 호출은 제외).
	EventsEmittedTotal int64

	// BuildErrorsTotal
	// - payload 를 만들지 못해 아무것도 보내지 않은 횟수 (ErrBuild / ErrUnknownEvent).
	BuildErrorsTotal int64

	// ValidationRejectedTotal
	// - 로컬 스키마 검증에서 거절되어 전송하지 않은 메시지 수.
	// - 0 이 아니면 payload 템플릿과 스키마 테이블이 어긋났다는 신호.
	ValidationRejectedTotal int64

	// DispatchDroppedTotal
	// - 전송 큐가 가득 차서 버린 메시지 수 (at-most-once).
	DispatchDroppedTotal int64

	// SendDeliveredTotal / SendRejectedTotal / SendUnreachableTotal
	// - 전송 결과별 카운트. 재시도는 없으므로 메시지 1개당 정확히 하나가 증가한다.
	SendDeliveredTotal   int64
	SendRejectedTotal    int64
	SendUnreachableTotal int64

	// ======================
	// 수집기 HTTP 지표
	// ======================

	// HTTPRequestsTotal
	// - 수집 엔드포인트로 들어온 모든 요청 수 (메서드/결과 무관).
	HTTPRequestsTotal int64

	// HTTPRequestsAcceptedTotal
	// - 검증을 통과해 201 을 반환한 요청 수.
	HTTPRequestsAcceptedTotal int64

	// HTTPRequestsInvalidTotal
	// - JSON 파싱 또는 스키마 검증 실패로 400 을 반환한 요청 수.
	HTTPRequestsInvalidTotal int64

	// HTTPRequestsRejectedBodyTooLargeTotal
	// - MaxBodySize 초과로 413 을 반환한 요청 수.
	HTTPRequestsRejectedBodyTooLargeTotal int64

	// HTTPRequestsRejectedQueueFullTotal
	// - 아카이브 큐가 가득 차서 503 을 반환한 요청 수.
	HTTPRequestsRejectedQueueFullTotal int64

	// ======================
	// 아카이브 (S3) 지표
	// ======================

	// S3EventsStoredTotal
	// - S3 에 저장된 메시지 수 (배치 수가 아님).
	S3EventsStoredTotal int64

	// S3PutErrorsTotal
	// - PutObject 실패 시도(attempt) 수. 재시도마다 증가한다.
	S3PutErrorsTotal int64

	// ArchiveEventsDroppedTotal
	// - 인코딩 또는 업로드 재시도를 모두 실패해 버린 메시지 수.
	ArchiveEventsDroppedTotal int64
}

func New() *Metrics {
	return &Metrics{}
}

// Inc 는 카운터 하나를 1 증가시킨다. nil receiver 에도 안전하다.
func (m *Metrics) Inc(counter func(*Metrics) *int64) {
	m.Add(counter, 1)
}

// Add 는 카운터에 n 을 더한다. nil receiver 에도 안전하다.
func (m *Metrics) Add(counter func(*Metrics) *int64, n int64) {
	if m == nil {
		return
	}
	atomic.AddInt64(counter(m), n)
}

// 카운터 선택자. Inc / Add 에 넘긴다.
func EventsEmitted(m *Metrics) *int64      { return &m.EventsEmittedTotal }
func BuildErrors(m *Metrics) *int64        { return &m.BuildErrorsTotal }
func ValidationRejected(m *Metrics) *int64 { return &m.ValidationRejectedTotal }
func DispatchDropped(m *Metrics) *int64    { return &m.DispatchDroppedTotal }
func SendDelivered(m *Metrics) *int64      { return &m.SendDeliveredTotal }
func SendRejected(m *Metrics) *int64       { return &m.SendRejectedTotal }
func SendUnreachable(m *Metrics) *int64    { return &m.SendUnreachableTotal }

func HTTPRequests(m *Metrics) *int64         { return &m.HTTPRequestsTotal }
func HTTPAccepted(m *Metrics) *int64         { return &m.HTTPRequestsAcceptedTotal }
func HTTPInvalid(m *Metrics) *int64          { return &m.HTTPRequestsInvalidTotal }
func HTTPBodyTooLarge(m *Metrics) *int64     { return &m.HTTPRequestsRejectedBodyTooLargeTotal }
func HTTPQueueFull(m *Metrics) *int64        { return &m.HTTPRequestsRejectedQueueFullTotal }
func S3EventsStored(m *Metrics) *int64       { return &m.S3EventsStoredTotal }
func S3PutErrors(m *Metrics) *int64          { return &m.S3PutErrorsTotal }
func ArchiveEventsDropped(m *Metrics) *int64 { return &m.ArchiveEventsDroppedTotal }

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	fmt.Fprintf(&sb, "events_emitted_total=%d\n", atomic.LoadInt64(&m.EventsEmittedTotal))
	fmt.Fprintf(&sb, "build_errors_total=%d\n", atomic.LoadInt64(&m.BuildErrorsTotal))
	fmt.Fprintf(&sb, "validation_rejected_total=%d\n", atomic.LoadInt64(&m.ValidationRejectedTotal))
	fmt.Fprintf(&sb, "dispatch_dropped_total=%d\n", atomic.LoadInt64(&m.DispatchDroppedTotal))
	fmt.Fprintf(&sb, "send_delivered_total=%d\n", atomic.LoadInt64(&m.SendDeliveredTotal))
	fmt.Fprintf(&sb, "send_rejected_total=%d\n", atomic.LoadInt64(&m.SendRejectedTotal))
	fmt.Fprintf(&sb, "send_unreachable_total=%d\n", atomic.LoadInt64(&m.SendUnreachableTotal))

	fmt.Fprintf(&sb, "http_requests_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsTotal))
	fmt.Fprintf(&sb, "http_requests_accepted_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsAcceptedTotal))
	fmt.Fprintf(&sb, "http_requests_invalid_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsInvalidTotal))
	fmt.Fprintf(&sb, "http_requests_rejected_body_too_large_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsRejectedBodyTooLargeTotal))
	fmt.Fprintf(&sb, "http_requests_rejected_queue_full_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsRejectedQueueFullTotal))

	fmt.Fprintf(&sb, "s3_events_stored_total=%d\n", atomic.LoadInt64(&m.S3EventsStoredTotal))
	fmt.Fprintf(&sb, "s3_put_errors_total=%d\n", atomic.LoadInt64(&m.S3PutErrorsTotal))
	fmt.Fprintf(&sb, "archive_events_dropped_total=%d\n", atomic.LoadInt64(&m.ArchiveEventsDroppedTotal))

	return sb.String()
}
