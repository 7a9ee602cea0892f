// internal/model/event.go
package model

import "time"

// EventTimeLayout
// ------------------------------------------------------------
// event_time 직렬화 포맷. UTC, 밀리초 정밀도, 'Z' 접미사 고정.
// 예: 2020-08-04T22:50:58.837Z
const EventTimeLayout = "2006-01-02T15:04:05.000Z"

// envelope 필드 이름 (wire 이름 그대로)
const (
	FieldEvent                 = "event"
	FieldEventPayload          = "event_payload"
	FieldSuccess               = "success"
	FieldVersion               = "version"
	FieldEventTime             = "event_time"
	FieldDataContextID         = "data_context_id"
	FieldDataContextInstanceID = "data_context_instance_id"
	FieldGEVersion             = "ge_version"

	// FieldForwardedFor 는 수집기(collector)가 아카이브 시점에 덧붙이는 주석 필드.
	// 과거 아카이브된 메시지에 남아 있으므로 검증기에서 선택 필드로 허용한다.
	FieldForwardedFor = "x-forwarded-for"
)

// Payload 는 이벤트 종류별 상세 정보이며 항상 익명화된 값만 담는다.
type Payload = map[string]any

// Event
// ------------------------------------------------------------
// 수집 엔드포인트로 전송되는 단일 usage-statistics 메시지.
// emission 한 번마다 생성 → 검증 → 전송 → 폐기되며, 어디에도 저장되지 않는다.
type Event struct {
	Event                 EventName `json:"event"`
	EventPayload          Payload   `json:"event_payload"`
	Success               bool      `json:"success"`
	Version               string    `json:"version"`    // protocol version (현재 "1.0.0")
	EventTime             string    `json:"event_time"` // FormatEventTime 결과
	DataContextID         string    `json:"data_context_id"`
	DataContextInstanceID string    `json:"data_context_instance_id"`
	GEVersion             string    `json:"ge_version"` // 이벤트를 만든 도구의 버전
}

// Identity
// ------------------------------------------------------------
// 프로세스 전역에서 공급되는 두 개의 식별자.
//   - DataContextID: 논리 프로젝트/설정 단위
//   - DataContextInstanceID: 해당 프로젝트에 붙은 실행 중인 프로세스 하나
//
// 둘 다 UUIDv4 형태이며 사용자 데이터에서 직접 파생되지 않는다.
type Identity struct {
	DataContextID         string
	DataContextInstanceID string
}

// FormatEventTime 은 t 를 wire 포맷(UTC, ms, Z)으로 변환한다.
func FormatEventTime(t time.Time) string {
	return t.UTC().Format(EventTimeLayout)
}

// Message 는 Event 를 wire 형태의 Message 로 변환한다.
// payload 는 깊은 복사되므로 반환값을 수정해도 Event 에는 영향이 없다.
func (e Event) Message() Message {
	payload := Payload{}
	if e.EventPayload != nil {
		payload = CloneMap(e.EventPayload)
	}
	return Message{
		FieldEvent:                 string(e.Event),
		FieldEventPayload:          payload,
		FieldSuccess:               e.Success,
		FieldVersion:               e.Version,
		FieldEventTime:             e.EventTime,
		FieldDataContextID:         e.DataContextID,
		FieldDataContextInstanceID: e.DataContextInstanceID,
		FieldGEVersion:             e.GEVersion,
	}
}
