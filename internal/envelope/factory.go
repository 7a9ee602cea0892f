// Package envelope wraps payloads with the invariant envelope fields.
package envelope

import (
	"time"

	"usagestats/internal/model"
)

// ProtocolVersion 은 현재 메시지 프로토콜 버전 (고정).
const ProtocolVersion = "1.0.0"

// Factory
// ------------------------------------------------------------
// payload 에 envelope 필드(event, version, event_time, 식별자, 도구 버전)를 씌운다.
// 식별자는 프로세스 전역 값을 공급받을 뿐 여기서 생성하지 않는다.
type Factory struct {
	identity    model.Identity
	toolVersion string
	now         func() time.Time
}

type Option func(*Factory)

// WithClock 은 event_time 캡처에 사용할 시계를 교체한다 (테스트용).
func WithClock(now func() time.Time) Option {
	return func(f *Factory) { f.now = now }
}

func NewFactory(identity model.Identity, toolVersion string, opts ...Option) *Factory {
	f := &Factory{
		identity:    identity,
		toolVersion: toolVersion,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Wrap 은 payload 를 Event 로 감싼다. event_time 은 호출 시점에 캡처된다.
// payload 가 nil 이면 빈 객체로 대체한다.
func (f *Factory) Wrap(name model.EventName, payload model.Payload, success bool) model.Event {
	if payload == nil {
		payload = model.Payload{}
	}
	return model.Event{
		Event:                 name,
		EventPayload:          payload,
		Success:               success,
		Version:               ProtocolVersion,
		EventTime:             model.FormatEventTime(f.now()),
		DataContextID:         f.identity.DataContextID,
		DataContextInstanceID: f.identity.DataContextInstanceID,
		GEVersion:             f.toolVersion,
	}
}

// Overlay
// ------------------------------------------------------------
// 불변 기본 envelope 위에 overlay 레코드를 덮어쓴 새 메시지를 반환한다.
// base 와 overlay 모두 수정되지 않는다 (공유 기본값을 제자리에서 바꾸지 않음).
// overlay 의 최상위 키가 base 의 같은 키를 통째로 대체한다.
func Overlay(base, overlay model.Message) model.Message {
	out := make(model.Message, len(base)+len(overlay))
	for k, v := range base {
		out[k] = model.CloneValue(v)
	}
	for k, v := range overlay {
		out[k] = model.CloneValue(v)
	}
	return out
}

// OverlayAll 은 stub 마다 Overlay 를 적용한 메시지 목록을 만든다.
func OverlayAll(base model.Message, stubs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(stubs))
	for _, s := range stubs {
		out = append(out, Overlay(base, s))
	}
	return out
}
