package model

// Message
// ------------------------------------------------------------
// 검증기와 전송 클라이언트가 다루는 generic wire 형태.
// JSON 객체 하나에 대응하며, 값은 JSON 디코딩 결과와 같은 타입
// (string, bool, float64/int, []any, map[string]any, nil) 만 사용한다.
type Message map[string]any

// Event 는 메시지의 event 필드를 반환한다. 문자열이 아니면 "".
func (m Message) Event() EventName {
	s, _ := m[FieldEvent].(string)
	return EventName(s)
}

// GEVersion 은 메시지의 ge_version 필드를 반환한다.
func (m Message) GEVersion() string {
	s, _ := m[FieldGEVersion].(string)
	return s
}

// Clone 은 메시지 전체를 깊은 복사한다.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	return Message(CloneMap(m))
}

// CloneMap / CloneValue
//
// map / slice 를 재귀적으로 복사한다.
// 공유 기본값(default)을 제자리에서 수정하지 않기 위해
// overlay 빌더와 Event.Message() 가 사용한다.
func CloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = CloneValue(v)
	}
	return dst
}

func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case Message:
		return Message(CloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneMap(e)
		}
		return out
	default:
		return v
	}
}
