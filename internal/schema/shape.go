package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"usagestats/internal/model"

	"github.com/go-playground/validator/v10"
)

// leaf 문자열 포맷(uuid, datetime 등) 검사용 validator 싱글톤.
var fieldValidator = validator.New()

// Violation 은 predicate 하나를 위반한 필드 하나를 나타낸다.
type Violation struct {
	Revision string // 위반이 발생한 revision ("" 이면 envelope)
	Path     string // 예: event_payload.anonymized_stores[0].parent_class
	Rule     string // 예: "required", "unknown field", "enum"
}

func (v Violation) String() string {
	if v.Revision == "" {
		return fmt.Sprintf("%s: %s", v.Path, v.Rule)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Revision, v.Path, v.Rule)
}

// Shape 는 구조적 predicate. 위반 사항을 out 에 누적한다.
type Shape interface {
	check(path string, v any, out *[]Violation)
}

func violate(out *[]Violation, path, rule string) {
	*out = append(*out, Violation{Path: path, Rule: rule})
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// ------------------------------------------------------------
// object
// ------------------------------------------------------------

type Field struct {
	name     string
	shape    Shape
	required bool
}

// Field 생성자
func Req(name string, s Shape) Field { return Field{name: name, shape: s, required: true} }
func Opt(name string, s Shape) Field { return Field{name: name, shape: s} }

// ObjectShape 는 닫힌(closed) 객체. 선언되지 않은 필드는 위반이다.
type ObjectShape struct {
	fields []Field
	index  map[string]int
}

func Object(fields ...Field) *ObjectShape {
	o := &ObjectShape{fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		o.index[f.name] = i
	}
	return o
}

// With 는 필드를 추가한 새 ObjectShape 를 반환한다 (원본 불변).
func (o *ObjectShape) With(fields ...Field) *ObjectShape {
	all := make([]Field, 0, len(o.fields)+len(fields))
	all = append(all, o.fields...)
	all = append(all, fields...)
	return Object(all...)
}

func (o *ObjectShape) check(path string, v any, out *[]Violation) {
	m, ok := asObject(v)
	if !ok {
		violate(out, path, "must be an object")
		return
	}
	for _, f := range o.fields {
		fv, present := m[f.name]
		if !present {
			if f.required {
				violate(out, join(path, f.name), "required")
			}
			continue
		}
		f.shape.check(join(path, f.name), fv, out)
	}

	var unknown []string
	for k := range m {
		if _, ok := o.index[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		violate(out, join(path, k), "unknown field")
	}
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case model.Message:
		return t, true
	default:
		return nil, false
	}
}

// ------------------------------------------------------------
// string
// ------------------------------------------------------------

type stringShape struct {
	enum   map[string]struct{}
	length int    // 0 이면 검사 안 함
	maxLen int    // 0 이면 검사 안 함
	tag    string // go-playground/validator 태그 ("" 이면 검사 안 함)
	empty  bool   // 빈 문자열 허용 여부
}

// String 은 비어 있지 않은 문자열.
func String() Shape { return stringShape{} }

// Bounded 는 최대 길이가 있는 비어 있지 않은 문자열.
func Bounded(max int) Shape { return stringShape{maxLen: max} }

// Enum 은 고정 열거형 문자열.
func Enum(values ...string) Shape {
	s := stringShape{enum: make(map[string]struct{}, len(values))}
	for _, v := range values {
		s.enum[v] = struct{}{}
	}
	return s
}

// Anonymized 는 salt 해시 문자열 (정확히 32자).
func Anonymized() Shape { return stringShape{length: 32} }

// Format 은 validator 태그로 검사하는 문자열 (예: "uuid").
func Format(tag string) Shape { return stringShape{tag: tag} }

func (s stringShape) check(path string, v any, out *[]Violation) {
	str, ok := v.(string)
	if !ok {
		violate(out, path, "must be a string")
		return
	}
	if str == "" && !s.empty {
		violate(out, path, "must not be empty")
		return
	}
	if s.enum != nil {
		if _, ok := s.enum[str]; !ok {
			violate(out, path, fmt.Sprintf("value %q not in enumeration", truncate(str)))
		}
		return
	}
	if s.length > 0 && len(str) != s.length {
		violate(out, path, fmt.Sprintf("length must be %d", s.length))
	}
	if s.maxLen > 0 && len(str) > s.maxLen {
		violate(out, path, fmt.Sprintf("length must be <= %d", s.maxLen))
	}
	if s.tag != "" {
		if err := fieldValidator.Var(str, s.tag); err != nil {
			violate(out, path, "format "+s.tag)
		}
	}
}

// 위반 메시지에 긴 값이 그대로 실리지 않도록 자른다.
func truncate(s string) string {
	if len(s) <= 64 {
		return s
	}
	return s[:64] + "..."
}

// ------------------------------------------------------------
// bool / integer
// ------------------------------------------------------------

type boolShape struct{}

func Bool() Shape { return boolShape{} }

func (boolShape) check(path string, v any, out *[]Violation) {
	if _, ok := v.(bool); !ok {
		violate(out, path, "must be a boolean")
	}
}

type intShape struct{ min int64 }

// Int 은 min 이상의 정수. JSON 디코딩 결과(float64)도 정수값이면 허용.
func Int(min int64) Shape { return intShape{min: min} }

func (s intShape) check(path string, v any, out *[]Violation) {
	n, ok := asInt(v)
	if !ok {
		violate(out, path, "must be an integer")
		return
	}
	if n < s.min {
		violate(out, path, fmt.Sprintf("must be >= %d", s.min))
	}
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	default:
		return 0, false
	}
}

// ------------------------------------------------------------
// list / map / one-of
// ------------------------------------------------------------

type listShape struct {
	item     Shape
	minItems int
}

// List 는 item shape 를 만족하는 원소들의 배열.
func List(item Shape) Shape { return listShape{item: item} }

// NonEmptyList 는 최소 1개 원소가 있는 배열.
func NonEmptyList(item Shape) Shape { return listShape{item: item, minItems: 1} }

func (s listShape) check(path string, v any, out *[]Violation) {
	items, ok := asList(v)
	if !ok {
		violate(out, path, "must be a list")
		return
	}
	if len(items) < s.minItems {
		violate(out, path, fmt.Sprintf("must have >= %d items", s.minItems))
	}
	for i, it := range items {
		s.item.check(fmt.Sprintf("%s[%d]", path, i), it, out)
	}
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

type mapShape struct {
	key   Shape
	value Shape
}

// MapOf 는 임의 키 → value shape 매핑 (키는 key shape 를 만족해야 함).
func MapOf(key, value Shape) Shape { return mapShape{key: key, value: value} }

func (s mapShape) check(path string, v any, out *[]Violation) {
	m, ok := asObject(v)
	if !ok {
		violate(out, path, "must be an object")
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.key.check(join(path, "<key>"), k, out)
		s.value.check(join(path, k), m[k], out)
	}
}

type oneOfShape struct{ options []Shape }

// OneOf 는 options 중 하나라도 만족하면 통과한다.
func OneOf(options ...Shape) Shape { return oneOfShape{options: options} }

func (s oneOfShape) check(path string, v any, out *[]Violation) {
	var rules []string
	for _, opt := range s.options {
		var tmp []Violation
		opt.check(path, v, &tmp)
		if len(tmp) == 0 {
			return
		}
		for _, t := range tmp {
			rules = append(rules, t.Path+": "+t.Rule)
		}
	}
	violate(out, path, "matches no alternative ("+strings.Join(rules, "; ")+")")
}
