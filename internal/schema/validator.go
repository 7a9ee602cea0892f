// Package schema validates assembled usage-statistics messages against a versioned,
// append-only table of structural predicates before they leave the process.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"usagestats/internal/model"
)

// ErrInvalid 는 스키마 검증에 실패한 메시지에 대해 Result.Err() 가 감싸는 sentinel.
var ErrInvalid = errors.New("schema: invalid message")

// ProtocolVersions 는 envelope version 필드에 허용되는 값.
var ProtocolVersions = []string{"1.0.0"}

// Result
// ------------------------------------------------------------
// Validate 결과. Valid 일 때 Revision 은 매칭된 것 중 가장 최신 revision 이다
// (진단용일 뿐, 수락 여부와는 무관).
type Result struct {
	Valid      bool
	Family     model.EventName
	Revision   string
	Violations []Violation
}

// Err 는 거절된 결과를 ErrInvalid 를 감싼 error 로 변환한다. 통과면 nil.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	parts := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(parts, "; "))
}

// Validator 는 읽기 전용 Table 을 사용하므로 동시 호출에 안전하다.
type Validator struct {
	table *Table
}

func New(t *Table) *Validator {
	return &Validator{table: t}
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default 는 기본 테이블로 만든 프로세스 전역 Validator 를 반환한다.
func Default() *Validator {
	defaultOnce.Do(func() {
		defaultValidator = New(DefaultTable())
	})
	return defaultValidator
}

// Table 은 내부 테이블을 반환한다 (읽기 전용으로 사용할 것).
func (v *Validator) Table() *Table { return v.table }

// envelope 필드 predicate
var envelopeShape = Object(
	Req(model.FieldEvent, String()),
	Req(model.FieldEventPayload, MapOf(String(), anyShape{})),
	Req(model.FieldSuccess, Bool()),
	Req(model.FieldVersion, Enum(ProtocolVersions...)),
	Req(model.FieldEventTime, Format("datetime="+model.EventTimeLayout)),
	Req(model.FieldDataContextID, Format("uuid")),
	Req(model.FieldDataContextInstanceID, Format("uuid")),
	Req(model.FieldGEVersion, Bounded(128)),
	Opt(model.FieldForwardedFor, Bounded(1024)),
)

// anyShape 는 envelope 단계에서 payload 내부를 검사하지 않기 위한 placeholder.
type anyShape struct{}

func (anyShape) check(string, any, *[]Violation) {}

// Validate
// ------------------------------------------------------------
// 알고리즘:
//  1. envelope 필드 존재/타입/포맷, 알 수 없는 최상위 필드 검사
//  2. event 이름 → family 조회 (알 수 없으면 거절)
//  3. ge_version 으로 적용 가능한 revision 필터링
//  4. 최신 → 오래된 순으로 payload predicate 검사, 하나라도 통과하면 수락
//
// 어떤 입력에도 panic 하지 않는다.
func (v *Validator) Validate(msg model.Message) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Violations: []Violation{{Path: "", Rule: fmt.Sprintf("validator panic: %v", r)}}}
		}
	}()

	if msg == nil {
		return Result{Violations: []Violation{{Path: "", Rule: "message is nil"}}}
	}

	var envViolations []Violation
	envelopeShape.check("", map[string]any(msg), &envViolations)

	name := msg.Event()
	res.Family = name

	family, ok := v.table.Lookup(name)
	if !ok {
		if name != "" {
			envViolations = append(envViolations, Violation{Path: model.FieldEvent, Rule: fmt.Sprintf("unknown event %q", truncate(string(name)))})
		}
		res.Violations = envViolations
		return res
	}

	payload, ok := asObject(msg[model.FieldEventPayload])
	if !ok {
		// envelope 검사에서 이미 위반으로 기록됨
		res.Violations = envViolations
		return res
	}

	geVersion, parsed := ParseVersion(msg.GEVersion())
	eligible := eligibleRevisions(family, geVersion, parsed)
	if len(eligible) == 0 {
		envViolations = append(envViolations, Violation{
			Path: model.FieldGEVersion,
			Rule: fmt.Sprintf("no schema revision of %s for ge_version %q", name, truncate(msg.GEVersion())),
		})
		res.Violations = envViolations
		return res
	}

	var payloadViolations []Violation
	matched := ""
	for i := len(eligible) - 1; i >= 0; i-- {
		rev := eligible[i]
		var tmp []Violation
		rev.Payload.check(model.FieldEventPayload, payload, &tmp)
		if len(tmp) == 0 {
			matched = rev.Name
			break
		}
		for j := range tmp {
			tmp[j].Revision = rev.Name
		}
		payloadViolations = append(payloadViolations, tmp...)
	}

	if matched == "" {
		res.Violations = append(envViolations, payloadViolations...)
		return res
	}
	if len(envViolations) > 0 {
		res.Violations = envViolations
		return res
	}

	res.Valid = true
	res.Revision = matched
	return res
}

// eligibleRevisions 는 producer 버전에서 사용할 수 있는 revision 만 남긴다.
// 버전을 해석할 수 없으면 Since 가 0 인 revision 만 허용한다.
func eligibleRevisions(f *Family, ver Version, parsed bool) []Revision {
	out := make([]Revision, 0, len(f.Revisions))
	for _, r := range f.Revisions {
		if !parsed {
			if r.Since.IsZero() {
				out = append(out, r)
			}
			continue
		}
		if ver.AtLeast(r.Since) {
			out = append(out, r)
		}
	}
	return out
}

// Known 은 이벤트 이름이 어휘(vocabulary)에 있는지 확인한다.
func (v *Validator) Known(name model.EventName) bool {
	_, ok := v.table.Lookup(name)
	return ok
}

// Paths 는 위반 경로를 정렬해 반환한다 (로그/테스트용).
func (r Result) Paths() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Path)
	}
	sort.Strings(out)
	return out
}
