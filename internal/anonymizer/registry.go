// Package anonymizer turns identifying details of framework objects into salted,
// one-way pseudonyms plus a kind tag drawn from a fixed table.
package anonymizer

import (
	"encoding/hex"
	"errors"
	"sort"

	"usagestats/internal/model"

	"golang.org/x/crypto/blake2b"
)

// ErrEmptySalt 는 salt 없이 Registry 를 만들려고 할 때 반환된다.
var ErrEmptySalt = errors.New("anonymizer: empty salt")

// hashSize 는 anonymized_name 길이(hex 32자)에 맞춘 16바이트.
const hashSize = 16

// Component
// ------------------------------------------------------------
// 호스트 애플리케이션이 넘겨주는 객체 요약.
//   - Name: 사용자가 지은 이름 (식별 정보, 절대 그대로 전송되지 않음)
//   - Class: 구체 클래스 이름
//   - Ancestors: 상위 클래스 목록 (가까운 순)
type Component struct {
	Name      string
	Class     string
	Ancestors []string
}

// Registry
// ------------------------------------------------------------
// 설치(installation)별 salt 와 kind 테이블을 보관한다.
// 생성 후에는 변경되지 않으므로 여러 goroutine 에서 동기화 없이 읽어도 안전하다.
type Registry struct {
	key   [32]byte
	kinds map[Category]map[KindTag]struct{}
}

// Option 은 생성 시점에만 테이블을 확장한다.
type Option func(*Registry)

// WithKinds 는 카테고리에 알려진 kind 를 추가한다 (확장 타입 등록용).
func WithKinds(c Category, kinds ...KindTag) Option {
	return func(r *Registry) {
		set, ok := r.kinds[c]
		if !ok {
			set = make(map[KindTag]struct{}, len(kinds))
			r.kinds[c] = set
		}
		for _, k := range kinds {
			set[k] = struct{}{}
		}
	}
}

// New 는 salt 로 Registry 를 만든다.
// salt 는 BLAKE2b-256 으로 압축해 키로 사용하므로 길이 제한이 없다.
func New(salt string, opts ...Option) (*Registry, error) {
	if salt == "" {
		return nil, ErrEmptySalt
	}
	r := &Registry{
		key:   blake2b.Sum256([]byte(salt)),
		kinds: make(map[Category]map[KindTag]struct{}, len(defaultKinds)),
	}
	for c, kinds := range defaultKinds {
		WithKinds(c, kinds...)(r)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Anonymize 는 (kind, id, salt) 에 대해 결정적인 keyed hash 를 반환한다.
// 같은 설치 안에서는 항상 같은 값이므로 반복 emission 끼리 연결할 수 있지만
// 원래 식별자로 되돌릴 수는 없다. id 가 비어 있으면 "" 를 반환한다.
func (r *Registry) Anonymize(kind Category, id string) string {
	if id == "" {
		return ""
	}
	h, err := blake2b.New(hashSize, r.key[:])
	if err != nil {
		// 고정 크기 키/출력이라 발생하지 않는다.
		return ""
	}
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}

// Classify 는 객체의 클래스 계보를 따라 올라가며 첫 번째로 알려진 kind 를 찾는다.
// 알려진 kind 가 없으면 (KindNotRecognized, false). 에러는 없다.
func (r *Registry) Classify(c Category, obj Component) (KindTag, bool) {
	set := r.kinds[c]
	if obj.Class != "" {
		if _, ok := set[KindTag(obj.Class)]; ok {
			return KindTag(obj.Class), true
		}
	}
	for _, a := range obj.Ancestors {
		if _, ok := set[KindTag(a)]; ok {
			return KindTag(a), true
		}
	}
	return KindNotRecognized, false
}

// Known 은 kind 가 카테고리 테이블에 있는지 확인한다.
func (r *Registry) Known(c Category, k KindTag) bool {
	_, ok := r.kinds[c][k]
	return ok
}

// Kinds 는 주어진 카테고리들의 kind 를 중복 없이 반환한다.
// 기본 테이블 순서를 먼저, WithKinds 로 추가된 kind 를 정렬해 뒤에 붙인다.
// 검증기의 parent_class 열거형이 이 목록으로 만들어진다.
func (r *Registry) Kinds(categories ...Category) []KindTag {
	out := KnownKinds(categories...)
	seen := make(map[KindTag]struct{}, len(out))
	for _, k := range out {
		seen[k] = struct{}{}
	}
	var extra []KindTag
	for _, c := range categories {
		for k := range r.kinds[c] {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// ExpectationType 은 보고할 expectation type 값을 돌려준다.
// 기본 제공 타입이 아니면 (호스트가 뭐라고 표시했든) 해시한다.
func (r *Registry) ExpectationType(t string, custom bool) string {
	if !custom && IsCoreExpectationType(t) {
		return t
	}
	return r.Anonymize(CategoryExpectationType, t)
}

// Record 는 객체 하나를 익명화 레코드로 만든다.
//
//   - 이름이 있으면 anonymized_name
//   - 클래스가 없으면 parent_class 를 생략 (부분 데이터 허용)
//   - 알려진 kind 의 사용자 정의 하위 클래스면 anonymized_class 추가
//   - 알려지지 않은 클래스는 __not_recognized__ + anonymized_class
func (r *Registry) Record(c Category, obj Component) model.AnonymizedRecord {
	rec := model.AnonymizedRecord{
		AnonymizedName: r.Anonymize(c, obj.Name),
	}
	if obj.Class == "" && len(obj.Ancestors) == 0 {
		return rec
	}

	kind, _ := r.Classify(c, obj)
	rec.ParentClass = string(kind)
	if obj.Class != "" && string(kind) != obj.Class {
		rec.AnonymizedClass = r.Anonymize(CategoryClass, obj.Class)
	}
	return rec
}
