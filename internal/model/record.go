package model

// AnonymizedRecord
// ------------------------------------------------------------
// 내부 객체(datasource, store, suite, connector, site, action, execution engine)를
// 식별 불가능하게 기술하는 레코드.
//
//   - AnonymizedName: salt 기반 해시 (사용자 지정 이름 대신). 없으면 생략.
//   - ParentClass: 알려진 프레임워크 kind 태그 (고정 열거형)
//   - AnonymizedClass: 알려진 kind 를 상속한 사용자 정의 클래스일 때 클래스명 해시
//   - Children: kind 별 하위 필드 (익명화된 하위 레코드 포함)
//
// emission 마다 새로 만들어지고 전송 후 버려진다.
type AnonymizedRecord struct {
	AnonymizedName  string
	ParentClass     string
	AnonymizedClass string
	Children        map[string]any
}

const (
	FieldAnonymizedName  = "anonymized_name"
	FieldParentClass     = "parent_class"
	FieldAnonymizedClass = "anonymized_class"
)

// Set 은 하위 필드를 추가한다. nil 값은 무시한다 (필드 생략 정책).
func (r *AnonymizedRecord) Set(key string, v any) {
	if v == nil {
		return
	}
	if r.Children == nil {
		r.Children = make(map[string]any)
	}
	r.Children[key] = v
}

// Map 은 레코드를 payload 조각(map)으로 변환한다.
// 빈 문자열 필드는 생략한다.
func (r AnonymizedRecord) Map() map[string]any {
	out := make(map[string]any, 3+len(r.Children))
	if r.AnonymizedName != "" {
		out[FieldAnonymizedName] = r.AnonymizedName
	}
	if r.ParentClass != "" {
		out[FieldParentClass] = r.ParentClass
	}
	if r.AnonymizedClass != "" {
		out[FieldAnonymizedClass] = r.AnonymizedClass
	}
	for k, v := range r.Children {
		out[k] = v
	}
	return out
}

// ArchiveJob
// ------------------------------------------------------------
// 수집기 아카이브 파이프라인에서 배치 단위로 업로드할 때 사용하는 구조체.
// Encoder → gzip JSONL → S3 업로드로 전달된다.
type ArchiveJob struct {
	Messages []Message
}
