package payload

import "usagestats/internal/anonymizer"

// Snapshot
// ------------------------------------------------------------
// 호스트 애플리케이션이 emit 시점에 넘겨주는 컨텍스트 요약.
// 여기 담긴 이름/경로는 식별 정보이며, Builder 를 거치면서
// 해시 또는 kind 태그로만 바뀌어 payload 에 들어간다.
//
// 모든 필드는 선택적이다. 이벤트 family 마다 필요한 필드만 읽는다.
type Snapshot struct {
	APIVersion string // "v2" / "v3" (0.13.0+ producer 에서만 보고)
	Cancelled  bool   // 사용자가 중단한 경우 (.end 이벤트에서만 보고)

	Platform Platform

	Datasources         []Datasource
	Stores              []Store
	ValidationOperators []ValidationOperator
	DataDocsSites       []DataDocsSite
	ExpectationSuites   []ExpectationSuite

	// add_datasource / sqlalchemy.connect / test_yaml_config 의 대상 객체
	Subject *Subject

	SuiteName        string
	DatasourceName   string
	BatchKwargKeys   []string
	OperatorName     string
	Batches          []Batch
	DatasourceChoice string

	DiagnosticInfo []string
}

// Platform 은 실행 환경 정보. 사용자 식별 정보가 아니므로 그대로 보고한다.
type Platform struct {
	System      string
	Release     string
	VersionInfo string
}

type Datasource struct {
	anonymizer.Component
	SQLAlchemyDialect string
	ExecutionEngine   *anonymizer.Component
	DataConnectors    []anonymizer.Component
}

type Store struct {
	anonymizer.Component
	Backend *anonymizer.Component
}

type ValidationOperator struct {
	anonymizer.Component
	Actions []anonymizer.Component
}

type DataDocsSite struct {
	anonymizer.Component
	Backend      *anonymizer.Component
	IndexBuilder *SiteIndexBuilder
}

type SiteIndexBuilder struct {
	anonymizer.Component
	ShowCTAFooter *bool
}

type ExpectationSuite struct {
	Name         string
	Expectations []Expectation
}

// Expectation 은 suite 안의 expectation 하나.
// 기본 제공 타입이 아니면 Custom 여부와 관계없이 타입 이름을 익명화한다.
type Expectation struct {
	Type   string
	Custom bool
}

type Batch struct {
	DatasourceName string
	SuiteName      string
	KwargKeys      []string
}

// Subject 는 단일 대상 객체 (카테고리 + 카테고리별 하위 객체).
type Subject struct {
	Category anonymizer.Category
	anonymizer.Component

	SQLAlchemyDialect string
	Backend           *anonymizer.Component
	ExecutionEngine   *anonymizer.Component
	DataConnectors    []anonymizer.Component
}
