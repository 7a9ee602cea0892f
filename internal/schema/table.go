package schema

import (
	"fmt"
	"sort"

	"usagestats/internal/anonymizer"
	"usagestats/internal/model"
)

// Revision
// ------------------------------------------------------------
// 특정 event family 에 대해 과거에 유효했던 payload 형태 하나.
// Since 이상인 ge_version 을 가진 producer 만 이 revision 을 사용할 수 있다.
type Revision struct {
	Name    string
	Since   Version
	Payload Shape
}

// Family 는 같은 이벤트 이름을 공유하는 revision 목록 (오래된 것 → 최신).
type Family struct {
	Name      model.EventName
	Revisions []Revision
}

// Table
// ------------------------------------------------------------
// (event family, revision) → 구조적 predicate 매핑.
// 프로세스 시작 시 한 번 구성되고 이후 변경되지 않는다.
// revision 은 append-only 로만 추가한다 (하위 호환성 보장).
type Table struct {
	families map[model.EventName]*Family
}

func NewTable() *Table {
	return &Table{families: make(map[model.EventName]*Family)}
}

// Add 는 family 에 revision 을 이어 붙인다.
// Since 가 역순이면 테이블 정의 오류이므로 panic (시작 시점에만 호출된다).
func (t *Table) Add(name model.EventName, revs ...Revision) {
	f, ok := t.families[name]
	if !ok {
		f = &Family{Name: name}
		t.families[name] = f
	}
	for _, r := range revs {
		if n := len(f.Revisions); n > 0 && r.Since.Less(f.Revisions[n-1].Since) {
			panic(fmt.Sprintf("schema: revision %s of %s is older than its predecessor", r.Name, name))
		}
		f.Revisions = append(f.Revisions, r)
	}
}

// Lookup 은 이벤트 이름에 해당하는 family 를 찾는다.
func (t *Table) Lookup(name model.EventName) (*Family, bool) {
	f, ok := t.families[name]
	return f, ok
}

// Names 는 등록된 이벤트 이름을 정렬해 반환한다.
func (t *Table) Names() []model.EventName {
	out := make([]model.EventName, 0, len(t.families))
	for n := range t.families {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ------------------------------------------------------------
// 기본 테이블
// ------------------------------------------------------------

var (
	v0       = V(0, 0, 0)
	v0_13_0  = V(0, 13, 0)
	v0_13_18 = V(0, 13, 18)
	v0_13_20 = V(0, 13, 20)
)

func strs[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// KindSource 는 카테고리별 알려진 kind 목록 (*anonymizer.Registry 가 만족).
type KindSource interface {
	Kinds(categories ...anonymizer.Category) []anonymizer.KindTag
}

type defaultKinds struct{}

func (defaultKinds) Kinds(categories ...anonymizer.Category) []anonymizer.KindTag {
	return anonymizer.KnownKinds(categories...)
}

// shapes 는 kind 테이블에 의존하는 payload shape 묶음.
type shapes struct {
	kinds KindSource

	storeBackend     Shape
	datasourceFields []Field
	datasource       Shape
	store            Shape
	operator         Shape
	docsSite         Shape
}

// parentClass 는 카테고리 kind 열거형 + __not_recognized__.
func (s *shapes) parentClass(categories ...anonymizer.Category) Shape {
	kinds := strs(s.kinds.Kinds(categories...))
	kinds = append(kinds, string(anonymizer.KindNotRecognized))
	return Enum(kinds...)
}

// record 는 익명화 레코드 공통 필드.
func (s *shapes) record(nameRequired bool, categories ...anonymizer.Category) *ObjectShape {
	name := Opt(model.FieldAnonymizedName, Anonymized())
	if nameRequired {
		name = Req(model.FieldAnonymizedName, Anonymized())
	}
	return Object(
		name,
		Opt(model.FieldParentClass, s.parentClass(categories...)),
		Opt(model.FieldAnonymizedClass, Anonymized()),
	)
}

func newShapes(ks KindSource) *shapes {
	s := &shapes{kinds: ks}
	s.storeBackend = s.record(false, anonymizer.CategoryStoreBackend)

	siteIndexBuilder := s.record(false, anonymizer.CategorySiteIndexBuilder).With(
		Opt(model.KeyShowCTAFooter, Bool()),
	)
	s.datasourceFields = []Field{
		Opt(model.KeySQLAlchemyDialect, Enum(model.SQLAlchemyDialects...)),
		Opt(model.KeyAnonymizedExecutionEngine, s.record(true, anonymizer.CategoryExecutionEngine)),
		Opt(model.KeyAnonymizedDataConnectors, List(s.record(true, anonymizer.CategoryDataConnector))),
	}
	s.datasource = s.record(true, anonymizer.CategoryDatasource).With(s.datasourceFields...)
	s.store = s.record(true, anonymizer.CategoryStore).With(
		Opt(model.KeyAnonymizedStoreBackend, s.storeBackend),
	)
	s.operator = s.record(true, anonymizer.CategoryValidationOperator).With(
		Opt(model.KeyAnonymizedActionList, List(s.record(true, anonymizer.CategoryAction))),
	)
	s.docsSite = s.record(true, anonymizer.CategorySiteBuilder).With(
		Opt(model.KeyAnonymizedStoreBackend, s.storeBackend),
		Opt(model.KeyAnonymizedSiteIndexBuilder, siteIndexBuilder),
	)
	return s
}

var (
	// expectation type 은 기본 제공 타입명 또는 그 외 타입의 해시
	expectationTypeShape = OneOf(Enum(anonymizer.CoreExpectationTypes()...), Anonymized())

	suiteBase = Object(
		Req(model.FieldAnonymizedName, Anonymized()),
		Opt(model.KeyExpectationCount, Int(0)),
	)

	// pre-0.13: expectation type → count 매핑
	suiteTypeCountsShape = suiteBase.With(
		Opt(model.KeyAnonymizedExpectationTypeCount, MapOf(expectationTypeShape, Int(0))),
	)

	// 0.13+: {expectation_type, count} 레코드 목록
	suiteCountsShape = suiteBase.With(
		Opt(model.KeyAnonymizedExpectationCounts, List(Object(
			Req(model.KeyExpectationType, expectationTypeShape),
			Req(model.KeyCount, Int(0)),
		))),
	)

	batchShape = Object(
		Opt(model.KeyAnonymizedBatchKwargKeys, List(Bounded(256))),
		Opt(model.KeyAnonymizedExpectationSuiteName, Anonymized()),
		Opt(model.KeyAnonymizedDatasourceName, Anonymized()),
	)

	diagnosticInfoShape = List(Enum(model.DiagnosticTags...))
)

func (s *shapes) initPayload(suite Shape) Shape {
	return Object(
		Opt(model.KeyPlatformSystem, Bounded(256)),
		Opt(model.KeyPlatformRelease, Bounded(256)),
		Opt(model.KeyVersionInfo, Bounded(256)),
		Opt(model.KeyAnonymizedDatasources, List(s.datasource)),
		Opt(model.KeyAnonymizedStores, List(s.store)),
		Opt(model.KeyAnonymizedValidationOperators, List(s.operator)),
		Opt(model.KeyAnonymizedDataDocsSites, List(s.docsSite)),
		Opt(model.KeyAnonymizedExpectationSuites, List(suite)),
	)
}

// cli 명령어 payload 공통 형태
var (
	emptyPayload = Object()
	apiVersion   = Opt(model.KeyAPIVersion, Enum(model.APIVersions...))
	cancelled    = Opt(model.KeyCancelled, Bool())
)

// cliCommand 는 CLI 명령어 family 한 개의 정의.
type cliCommand struct {
	name      model.EventName
	extra     []Field // 모든 revision 에 공통으로 붙는 필드
	bracketed bool    // .begin / .end 쌍 존재 여부
}

var cliCommands = []cliCommand{
	{name: "cli.init.create"},
	{name: "cli.project.check_config"},
	{name: "cli.project.upgrade", bracketed: true},
	{name: "cli.store.list", bracketed: true},
	{name: "cli.datasource.list", bracketed: true},
	{name: "cli.datasource.new", bracketed: true},
	{name: "cli.datasource.delete", bracketed: true},
	{name: "cli.datasource.profile"},
	{name: "cli.new_ds_choice", extra: []Field{Req(model.KeyType, Enum(model.DatasourceChoices...))}},
	{name: "cli.suite.demo", bracketed: true},
	{name: "cli.suite.list", bracketed: true},
	{name: "cli.suite.new", bracketed: true},
	{name: "cli.suite.edit", bracketed: true, extra: []Field{Req(model.KeyAnonymizedExpectationSuiteName, Anonymized())}},
	{name: "cli.suite.delete", bracketed: true},
	{name: "cli.suite.scaffold"},
	{name: "cli.checkpoint.new", bracketed: true},
	{name: "cli.checkpoint.script", bracketed: true},
	{name: "cli.checkpoint.run", bracketed: true},
	{name: "cli.checkpoint.list", bracketed: true},
	{name: "cli.checkpoint.delete", bracketed: true},
	{name: "cli.validation_operator.list"},
	{name: "cli.validation_operator.run"},
	{name: "cli.docs.build", bracketed: true},
	{name: "cli.docs.clean", bracketed: true},
	{name: "cli.docs.list", bracketed: true},
}

func addCLI(t *Table, c cliCommand) {
	t.Add(c.name,
		Revision{Name: "legacy", Since: v0, Payload: Object(c.extra...)},
		Revision{Name: "api_version", Since: v0_13_0, Payload: Object(c.extra...).With(apiVersion)},
	)
	if !c.bracketed {
		return
	}
	// bare 이름과 .begin/.end 는 서로 독립적인 family 로 등록한다.
	t.Add(c.name.Begin(),
		Revision{Name: "begin", Since: v0_13_18, Payload: Object(c.extra...).With(apiVersion)},
	)
	t.Add(c.name.End(),
		Revision{Name: "end", Since: v0_13_18, Payload: Object(c.extra...).With(apiVersion, cancelled)},
	)
}

// DefaultTable 은 기본 kind 테이블로 알려진 모든 이벤트 family 의 테이블을 만든다.
func DefaultTable() *Table {
	return TableFor(defaultKinds{})
}

// TableFor 는 ks 의 kind 목록으로 parent_class 열거형을 만든 테이블을 반환한다.
// 확장 kind 를 등록한 Registry 를 넘기면 그 kind 도 유효한 parent_class 가 된다.
func TableFor(ks KindSource) *Table {
	if ks == nil {
		ks = defaultKinds{}
	}
	sh := newShapes(ks)
	t := NewTable()

	t.Add("data_context.__init__",
		Revision{Name: "expectation_type_counts", Since: v0, Payload: sh.initPayload(suiteTypeCountsShape)},
		Revision{Name: "expectation_counts", Since: v0_13_0, Payload: sh.initPayload(suiteCountsShape)},
	)

	t.Add("data_asset.validate",
		Revision{Name: "batch", Since: v0, Payload: batchShape},
	)

	t.Add("data_context.run_validation_operator",
		Revision{Name: "batches", Since: v0, Payload: Object(
			Opt(model.KeyAnonymizedOperatorName, Anonymized()),
			Opt(model.KeyAnonymizedBatches, List(batchShape)),
		)},
	)

	t.Add("data_context.add_datasource",
		Revision{Name: "datasource", Since: v0, Payload: sh.datasource},
	)

	t.Add("datasource.sqlalchemy.connect",
		Revision{Name: "connect", Since: v0, Payload: Object(
			Req(model.FieldAnonymizedName, Anonymized()),
			Opt(model.KeySQLAlchemyDialect, Enum(model.SQLAlchemyDialects...)),
		)},
	)

	t.Add("data_context.build_data_docs", Revision{Name: "empty", Since: v0, Payload: emptyPayload})
	t.Add("data_context.open_data_docs", Revision{Name: "empty", Since: v0, Payload: emptyPayload})

	t.Add("data_context.save_expectation_suite",
		Revision{Name: "suite", Since: v0, Payload: Object(
			Req(model.KeyAnonymizedExpectationSuiteName, Anonymized()),
		)},
	)

	t.Add("data_context.test_yaml_config",
		Revision{Name: "diagnostic", Since: v0_13_20, Payload: Object(
			Req(model.KeyDiagnosticInfo, NonEmptyList(Enum(model.DiagnosticTags...))),
		)},
		Revision{Name: "component", Since: v0_13_20, Payload: Object(
			Req(model.FieldAnonymizedName, Anonymized()),
			Req(model.FieldParentClass, sh.parentClass(anonymizer.TestYAMLConfigCategories...)),
			Opt(model.FieldAnonymizedClass, Anonymized()),
			Opt(model.KeyDiagnosticInfo, diagnosticInfoShape),
			Opt(model.KeyAnonymizedStoreBackend, sh.storeBackend),
		).With(sh.datasourceFields...)},
	)

	for _, c := range cliCommands {
		addCLI(t, c)
	}
	return t
}
