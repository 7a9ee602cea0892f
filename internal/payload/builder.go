// Package payload composes anonymized fragments into the per-event payload shapes.
package payload

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"usagestats/internal/anonymizer"
	"usagestats/internal/model"
	"usagestats/internal/schema"
)

var (
	// ErrBuild 는 최소한의 유효한 payload 도 만들 수 없을 때 반환된다.
	ErrBuild = errors.New("payload: cannot build")

	// ErrUnknownEvent 는 어휘에 없는 이벤트 이름.
	ErrUnknownEvent = errors.New("payload: unknown event")
)

// 0.13.0 부터 api_version 보고 + expectation_counts 목록 형태를 사용한다.
var listStyleSince = schema.V(0, 13, 0)

// Vocabulary 는 알려진 이벤트 이름 집합 (schema.Validator 가 만족한다).
type Vocabulary interface {
	Known(name model.EventName) bool
}

type template func(b *Builder, name model.EventName, snap Snapshot) (model.Payload, error)

// Builder
// ------------------------------------------------------------
// 이벤트 family 별 고정 템플릿으로 payload 를 만든다.
// 모든 식별 정보는 Registry 를 통해 해시/kind 태그로 바뀐다.
// 상태가 없으므로 동시 호출에 안전하다.
type Builder struct {
	reg    *anonymizer.Registry
	vocab  Vocabulary
	modern bool
}

type Option func(*Builder)

// WithVocabulary 는 알려진 이벤트 이름 집합을 교체한다.
func WithVocabulary(v Vocabulary) Option {
	return func(b *Builder) { b.vocab = v }
}

// NewBuilder 는 producer(도구) 버전에 맞는 shape 를 만드는 Builder 를 생성한다.
func NewBuilder(reg *anonymizer.Registry, toolVersion string, opts ...Option) *Builder {
	ver, ok := schema.ParseVersion(toolVersion)
	b := &Builder{
		reg:    reg,
		vocab:  schema.Default(),
		modern: ok && ver.AtLeast(listStyleSince),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var templates = map[model.EventName]template{
	"data_context.__init__":                (*Builder).buildInit,
	"data_asset.validate":                  (*Builder).buildValidate,
	"data_context.run_validation_operator": (*Builder).buildRunValidationOperator,
	"data_context.add_datasource":          (*Builder).buildAddDatasource,
	"datasource.sqlalchemy.connect":        (*Builder).buildSQLAlchemyConnect,
	"data_context.build_data_docs":         (*Builder).buildEmpty,
	"data_context.open_data_docs":          (*Builder).buildEmpty,
	"data_context.save_expectation_suite":  (*Builder).buildSaveSuite,
	"data_context.test_yaml_config":        (*Builder).buildTestYAMLConfig,
}

// Build 는 이벤트 이름과 스냅샷으로 payload 를 만든다.
//
// 하위 객체 하나를 익명화하지 못하면 그 필드(또는 목록 원소)만 생략한다.
// 템플릿의 필수 입력이 통째로 없을 때만 ErrBuild 를 반환한다.
func (b *Builder) Build(name model.EventName, snap Snapshot) (model.Payload, error) {
	if !b.vocab.Known(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if t, ok := templates[name]; ok {
		return t(b, name, snap)
	}
	if strings.HasPrefix(string(name), "cli.") {
		return b.buildCLI(name, snap)
	}
	return nil, fmt.Errorf("%w: no template for %q", ErrUnknownEvent, name)
}

// ------------------------------------------------------------
// CLI
// ------------------------------------------------------------

func (b *Builder) buildCLI(name model.EventName, snap Snapshot) (model.Payload, error) {
	p := model.Payload{}
	if b.modern && snap.APIVersion != "" {
		p[model.KeyAPIVersion] = snap.APIVersion
	}
	if name.IsEnd() && snap.Cancelled {
		p[model.KeyCancelled] = true
	}

	switch name.Base() {
	case "cli.new_ds_choice":
		if snap.DatasourceChoice == "" {
			return nil, fmt.Errorf("%w: %s requires a datasource choice", ErrBuild, name)
		}
		choice := strings.ToLower(snap.DatasourceChoice)
		if !slices.Contains(model.DatasourceChoices, choice) {
			return nil, fmt.Errorf("%w: %s: unsupported datasource choice %q", ErrBuild, name, choice)
		}
		p[model.KeyType] = choice
	case "cli.suite.edit":
		h := b.reg.Anonymize(anonymizer.CategoryExpectationSuite, snap.SuiteName)
		if h == "" {
			return nil, fmt.Errorf("%w: %s requires a suite name", ErrBuild, name)
		}
		p[model.KeyAnonymizedExpectationSuiteName] = h
	}
	return p, nil
}

func (b *Builder) buildEmpty(model.EventName, Snapshot) (model.Payload, error) {
	return model.Payload{}, nil
}

// ------------------------------------------------------------
// data_context.__init__
// ------------------------------------------------------------

func (b *Builder) buildInit(_ model.EventName, snap Snapshot) (model.Payload, error) {
	p := model.Payload{}
	setString(p, model.KeyPlatformSystem, snap.Platform.System)
	setString(p, model.KeyPlatformRelease, snap.Platform.Release)
	setString(p, model.KeyVersionInfo, snap.Platform.VersionInfo)

	datasources := make([]any, 0, len(snap.Datasources))
	for _, ds := range snap.Datasources {
		if m := b.datasource(ds.Component, ds.SQLAlchemyDialect, ds.ExecutionEngine, ds.DataConnectors); m != nil {
			datasources = append(datasources, m)
		}
	}
	p[model.KeyAnonymizedDatasources] = datasources

	stores := make([]any, 0, len(snap.Stores))
	for _, s := range snap.Stores {
		rec := b.reg.Record(anonymizer.CategoryStore, s.Component)
		if rec.AnonymizedName == "" {
			continue
		}
		rec.Set(model.KeyAnonymizedStoreBackend, b.optionalRecord(anonymizer.CategoryStoreBackend, s.Backend, false))
		stores = append(stores, rec.Map())
	}
	p[model.KeyAnonymizedStores] = stores

	operators := make([]any, 0, len(snap.ValidationOperators))
	for _, op := range snap.ValidationOperators {
		rec := b.reg.Record(anonymizer.CategoryValidationOperator, op.Component)
		if rec.AnonymizedName == "" {
			continue
		}
		actions := make([]any, 0, len(op.Actions))
		for _, a := range op.Actions {
			if m := b.namedRecord(anonymizer.CategoryAction, a); m != nil {
				actions = append(actions, m)
			}
		}
		rec.Set(model.KeyAnonymizedActionList, actions)
		operators = append(operators, rec.Map())
	}
	p[model.KeyAnonymizedValidationOperators] = operators

	sites := make([]any, 0, len(snap.DataDocsSites))
	for _, site := range snap.DataDocsSites {
		rec := b.reg.Record(anonymizer.CategorySiteBuilder, site.Component)
		if rec.AnonymizedName == "" {
			continue
		}
		rec.Set(model.KeyAnonymizedStoreBackend, b.optionalRecord(anonymizer.CategoryStoreBackend, site.Backend, false))
		if site.IndexBuilder != nil {
			ib := b.reg.Record(anonymizer.CategorySiteIndexBuilder, site.IndexBuilder.Component)
			// site index builder 는 kind 만 보고한다 (이름 없음)
			ib.AnonymizedName = ""
			if site.IndexBuilder.ShowCTAFooter != nil {
				ib.Set(model.KeyShowCTAFooter, *site.IndexBuilder.ShowCTAFooter)
			}
			if m := ib.Map(); len(m) > 0 {
				rec.Set(model.KeyAnonymizedSiteIndexBuilder, m)
			}
		}
		sites = append(sites, rec.Map())
	}
	p[model.KeyAnonymizedDataDocsSites] = sites

	suites := make([]any, 0, len(snap.ExpectationSuites))
	for _, s := range snap.ExpectationSuites {
		if m := b.suite(s); m != nil {
			suites = append(suites, m)
		}
	}
	p[model.KeyAnonymizedExpectationSuites] = suites

	return p, nil
}

// suite 는 expectation suite 하나를 요약한다.
// producer 버전에 따라 type → count 매핑(pre-0.13) 또는 레코드 목록(0.13+)을 쓴다.
func (b *Builder) suite(s ExpectationSuite) map[string]any {
	name := b.reg.Anonymize(anonymizer.CategoryExpectationSuite, s.Name)
	if name == "" {
		return nil
	}
	counts := make(map[string]int)
	for _, e := range s.Expectations {
		t := b.expectationType(e)
		if t == "" {
			continue
		}
		counts[t]++
	}

	out := map[string]any{
		model.FieldAnonymizedName:  name,
		model.KeyExpectationCount: len(s.Expectations),
	}
	if !b.modern {
		typeCounts := make(map[string]any, len(counts))
		for t, n := range counts {
			typeCounts[t] = n
		}
		out[model.KeyAnonymizedExpectationTypeCount] = typeCounts
		return out
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	list := make([]any, 0, len(types))
	for _, t := range types {
		list = append(list, map[string]any{
			model.KeyExpectationType: t,
			model.KeyCount:           counts[t],
		})
	}
	out[model.KeyAnonymizedExpectationCounts] = list
	return out
}

// expectationType 은 기본 제공 타입만 그대로 두고 나머지는 해시한다.
// Custom 표시는 해시를 강제할 뿐, 생략되어도 사용자 정의 이름이 새지 않는다.
func (b *Builder) expectationType(e Expectation) string {
	return b.reg.ExpectationType(e.Type, e.Custom)
}

// ------------------------------------------------------------
// 단일 대상 이벤트
// ------------------------------------------------------------

func (b *Builder) buildAddDatasource(name model.EventName, snap Snapshot) (model.Payload, error) {
	if snap.Subject == nil {
		return nil, fmt.Errorf("%w: %s requires a subject", ErrBuild, name)
	}
	s := snap.Subject
	m := b.datasource(s.Component, s.SQLAlchemyDialect, s.ExecutionEngine, s.DataConnectors)
	if m == nil {
		return nil, fmt.Errorf("%w: %s subject has no name", ErrBuild, name)
	}
	return m, nil
}

func (b *Builder) buildSQLAlchemyConnect(name model.EventName, snap Snapshot) (model.Payload, error) {
	if snap.Subject == nil {
		return nil, fmt.Errorf("%w: %s requires a subject", ErrBuild, name)
	}
	h := b.reg.Anonymize(anonymizer.CategoryDatasource, snap.Subject.Name)
	if h == "" {
		return nil, fmt.Errorf("%w: %s subject has no name", ErrBuild, name)
	}
	p := model.Payload{model.FieldAnonymizedName: h}
	setString(p, model.KeySQLAlchemyDialect, normalizeDialect(snap.Subject.SQLAlchemyDialect))
	return p, nil
}

func (b *Builder) buildSaveSuite(name model.EventName, snap Snapshot) (model.Payload, error) {
	h := b.reg.Anonymize(anonymizer.CategoryExpectationSuite, snap.SuiteName)
	if h == "" {
		return nil, fmt.Errorf("%w: %s requires a suite name", ErrBuild, name)
	}
	return model.Payload{model.KeyAnonymizedExpectationSuiteName: h}, nil
}

func (b *Builder) buildValidate(_ model.EventName, snap Snapshot) (model.Payload, error) {
	return b.batch(Batch{
		DatasourceName: snap.DatasourceName,
		SuiteName:      snap.SuiteName,
		KwargKeys:      snap.BatchKwargKeys,
	}), nil
}

func (b *Builder) buildRunValidationOperator(_ model.EventName, snap Snapshot) (model.Payload, error) {
	p := model.Payload{}
	setString(p, model.KeyAnonymizedOperatorName, b.reg.Anonymize(anonymizer.CategoryValidationOperator, snap.OperatorName))
	batches := make([]any, 0, len(snap.Batches))
	for _, bt := range snap.Batches {
		batches = append(batches, b.batch(bt))
	}
	p[model.KeyAnonymizedBatches] = batches
	return p, nil
}

// buildTestYAMLConfig
//
// 대상 객체가 있으면 component payload, 없으면 diagnostic 전용 payload 를 만든다.
// 클래스 이름이 없는 설정은 __class_name_not_provided__ 진단으로 보고한다.
func (b *Builder) buildTestYAMLConfig(name model.EventName, snap Snapshot) (model.Payload, error) {
	diag := knownDiagnostics(snap.DiagnosticInfo)

	s := snap.Subject
	if s != nil && s.Class == "" && len(s.Ancestors) == 0 {
		diag = appendUnique(diag, model.DiagnosticClassNameNotProvided)
		s = nil
	}
	if s == nil {
		if len(diag) == 0 {
			return nil, fmt.Errorf("%w: %s requires a subject or diagnostic info", ErrBuild, name)
		}
		return model.Payload{model.KeyDiagnosticInfo: toAny(diag)}, nil
	}

	if !testYAMLCategories[s.Category] {
		return nil, fmt.Errorf("%w: %s does not cover %q", ErrBuild, name, s.Category)
	}
	rec := b.reg.Record(s.Category, s.Component)
	if rec.AnonymizedName == "" {
		if len(diag) == 0 {
			return nil, fmt.Errorf("%w: %s subject has no name", ErrBuild, name)
		}
		return model.Payload{model.KeyDiagnosticInfo: toAny(diag)}, nil
	}
	if rec.AnonymizedClass != "" {
		diag = appendUnique(diag, model.DiagnosticCustomSubclassNotCoreGE)
	}

	switch s.Category {
	case anonymizer.CategoryStore:
		rec.Set(model.KeyAnonymizedStoreBackend, b.optionalRecord(anonymizer.CategoryStoreBackend, s.Backend, false))
	case anonymizer.CategoryDatasource:
		b.setDatasourceChildren(&rec, s.SQLAlchemyDialect, s.ExecutionEngine, s.DataConnectors)
	}
	rec.Set(model.KeyDiagnosticInfo, toAny(diag))
	return rec.Map(), nil
}

// ------------------------------------------------------------
// 공통 조각
// ------------------------------------------------------------

func (b *Builder) datasource(c anonymizer.Component, dialect string, engine *anonymizer.Component, connectors []anonymizer.Component) map[string]any {
	rec := b.reg.Record(anonymizer.CategoryDatasource, c)
	if rec.AnonymizedName == "" {
		return nil
	}
	b.setDatasourceChildren(&rec, dialect, engine, connectors)
	return rec.Map()
}

func (b *Builder) setDatasourceChildren(rec *model.AnonymizedRecord, dialect string, engine *anonymizer.Component, connectors []anonymizer.Component) {
	if d := normalizeDialect(dialect); d != "" {
		rec.Set(model.KeySQLAlchemyDialect, d)
	}
	rec.Set(model.KeyAnonymizedExecutionEngine, b.optionalRecord(anonymizer.CategoryExecutionEngine, engine, true))
	if len(connectors) > 0 {
		list := make([]any, 0, len(connectors))
		for _, dc := range connectors {
			if m := b.namedRecord(anonymizer.CategoryDataConnector, dc); m != nil {
				list = append(list, m)
			}
		}
		rec.Set(model.KeyAnonymizedDataConnectors, list)
	}
}

// namedRecord 는 이름이 필수인 하위 레코드. 이름이 없으면 nil (목록에서 생략).
func (b *Builder) namedRecord(c anonymizer.Category, obj anonymizer.Component) map[string]any {
	rec := b.reg.Record(c, obj)
	if rec.AnonymizedName == "" {
		return nil
	}
	return rec.Map()
}

// optionalRecord 는 nil 일 수 있는 하위 객체.
// 반환 타입이 any 인 이유: nil map 이 아닌 untyped nil 을 돌려줘야
// AnonymizedRecord.Set 이 필드를 생략한다.
func (b *Builder) optionalRecord(c anonymizer.Category, obj *anonymizer.Component, named bool) any {
	if obj == nil {
		return nil
	}
	rec := b.reg.Record(c, *obj)
	if named && rec.AnonymizedName == "" {
		return nil
	}
	if !named {
		rec.AnonymizedName = ""
	}
	m := rec.Map()
	if len(m) == 0 {
		return nil
	}
	return m
}

func (b *Builder) batch(bt Batch) map[string]any {
	out := map[string]any{}
	if len(bt.KwargKeys) > 0 {
		keys := make([]any, 0, len(bt.KwargKeys))
		for _, k := range bt.KwargKeys {
			if k == "" {
				continue
			}
			if _, ok := knownKwargKeys[k]; ok {
				keys = append(keys, k)
				continue
			}
			keys = append(keys, b.reg.Anonymize(anonymizer.CategoryBatchKwargKey, k))
		}
		out[model.KeyAnonymizedBatchKwargKeys] = keys
	}
	setString(out, model.KeyAnonymizedExpectationSuiteName, b.reg.Anonymize(anonymizer.CategoryExpectationSuite, bt.SuiteName))
	setString(out, model.KeyAnonymizedDatasourceName, b.reg.Anonymize(anonymizer.CategoryDatasource, bt.DatasourceName))
	return out
}

var testYAMLCategories = func() map[anonymizer.Category]bool {
	out := make(map[anonymizer.Category]bool, len(anonymizer.TestYAMLConfigCategories))
	for _, c := range anonymizer.TestYAMLConfigCategories {
		out[c] = true
	}
	return out
}()

var (
	knownKwargKeys = toSet(model.KnownBatchKwargKeys)
	knownDialects  = toSet(model.SQLAlchemyDialects)
	knownDiagTags  = toSet(model.DiagnosticTags)
)

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

// normalizeDialect 는 알려지지 않은 방언을 "other" 로 바꾼다.
// (방언 이름 자체에 사용자 정보가 실릴 수 있는 커스텀 드라이버 대비)
func normalizeDialect(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return ""
	}
	if _, ok := knownDialects[d]; ok {
		return d
	}
	return "other"
}

func knownDiagnostics(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if _, ok := knownDiagTags[t]; ok {
			out = appendUnique(out, t)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func setString(p map[string]any, key, v string) {
	if v != "" {
		p[key] = v
	}
}
