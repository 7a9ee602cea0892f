package payload

import (
	"strings"
	"testing"

	"usagestats/internal/anonymizer"
	"usagestats/internal/envelope"
	"usagestats/internal/model"
	"usagestats/internal/schema"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = model.Identity{
	DataContextID:         "00000000-0000-0000-0000-000000000001",
	DataContextInstanceID: "10000000-0000-0000-0000-000000000000",
}

func newBuilder(t *testing.T, version string) *Builder {
	t.Helper()
	reg, err := anonymizer.New("installation-salt")
	require.NoError(t, err)
	return NewBuilder(reg, version)
}

// validate 는 payload 를 envelope 에 싸서 기본 검증기로 검사한다.
func validate(t *testing.T, version string, name model.EventName, p model.Payload) schema.Result {
	t.Helper()
	f := envelope.NewFactory(testIdentity, version)
	return schema.Default().Validate(f.Wrap(name, p, true).Message())
}

func richSnapshot() Snapshot {
	footer := true
	return Snapshot{
		APIVersion: "v3",
		Platform:   Platform{System: "Darwin", Release: "19.6.0", VersionInfo: "sys.version_info(major=3, minor=8)"},
		Datasources: []Datasource{
			{
				Component:         anonymizer.Component{Name: "warehouse_prod", Class: "SqlAlchemyDatasource"},
				SQLAlchemyDialect: "PostgreSQL",
			},
			{
				Component:       anonymizer.Component{Name: "acme_lake", Class: "AcmeDatasource", Ancestors: []string{"Datasource"}},
				ExecutionEngine: &anonymizer.Component{Name: "acme_engine", Class: "PandasExecutionEngine"},
				DataConnectors: []anonymizer.Component{
					{Name: "acme_s3_connector", Class: "InferredAssetS3DataConnector"},
					{Class: "RuntimeDataConnector"}, // 이름 없음 → 생략
				},
			},
			{Component: anonymizer.Component{Class: "PandasDatasource"}}, // 이름 없음 → 생략
		},
		Stores: []Store{
			{
				Component: anonymizer.Component{Name: "expectations_store", Class: "ExpectationsStore"},
				Backend:   &anonymizer.Component{Class: "TupleS3StoreBackend"},
			},
		},
		ValidationOperators: []ValidationOperator{
			{
				Component: anonymizer.Component{Name: "action_list_operator", Class: "ActionListValidationOperator"},
				Actions: []anonymizer.Component{
					{Name: "store_validation_result", Class: "StoreValidationResultAction"},
					{Name: "notify_acme_slack", Class: "AcmeNotifier"},
				},
			},
		},
		DataDocsSites: []DataDocsSite{
			{
				Component:    anonymizer.Component{Name: "local_site", Class: "SiteBuilder"},
				Backend:      &anonymizer.Component{Class: "TupleFilesystemStoreBackend"},
				IndexBuilder: &SiteIndexBuilder{Component: anonymizer.Component{Class: "DefaultSiteIndexBuilder"}, ShowCTAFooter: &footer},
			},
		},
		ExpectationSuites: []ExpectationSuite{
			{
				Name: "orders.warning",
				Expectations: []Expectation{
					{Type: "expect_column_values_to_not_be_null"},
					{Type: "expect_column_values_to_not_be_null"},
					{Type: "expect_acme_invoice_total_balanced", Custom: true},
					{Type: "acme_revenue_check_for_bob"},
				},
			},
		},
		SuiteName:      "orders.warning",
		DatasourceName: "warehouse_prod",
		BatchKwargKeys: []string{"datasource", "path", "acme_secret_partition"},
		OperatorName:   "action_list_operator",
		Batches: []Batch{
			{DatasourceName: "warehouse_prod", SuiteName: "orders.warning", KwargKeys: []string{"table", "acme_secret_partition"}},
		},
		DatasourceChoice: "Pandas",
	}
}

// rawIdentifiers 는 richSnapshot 에 들어 있는 사용자 식별 정보.
var rawIdentifiers = []string{
	"warehouse_prod", "acme", "expectations_store", "action_list_operator",
	"store_validation_result", "local_site", "orders.warning", "AcmeDatasource", "AcmeNotifier",
	"revenue_check_for_bob",
}

func TestBuild_EveryFamilyValidates(t *testing.T) {
	for _, version := range []string{"0.12.1", "0.13.0", "0.13.18.manual_testing", "0.13.20"} {
		b := newBuilder(t, version)
		for _, name := range schema.Default().Table().Names() {
			snap := richSnapshot()
			snap.Subject = subjectFor(name)
			snap.DiagnosticInfo = []string{model.DiagnosticYAMLParseError}

			p, err := b.Build(name, snap)
			require.NoError(t, err, "%s@%s", name, version)

			res := validate(t, version, name, p)
			if !res.Valid {
				// begin/end 및 test_yaml_config 는 해당 버전 이전 producer 에선 존재하지 않는다
				v, _ := schema.ParseVersion(version)
				if name.IsBegin() || name.IsEnd() {
					assert.True(t, v.Less(schema.V(0, 13, 18)), "%s@%s: %v", name, version, res.Violations)
					continue
				}
				if name == "data_context.test_yaml_config" {
					assert.True(t, v.Less(schema.V(0, 13, 20)), "%s@%s: %v", name, version, res.Violations)
					continue
				}
				t.Errorf("%s@%s rejected: %v", name, version, res.Violations)
			}
		}
	}
}

func subjectFor(name model.EventName) *Subject {
	switch name {
	case "data_context.add_datasource", "datasource.sqlalchemy.connect":
		return &Subject{
			Category:          anonymizer.CategoryDatasource,
			Component:         anonymizer.Component{Name: "warehouse_prod", Class: "SqlAlchemyDatasource"},
			SQLAlchemyDialect: "snowflake",
		}
	case "data_context.test_yaml_config":
		return &Subject{
			Category:  anonymizer.CategoryStore,
			Component: anonymizer.Component{Name: "expectations_store", Class: "ExpectationsStore"},
			Backend:   &anonymizer.Component{Class: "TupleS3StoreBackend"},
		}
	}
	return nil
}

func TestBuild_NoRawIdentifiers(t *testing.T) {
	b := newBuilder(t, "0.13.20")
	for _, name := range schema.Default().Table().Names() {
		snap := richSnapshot()
		snap.Subject = subjectFor(name)
		p, err := b.Build(name, snap)
		require.NoError(t, err)

		raw, err := json.Marshal(p)
		require.NoError(t, err)
		for _, id := range rawIdentifiers {
			assert.NotContains(t, strings.ToLower(string(raw)), strings.ToLower(id), "%s leaks %q", name, id)
		}
	}
}

func TestBuild_Init(t *testing.T) {
	t.Run("0.13+ uses expectation count records", func(t *testing.T) {
		p, err := newBuilder(t, "0.13.1").Build("data_context.__init__", richSnapshot())
		require.NoError(t, err)

		assert.Equal(t, "Darwin", p[model.KeyPlatformSystem])
		require.Len(t, p[model.KeyAnonymizedDatasources], 2)

		ds := p[model.KeyAnonymizedDatasources].([]any)
		first := ds[0].(map[string]any)
		assert.Equal(t, "SqlAlchemyDatasource", first[model.FieldParentClass])
		assert.Equal(t, "postgresql", first[model.KeySQLAlchemyDialect])
		assert.NotContains(t, first, model.FieldAnonymizedClass)

		custom := ds[1].(map[string]any)
		assert.Equal(t, "Datasource", custom[model.FieldParentClass])
		assert.Len(t, custom[model.FieldAnonymizedClass], 32)
		assert.Len(t, custom[model.KeyAnonymizedDataConnectors], 1)

		suite := p[model.KeyAnonymizedExpectationSuites].([]any)[0].(map[string]any)
		assert.Equal(t, 4, suite[model.KeyExpectationCount])
		counts := suite[model.KeyAnonymizedExpectationCounts].([]any)
		require.Len(t, counts, 3)
		for _, c := range counts {
			rec := c.(map[string]any)
			if rec[model.KeyExpectationType] == "expect_column_values_to_not_be_null" {
				assert.Equal(t, 2, rec[model.KeyCount])
			} else {
				assert.Len(t, rec[model.KeyExpectationType], 32)
			}
		}

		res := validate(t, "0.13.1", "data_context.__init__", p)
		require.True(t, res.Valid, "%v", res.Violations)
		assert.Equal(t, "expectation_counts", res.Revision)
	})

	t.Run("pre-0.13 uses type count mapping", func(t *testing.T) {
		p, err := newBuilder(t, "0.12.7").Build("data_context.__init__", richSnapshot())
		require.NoError(t, err)

		suite := p[model.KeyAnonymizedExpectationSuites].([]any)[0].(map[string]any)
		assert.NotContains(t, suite, model.KeyAnonymizedExpectationCounts)
		counts := suite[model.KeyAnonymizedExpectationTypeCount].(map[string]any)
		assert.Equal(t, 2, counts["expect_column_values_to_not_be_null"])

		res := validate(t, "0.12.7", "data_context.__init__", p)
		require.True(t, res.Valid, "%v", res.Violations)
		assert.Equal(t, "expectation_type_counts", res.Revision)
	})

	t.Run("empty snapshot gives empty lists", func(t *testing.T) {
		p, err := newBuilder(t, "0.13.1").Build("data_context.__init__", Snapshot{})
		require.NoError(t, err)
		assert.Empty(t, p[model.KeyAnonymizedDatasources])
		assert.NotContains(t, p, model.KeyPlatformSystem)
		assert.True(t, validate(t, "0.13.1", "data_context.__init__", p).Valid)
	})
}

func TestBuild_CLI(t *testing.T) {
	modern := newBuilder(t, "0.13.18")

	p, err := modern.Build("cli.checkpoint.new.end", Snapshot{APIVersion: "v3", Cancelled: true})
	require.NoError(t, err)
	assert.Equal(t, model.Payload{model.KeyAPIVersion: "v3", model.KeyCancelled: true}, p)

	p, err = modern.Build("cli.checkpoint.new.begin", Snapshot{APIVersion: "v3", Cancelled: true})
	require.NoError(t, err)
	assert.Equal(t, model.Payload{model.KeyAPIVersion: "v3"}, p, "cancelled only on .end")

	p, err = newBuilder(t, "0.12.9").Build("cli.suite.list", Snapshot{APIVersion: "v2"})
	require.NoError(t, err)
	assert.Empty(t, p, "api_version not reported before 0.13.0")

	p, err = modern.Build("cli.new_ds_choice", Snapshot{DatasourceChoice: "SQLAlchemy"})
	require.NoError(t, err)
	assert.Equal(t, "sqlalchemy", p[model.KeyType])

	_, err = modern.Build("cli.new_ds_choice", Snapshot{})
	assert.ErrorIs(t, err, ErrBuild)

	_, err = modern.Build("cli.new_ds_choice", Snapshot{DatasourceChoice: "postgres"})
	assert.ErrorIs(t, err, ErrBuild)

	_, err = modern.Build("cli.suite.edit", Snapshot{})
	assert.ErrorIs(t, err, ErrBuild)

	p, err = modern.Build("cli.suite.edit", Snapshot{SuiteName: "orders.warning"})
	require.NoError(t, err)
	assert.Len(t, p[model.KeyAnonymizedExpectationSuiteName], 32)
}

func TestBuild_UnknownEvent(t *testing.T) {
	_, err := newBuilder(t, "0.13.0").Build("cli.does_not_exist", Snapshot{})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestBuild_RequiredInputs(t *testing.T) {
	b := newBuilder(t, "0.13.20")
	for _, name := range []model.EventName{
		"data_context.add_datasource",
		"datasource.sqlalchemy.connect",
		"data_context.save_expectation_suite",
		"data_context.test_yaml_config",
	} {
		_, err := b.Build(name, Snapshot{})
		assert.ErrorIs(t, err, ErrBuild, name)
	}
}

func TestBuild_TestYAMLConfig(t *testing.T) {
	b := newBuilder(t, "0.13.20")

	t.Run("custom subclass is flagged", func(t *testing.T) {
		p, err := b.Build("data_context.test_yaml_config", Snapshot{Subject: &Subject{
			Category:  anonymizer.CategoryDatasource,
			Component: anonymizer.Component{Name: "acme", Class: "AcmeDatasource", Ancestors: []string{"PandasDatasource"}},
		}})
		require.NoError(t, err)
		assert.Equal(t, "PandasDatasource", p[model.FieldParentClass])
		assert.Equal(t, []any{model.DiagnosticCustomSubclassNotCoreGE}, p[model.KeyDiagnosticInfo])

		res := validate(t, "0.13.20", "data_context.test_yaml_config", p)
		require.True(t, res.Valid, "%v", res.Violations)
		assert.Equal(t, "component", res.Revision)
	})

	t.Run("missing class becomes diagnostic", func(t *testing.T) {
		p, err := b.Build("data_context.test_yaml_config", Snapshot{Subject: &Subject{
			Category:  anonymizer.CategoryStore,
			Component: anonymizer.Component{Name: "my_store"},
		}})
		require.NoError(t, err)
		assert.Equal(t, model.Payload{model.KeyDiagnosticInfo: []any{model.DiagnosticClassNameNotProvided}}, p)

		res := validate(t, "0.13.20", "data_context.test_yaml_config", p)
		require.True(t, res.Valid, "%v", res.Violations)
		assert.Equal(t, "diagnostic", res.Revision)
	})

	t.Run("unknown diagnostic tags are dropped", func(t *testing.T) {
		p, err := b.Build("data_context.test_yaml_config", Snapshot{DiagnosticInfo: []string{"bogus", model.DiagnosticSubstitutionError}})
		require.NoError(t, err)
		assert.Equal(t, []any{model.DiagnosticSubstitutionError}, p[model.KeyDiagnosticInfo])
	})

	t.Run("unsupported category", func(t *testing.T) {
		_, err := b.Build("data_context.test_yaml_config", Snapshot{Subject: &Subject{
			Category:  anonymizer.CategoryAction,
			Component: anonymizer.Component{Name: "a", Class: "NoOpAction"},
		}})
		assert.ErrorIs(t, err, ErrBuild)
	})
}

func TestBuild_BatchKwargKeys(t *testing.T) {
	p, err := newBuilder(t, "0.13.0").Build("data_asset.validate", Snapshot{
		BatchKwargKeys: []string{"path", "acme_secret_partition", ""},
		SuiteName:      "orders.warning",
	})
	require.NoError(t, err)

	keys := p[model.KeyAnonymizedBatchKwargKeys].([]any)
	require.Len(t, keys, 2)
	assert.Equal(t, "path", keys[0])
	assert.Len(t, keys[1], 32)
	assert.NotContains(t, p, model.KeyAnonymizedDatasourceName)
}

func TestNormalizeDialect(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"sqlite":       "sqlite",
		" BigQuery ":   "bigquery",
		"acme_dialect": "other",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeDialect(in), in)
	}
}
