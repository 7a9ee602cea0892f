package schema

import (
	"usagestats/internal/model"
)

// 과거에 실제로 전송된 메시지 형태들. family 마다 가장 오래된 형태와 최신 형태를 포함한다.
// 새 이벤트 종류를 추가할 때는 반드시 여기에도 예시를 추가할 것.

var defaultEnvelope = model.Message{
	"success":                  true,
	"version":                  "1.0.0",
	"event_time":               "2020-08-04T22:50:58.837Z",
	"data_context_id":          "00000000-0000-0000-0000-000000000002",
	"data_context_instance_id": "10000000-0000-0000-0000-000000000002",
}

type fixture struct {
	event     string
	geVersion string
	payload   map[string]any
	success   *bool
	extra     map[string]any
}

func (f fixture) message() model.Message {
	m := defaultEnvelope.Clone()
	m["event"] = f.event
	m["ge_version"] = f.geVersion
	m["event_payload"] = model.CloneMap(f.payload)
	if f.success != nil {
		m["success"] = *f.success
	}
	for k, v := range f.extra {
		m[k] = v
	}
	return m
}

var falseVal = false

const (
	ge0119   = "0.11.9.manual_testing"
	ge0130   = "0.13.0.manual_testing"
	ge01318  = "0.13.18.manual_testing"
	ge01320  = "0.13.20.manual_testing"
	anonName = "fake_anonymized_name_for_testing"
)

func v3() map[string]any { return map[string]any{"api_version": "v3"} }

// cliFixtures 는 CLI family 하나에 대해 과거 형태 전체를 만든다.
func cliFixtures(name string, bracketed bool, extra map[string]any) []fixture {
	with := func(p map[string]any) map[string]any {
		out := model.CloneMap(extra)
		for k, v := range p {
			out[k] = v
		}
		return out
	}
	fx := []fixture{
		{event: name, geVersion: ge0119, payload: with(map[string]any{})},
		{event: name, geVersion: ge0130, payload: with(map[string]any{"api_version": "v2"})},
		{event: name, geVersion: ge0130, payload: with(v3())},
	}
	if bracketed {
		fx = append(fx,
			fixture{event: name + ".begin", geVersion: ge01318, payload: with(v3())},
			fixture{event: name + ".end", geVersion: ge01318, payload: with(v3())},
			fixture{event: name + ".end", geVersion: ge01318, payload: with(v3()), success: &falseVal},
			fixture{event: name + ".end", geVersion: ge01318, payload: with(map[string]any{"api_version": "v3", "cancelled": true})},
		)
	}
	return fx
}

func initPayloadFixture(newStyle bool) map[string]any {
	suite := map[string]any{
		"anonymized_name":   "238e99998c7674e4ff26a9c529d43da4",
		"expectation_count": 8,
	}
	if newStyle {
		suite["anonymized_expectation_counts"] = []any{
			map[string]any{"expectation_type": "expect_column_value_lengths_to_be_between", "count": 1},
			map[string]any{"expectation_type": "expect_column_values_to_not_be_null", "count": 2},
		}
	} else {
		suite["anonymized_expectation_type_counts"] = map[string]any{
			"expect_column_value_lengths_to_be_between": 1,
			"expect_column_values_to_not_be_null":       2,
		}
	}
	return map[string]any{
		"platform.system":  "Darwin",
		"platform.release": "19.3.0",
		"version_info":     "sys.version_info(major=3, minor=7, micro=4, releaselevel='final', serial=0)",
		"anonymized_datasources": []any{
			map[string]any{
				"anonymized_name":    "f57d8a6edae4f321b833384801847498",
				"parent_class":       "SqlAlchemyDatasource",
				"sqlalchemy_dialect": "postgresql",
			},
		},
		"anonymized_stores": []any{
			map[string]any{
				"anonymized_name":          "078eceafc1051edf98ae2f911484c7f7",
				"parent_class":             "ExpectationsStore",
				"anonymized_store_backend": map[string]any{"parent_class": "TupleFilesystemStoreBackend"},
			},
			map[string]any{
				"anonymized_name":          "2d487386aa7b39e00ed672739421473f",
				"parent_class":             "EvaluationParameterStore",
				"anonymized_store_backend": map[string]any{"parent_class": "InMemoryStoreBackend"},
			},
		},
		"anonymized_validation_operators": []any{
			map[string]any{
				"anonymized_name": "99d14cc00b69317551690fb8a61aca94",
				"parent_class":    "ActionListValidationOperator",
				"anonymized_action_list": []any{
					map[string]any{"anonymized_name": "5a170e5b77c092cc6c9f5cf2b639459a", "parent_class": "StoreValidationResultAction"},
					map[string]any{"anonymized_name": "0fffe1906a8f2a5625a5659a848c25a3", "parent_class": "StoreEvaluationParametersAction"},
					map[string]any{"anonymized_name": "101c746ab7597e22b94d6e5f10b75916", "parent_class": "UpdateDataDocsAction"},
				},
			},
		},
		"anonymized_data_docs_sites": []any{
			map[string]any{
				"parent_class":             "SiteBuilder",
				"anonymized_name":          "eaf0cf17ad63abf1477f7c37ad192700",
				"anonymized_store_backend": map[string]any{"parent_class": "TupleFilesystemStoreBackend"},
				"anonymized_site_index_builder": map[string]any{
					"parent_class":    "DefaultSiteIndexBuilder",
					"show_cta_footer": true,
				},
			},
		},
		"anonymized_expectation_suites": []any{suite},
	}
}

func testYAMLConfigFixtures() []fixture {
	var fx []fixture
	for _, cat := range []string{"ExpectationsStore", "TupleFilesystemStoreBackend", "Datasource", "SimpleSqlalchemyDatasource", "InferredAssetFilesystemDataConnector", "Checkpoint", "SimpleCheckpoint"} {
		p := map[string]any{"anonymized_name": anonName, "parent_class": cat, "diagnostic_info": []any{}}
		fx = append(fx,
			fixture{event: "data_context.test_yaml_config", geVersion: ge01320, payload: p},
			fixture{event: "data_context.test_yaml_config", geVersion: ge01320, payload: p, success: &falseVal},
		)
	}
	for _, tag := range model.DiagnosticTags {
		fx = append(fx, fixture{
			event: "data_context.test_yaml_config", geVersion: ge01320, success: &falseVal,
			payload: map[string]any{"diagnostic_info": []any{tag}},
		})
	}
	fx = append(fx,
		fixture{event: "data_context.test_yaml_config", geVersion: ge01320, payload: map[string]any{
			"anonymized_name":          anonName,
			"parent_class":             "ExpectationsStore",
			"anonymized_store_backend": map[string]any{"parent_class": "InMemoryStoreBackend"},
		}},
		fixture{event: "data_context.test_yaml_config", geVersion: ge01320, payload: map[string]any{
			"anonymized_name": anonName,
			"parent_class":    "Datasource",
			"anonymized_execution_engine": map[string]any{
				"anonymized_name": anonName,
				"parent_class":    "PandasExecutionEngine",
			},
			"anonymized_data_connectors": []any{
				map[string]any{"anonymized_name": anonName, "parent_class": "InferredAssetFilesystemDataConnector"},
			},
		}},
	)
	return fx
}

// historicalFixtures 는 event 이름별 과거 메시지 목록.
func historicalFixtures() map[string][]fixture {
	xff := map[string]any{"x-forwarded-for": "00.000.00.000, 00.000.000.000"}

	fx := map[string][]fixture{
		"data_context.__init__": {
			{event: "data_context.__init__", geVersion: "0.11.9.manual_test", payload: initPayloadFixture(false)},
			{event: "data_context.__init__", geVersion: "0.13.0.manual_test", payload: initPayloadFixture(true)},
		},
		"data_asset.validate": {
			{event: "data_asset.validate", geVersion: ge0119, payload: map[string]any{
				"anonymized_batch_kwarg_keys":       []any{"path", "datasource", "data_asset_name"},
				"anonymized_expectation_suite_name": "dbb859464809a03647feb14a514f12b8",
				"anonymized_datasource_name":        "a41caeac7edb993cfbe55746e6a328b5",
			}},
		},
		"data_context.run_validation_operator": {
			{event: "data_context.run_validation_operator", geVersion: ge0119, payload: map[string]any{
				"anonymized_operator_name": "99d14cc00b69317551690fb8a61aca94",
				"anonymized_batches": []any{map[string]any{
					"anonymized_batch_kwarg_keys":       []any{"path", "datasource"},
					"anonymized_expectation_suite_name": "dbb859464809a03647feb14a514f12b8",
					"anonymized_datasource_name":        "a41caeac7edb993cfbe55746e6a328b5",
				}},
			}},
		},
		"data_context.add_datasource": {
			{event: "data_context.add_datasource", geVersion: ge0119, extra: xff, payload: map[string]any{
				"anonymized_name": "c9633f65c36d1ba9fbaa9009c1404cfa",
				"parent_class":    "PandasDatasource",
			}},
		},
		"data_context.build_data_docs": {
			{event: "data_context.build_data_docs", geVersion: ge0119, extra: xff, payload: map[string]any{}},
		},
		"data_context.open_data_docs": {
			{event: "data_context.open_data_docs", geVersion: ge0119, extra: xff, payload: map[string]any{}},
		},
		"data_context.save_expectation_suite": {
			{event: "data_context.save_expectation_suite", geVersion: ge0119, extra: xff, payload: map[string]any{
				"anonymized_expectation_suite_name": "4b6bf73298fcc2db6da929a8f18173f7",
			}},
		},
		"datasource.sqlalchemy.connect": {
			{event: "datasource.sqlalchemy.connect", geVersion: "0.11.5.manual_testing", payload: map[string]any{
				"anonymized_name":    "6989a7654d0e27470dc01292b6ed0dea",
				"sqlalchemy_dialect": "postgresql",
			}},
		},
		"data_context.test_yaml_config": testYAMLConfigFixtures(),
	}

	for _, c := range cliCommands {
		var extra map[string]any
		switch c.name {
		case "cli.new_ds_choice":
			extra = map[string]any{"type": "pandas"}
		case "cli.suite.edit":
			extra = map[string]any{"anonymized_expectation_suite_name": "0604e6a8f5a1da77e0438aa3b543846e"}
		}
		fx[string(c.name)] = cliFixtures(string(c.name), c.bracketed, extra)
	}

	// dev 빌드 버전 문자열
	fx["cli.docs.clean"] = append(fx["cli.docs.clean"],
		fixture{event: "cli.docs.clean", geVersion: "0.11.9+25.g3ca555c.dirty", payload: map[string]any{}},
		fixture{event: "cli.docs.clean", geVersion: "0.13.0+25.g3ca555c.dirty", payload: v3()},
	)
	return fx
}
