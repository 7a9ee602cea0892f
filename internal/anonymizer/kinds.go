package anonymizer

// Category 는 익명화 대상 객체의 종류(카테고리).
// 해시 도메인 분리에도 사용되므로 값을 바꾸면 기존 해시와의 연결성이 끊긴다.
type Category string

const (
	CategoryDatasource         Category = "datasource"
	CategoryStore              Category = "store"
	CategoryStoreBackend       Category = "store_backend"
	CategoryValidationOperator Category = "validation_operator"
	CategoryAction             Category = "action"
	CategorySiteBuilder        Category = "site_builder"
	CategorySiteIndexBuilder   Category = "site_index_builder"
	CategoryDataConnector      Category = "data_connector"
	CategoryExecutionEngine    Category = "execution_engine"
	CategoryCheckpoint         Category = "checkpoint"

	// 분류 테이블이 없는 해시 전용 도메인
	CategoryExpectationSuite Category = "expectation_suite"
	CategoryExpectationType  Category = "expectation_type"
	CategoryBatchKwargKey    Category = "batch_kwarg_key"
	CategoryClass            Category = "class"
)

// KindTag 는 payload 의 parent_class 값. 알려진 프레임워크 타입 이름만 허용된다.
type KindTag string

// KindNotRecognized 는 어떤 알려진 kind 에도 속하지 않는 확장 타입의 일반 태그.
const KindNotRecognized KindTag = "__not_recognized__"

// defaultKinds
//
// 카테고리별 알려진 프레임워크 kind 테이블.
// append-only 로 유지한다. 항목을 제거하면 과거 메시지 검증이 깨진다.
var defaultKinds = map[Category][]KindTag{
	CategoryDatasource: {
		"PandasDatasource",
		"SqlAlchemyDatasource",
		"SparkDFDatasource",
		"LegacyDatasource",
		"BaseDatasource",
		"Datasource",
		"SimpleSqlalchemyDatasource",
	},
	CategoryStore: {
		"ExpectationsStore",
		"ValidationsStore",
		"EvaluationParameterStore",
		"CheckpointStore",
		"MetricStore",
		"HtmlSiteStore",
		"SqlAlchemyQueryStore",
		"ConfigurationStore",
		"Store",
	},
	CategoryStoreBackend: {
		"InMemoryStoreBackend",
		"TupleFilesystemStoreBackend",
		"TupleS3StoreBackend",
		"TupleGCSStoreBackend",
		"TupleAzureBlobStoreBackend",
		"DatabaseStoreBackend",
		"TupleStoreBackend",
		"StoreBackend",
	},
	CategoryValidationOperator: {
		"ActionListValidationOperator",
		"WarningAndFailureExpectationSuitesValidationOperator",
		"ValidationOperator",
	},
	CategoryAction: {
		"StoreValidationResultAction",
		"StoreEvaluationParametersAction",
		"UpdateDataDocsAction",
		"SlackNotificationAction",
		"PagerdutyAlertAction",
		"MicrosoftTeamsNotificationAction",
		"OpsgenieAlertAction",
		"EmailAction",
		"StoreMetricsAction",
		"NoOpAction",
		"ValidationAction",
	},
	CategorySiteBuilder: {
		"SiteBuilder",
	},
	CategorySiteIndexBuilder: {
		"DefaultSiteIndexBuilder",
	},
	CategoryDataConnector: {
		"InferredAssetFilesystemDataConnector",
		"ConfiguredAssetFilesystemDataConnector",
		"InferredAssetS3DataConnector",
		"ConfiguredAssetS3DataConnector",
		"InferredAssetGCSDataConnector",
		"ConfiguredAssetGCSDataConnector",
		"InferredAssetAzureDataConnector",
		"ConfiguredAssetAzureDataConnector",
		"InferredAssetSqlDataConnector",
		"ConfiguredAssetSqlDataConnector",
		"RuntimeDataConnector",
		"DataConnector",
	},
	CategoryExecutionEngine: {
		"PandasExecutionEngine",
		"SqlAlchemyExecutionEngine",
		"SparkDFExecutionEngine",
		"ExecutionEngine",
	},
	CategoryCheckpoint: {
		"Checkpoint",
		"SimpleCheckpoint",
		"LegacyCheckpoint",
	},
}

// TestYAMLConfigCategories 는 test_yaml_config 이벤트의 대상이 될 수 있는 카테고리.
var TestYAMLConfigCategories = []Category{
	CategoryStore,
	CategoryStoreBackend,
	CategoryDatasource,
	CategoryDataConnector,
	CategoryCheckpoint,
}

// DefaultKinds 는 기본 kind 테이블의 사본을 반환한다.
func DefaultKinds() map[Category][]KindTag {
	out := make(map[Category][]KindTag, len(defaultKinds))
	for c, kinds := range defaultKinds {
		out[c] = append([]KindTag(nil), kinds...)
	}
	return out
}

// coreExpectationTypes
//
// 프레임워크가 기본 제공하는 expectation type. 이 목록에 있는 이름만 그대로 보고하고
// 나머지는 모두 해시한다. append-only.
var coreExpectationTypes = []string{
	"expect_column_to_exist",
	"expect_table_columns_to_match_ordered_list",
	"expect_table_columns_to_match_set",
	"expect_table_column_count_to_be_between",
	"expect_table_column_count_to_equal",
	"expect_table_row_count_to_be_between",
	"expect_table_row_count_to_equal",
	"expect_table_row_count_to_equal_other_table",
	"expect_column_values_to_be_unique",
	"expect_column_values_to_not_be_null",
	"expect_column_values_to_be_null",
	"expect_column_values_to_be_of_type",
	"expect_column_values_to_be_in_type_list",
	"expect_column_values_to_be_in_set",
	"expect_column_values_to_not_be_in_set",
	"expect_column_values_to_be_between",
	"expect_column_values_to_be_increasing",
	"expect_column_values_to_be_decreasing",
	"expect_column_value_lengths_to_be_between",
	"expect_column_value_lengths_to_equal",
	"expect_column_values_to_match_regex",
	"expect_column_values_to_not_match_regex",
	"expect_column_values_to_match_regex_list",
	"expect_column_values_to_not_match_regex_list",
	"expect_column_values_to_match_like_pattern",
	"expect_column_values_to_not_match_like_pattern",
	"expect_column_values_to_match_like_pattern_list",
	"expect_column_values_to_not_match_like_pattern_list",
	"expect_column_values_to_match_strftime_format",
	"expect_column_values_to_be_dateutil_parseable",
	"expect_column_values_to_be_json_parseable",
	"expect_column_values_to_match_json_schema",
	"expect_column_distinct_values_to_be_in_set",
	"expect_column_distinct_values_to_contain_set",
	"expect_column_distinct_values_to_equal_set",
	"expect_column_mean_to_be_between",
	"expect_column_median_to_be_between",
	"expect_column_quantile_values_to_be_between",
	"expect_column_stdev_to_be_between",
	"expect_column_unique_value_count_to_be_between",
	"expect_column_proportion_of_unique_values_to_be_between",
	"expect_column_most_common_value_to_be_in_set",
	"expect_column_max_to_be_between",
	"expect_column_min_to_be_between",
	"expect_column_sum_to_be_between",
	"expect_column_pair_values_A_to_be_greater_than_B",
	"expect_column_pair_values_to_be_equal",
	"expect_column_pair_values_to_be_in_set",
	"expect_multicolumn_values_to_be_unique",
	"expect_select_column_values_to_be_unique_within_record",
	"expect_compound_columns_to_be_unique",
	"expect_multicolumn_sum_to_equal",
	"expect_column_kl_divergence_to_be_less_than",
	"expect_column_bootstrapped_ks_test_p_value_to_be_greater_than",
	"expect_column_chisquare_test_p_value_to_be_greater_than",
	"expect_column_parameterized_distribution_ks_test_p_value_to_be_greater_than",
	"expect_file_line_regex_match_count_to_be_between",
	"expect_file_line_regex_match_count_to_equal",
	"expect_file_hash_to_equal",
	"expect_file_size_to_be_between",
	"expect_file_to_exist",
	"expect_file_to_have_valid_table_header",
	"expect_file_to_be_valid_json",
}

var coreExpectationSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(coreExpectationTypes))
	for _, t := range coreExpectationTypes {
		m[t] = struct{}{}
	}
	return m
}()

// CoreExpectationTypes 는 그대로 보고 가능한 expectation type 목록의 사본.
func CoreExpectationTypes() []string {
	return append([]string(nil), coreExpectationTypes...)
}

// IsCoreExpectationType 은 t 가 기본 제공 expectation type 인지 확인한다.
func IsCoreExpectationType(t string) bool {
	_, ok := coreExpectationSet[t]
	return ok
}

// KnownKinds 는 기본 테이블에서 주어진 카테고리들의 kind 를 중복 없이 반환한다.
// 검증기의 parent_class 열거형 생성에 쓰인다.
func KnownKinds(categories ...Category) []KindTag {
	seen := make(map[KindTag]struct{})
	var out []KindTag
	for _, c := range categories {
		for _, k := range defaultKinds[c] {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
