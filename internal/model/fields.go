package model

// payload 필드 이름.
// PayloadBuilder 와 SchemaValidator 가 같은 이름을 쓰도록 한 곳에 모아 둔다.
const (
	KeyAPIVersion = "api_version"
	KeyCancelled  = "cancelled"
	KeyType       = "type"

	KeyPlatformSystem  = "platform.system"
	KeyPlatformRelease = "platform.release"
	KeyVersionInfo     = "version_info"

	KeyAnonymizedDatasources         = "anonymized_datasources"
	KeyAnonymizedStores              = "anonymized_stores"
	KeyAnonymizedValidationOperators = "anonymized_validation_operators"
	KeyAnonymizedDataDocsSites       = "anonymized_data_docs_sites"
	KeyAnonymizedExpectationSuites   = "anonymized_expectation_suites"

	KeyAnonymizedStoreBackend     = "anonymized_store_backend"
	KeyAnonymizedActionList       = "anonymized_action_list"
	KeyAnonymizedSiteIndexBuilder = "anonymized_site_index_builder"
	KeyShowCTAFooter              = "show_cta_footer"
	KeyAnonymizedExecutionEngine  = "anonymized_execution_engine"
	KeyAnonymizedDataConnectors   = "anonymized_data_connectors"
	KeySQLAlchemyDialect          = "sqlalchemy_dialect"

	KeyExpectationCount               = "expectation_count"
	KeyAnonymizedExpectationTypeCount = "anonymized_expectation_type_counts"
	KeyAnonymizedExpectationCounts    = "anonymized_expectation_counts"
	KeyExpectationType                = "expectation_type"
	KeyCount                          = "count"

	KeyAnonymizedBatchKwargKeys       = "anonymized_batch_kwarg_keys"
	KeyAnonymizedExpectationSuiteName = "anonymized_expectation_suite_name"
	KeyAnonymizedDatasourceName       = "anonymized_datasource_name"
	KeyAnonymizedOperatorName         = "anonymized_operator_name"
	KeyAnonymizedBatches              = "anonymized_batches"
	KeyDiagnosticInfo                 = "diagnostic_info"
)

// diagnostic_info 태그
const (
	DiagnosticSubstitutionError       = "__substitution_error__"
	DiagnosticYAMLParseError          = "__yaml_parse_error__"
	DiagnosticCustomSubclassNotCoreGE = "__custom_subclass_not_core_ge__"
	DiagnosticClassNameNotProvided    = "__class_name_not_provided__"
)

// DiagnosticTags 는 허용되는 diagnostic_info 값 전체.
var DiagnosticTags = []string{
	DiagnosticSubstitutionError,
	DiagnosticYAMLParseError,
	DiagnosticCustomSubclassNotCoreGE,
	DiagnosticClassNameNotProvided,
}

// APIVersions 는 api_version 필드에 허용되는 값.
var APIVersions = []string{"v2", "v3"}

// SQLAlchemyDialects 는 sqlalchemy_dialect 열거형.
// 목록에 없는 방언은 "other" 로 보고한다.
var SQLAlchemyDialects = []string{
	"sqlite", "postgresql", "mysql", "oracle", "mssql",
	"bigquery", "snowflake", "redshift", "awsathena", "other",
}

// DatasourceChoices 는 cli.new_ds_choice 의 type 값.
var DatasourceChoices = []string{"pandas", "spark", "sqlalchemy"}

// KnownBatchKwargKeys 는 그대로 보고해도 되는 프레임워크 batch kwarg 키.
// 그 외 키는 익명화된다.
var KnownBatchKwargKeys = []string{
	"datasource", "reader_method", "reader_options", "path", "s3", "dataset",
	"PandasInMemoryDF", "ge_batch_id", "query", "table", "SparkDFRef", "limit",
	"query_parameters", "offset", "snowflake_transient_table", "bigquery_temp_table",
	"data_asset_name",
}
