// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config
//
// 프로세스 실행 시 필요한 환경 변수 값을 보관하는 구조체.
// Load() 에 의해 시작 시점에 한 번 초기화되며 이후에는 읽기 전용이다.
//
//   - 공통: 서비스 식별자 / 로그 설정
//   - Usage: 사용 통계 emitter (클라이언트 측)
//   - Collector: 로컬 수집기 + 아카이브 (개발/통합 테스트용)
type Config struct {

	// ---------------------------
	// 공통 / 로그
	// ---------------------------

	ServiceName string `env:"SERVICE_NAME" envDefault:"usagestats"`
	InstanceID  string `env:"INSTANCE_ID"` // 비어 있으면 hostname, 실패 시 랜덤 hex
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"false"`
	LogSampleN  uint32 `env:"LOG_SAMPLE_N" envDefault:"0"`

	Usage     UsageConfig
	Collector CollectorConfig
}

// UsageConfig
//
// emitter 설정. Enabled=false 이면 모든 emit 호출이 no-op 이 된다.
type UsageConfig struct {
	Enabled     bool          `env:"USAGE_STATS_ENABLED" envDefault:"true"`
	URL         string        `env:"USAGE_STATS_URL" envDefault:"https://stats.greatexpectations.io/great_expectations/v1/usage_statistics" validate:"omitempty,url"`
	SendTimeout time.Duration `env:"USAGE_STATS_SEND_TIMEOUT" envDefault:"1s" validate:"gt=0"`
	Workers     int           `env:"USAGE_STATS_WORKERS" envDefault:"2" validate:"min=1,max=64"`
	Queue       int           `env:"USAGE_STATS_QUEUE" envDefault:"256" validate:"min=1"`
	Compress    bool          `env:"USAGE_STATS_COMPRESS" envDefault:"false"`

	// 설치 식별자. 호스트가 보관/공급하며 여기서는 생성하지 않는다.
	DataContextID         string `env:"DATA_CONTEXT_ID" validate:"omitempty,uuid"`
	DataContextInstanceID string `env:"DATA_CONTEXT_INSTANCE_ID" validate:"omitempty,uuid"`
	GEVersion             string `env:"GE_VERSION" validate:"max=128"`

	// 설치별 익명화 salt. 기본값은 DataContextID.
	Salt string `env:"USAGE_STATS_SALT"`
}

// CollectorConfig
//
// 로컬 수집기 설정. ArchiveBucket 이 비어 있으면 아카이브 업로드를 하지 않는다.
type CollectorConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`
	MaxBodySize int64  `env:"MAX_BODY_SIZE" envDefault:"65536" validate:"min=1024"`

	ChannelSize   int           `env:"CHANNEL_SIZE" envDefault:"1024" validate:"min=1"`  // 수락 메시지 큐 크기
	UploadQueue   int           `env:"UPLOAD_QUEUE" envDefault:"8" validate:"min=1"`     // 업로드 배치 큐 크기
	BatchSize     int           `env:"BATCH_SIZE" envDefault:"500" validate:"min=1"`     // N개 모이면 업로드
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"30s" validate:"gt=0"` // 시간 기반 flush

	// ---------------------------
	// S3 아카이브
	// ---------------------------
	// SDK retry 는 0 으로 고정하고 재시도 횟수는 S3AppRetries 만 사용한다.

	AWSRegion     string        `env:"AWS_REGION" envDefault:"ap-northeast-2"`
	ArchiveBucket string        `env:"ARCHIVE_BUCKET"`
	ArchivePrefix string        `env:"ARCHIVE_PREFIX" envDefault:"usage_statistics"`
	S3Timeout     time.Duration `env:"S3_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	S3AppRetries  int           `env:"S3_APP_RETRIES" envDefault:"3" validate:"min=1,max=10"`
}

// ArchiveEnabled 는 S3 아카이브 업로드 여부.
func (c CollectorConfig) ArchiveEnabled() bool { return c.ArchiveBucket != "" }

var structValidator = validator.New()

// Load
//
// 환경 변수 기반으로 Config 를 초기화하고 검증한다.
// 실패 시 에러를 반환하며, 프로세스 종료(fail-fast)는 cmd 에서 결정한다.
func Load() (Config, error) {
	return load(true)
}

// LoadCollector 는 수집기용 Load. emitter 설정은 읽지만 항상 비활성으로 둔다.
func LoadCollector() (Config, error) {
	return load(false)
}

func load(usage bool) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = fallbackInstanceID()
	}
	if cfg.Usage.Salt == "" {
		cfg.Usage.Salt = cfg.Usage.DataContextID
	}
	if !usage {
		cfg.Usage.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 는 태그 규칙과 필드 간 제약을 검사한다.
func (c Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Usage.Enabled {
		var errs []error
		if c.Usage.URL == "" {
			errs = append(errs, errors.New("USAGE_STATS_URL is required when usage statistics are enabled"))
		}
		if c.Usage.DataContextID == "" {
			errs = append(errs, errors.New("DATA_CONTEXT_ID is required when usage statistics are enabled"))
		}
		if c.Usage.DataContextInstanceID == "" {
			errs = append(errs, errors.New("DATA_CONTEXT_INSTANCE_ID is required when usage statistics are enabled"))
		}
		if c.Usage.GEVersion == "" {
			errs = append(errs, errors.New("GE_VERSION is required when usage statistics are enabled"))
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// fallbackInstanceID
//
// 프로세스 인스턴스 식별 값.
//   - 기본: hostname
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
