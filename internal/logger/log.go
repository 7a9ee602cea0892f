// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"usagestats/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 프로세스 시작 시 한 번 호출되는 전역 로거 초기화.
//
//   - LOG_PRETTY=true: 콘솔용 컬러 텍스트, 그 외: JSON (수집 시스템용)
//   - 모든 로그에 service / instance 필드를 붙인다
//   - Debug/Info 는 LOG_SAMPLE_N 분의 1 만 기록, Warn 이상은 전부 기록
//
// 사용 예:
//
//	logger.Init(cfg)
//	log.Info().Str("event", name).Msg("usage event sent")
func Init(cfg config.Config) {
	zlog.Logger = New(cfg, os.Stdout)

	// 표준 log 패키지 출력도 zerolog 로 보낸다.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}

// New 는 설정에 맞는 zerolog.Logger 를 만든다. 전역 상태는 레벨만 바꾼다.
func New(cfg config.Config, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil && cfg.LogLevel != "" {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	w := out
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	if cfg.LogSampleN > 1 {
		// Warn/Error 는 샘플링하지 않는다 (nil sampler)
		return base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}
	return base
}
