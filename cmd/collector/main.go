package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"usagestats/internal/archive"
	"usagestats/internal/collector"
	"usagestats/internal/config"
	"usagestats/internal/logger"
	"usagestats/internal/metrics"
	"usagestats/internal/schema"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env 는 로컬 개발용. 없으면 무시한다.
	_ = godotenv.Load()

	// ====================================================================
	// CPU 설정
	// ====================================================================
	// 컨테이너 vCPU 보다 GOMAXPROCS 가 크면 스케줄링 낭비가 생긴다.
	// 기본 1, 환경변수로 재정의.
	if v := os.Getenv("GOMAXPROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			runtime.GOMAXPROCS(n)
		}
	} else {
		runtime.GOMAXPROCS(1)
	}

	// ====================================================================
	// Config / Logger / Metrics
	// ====================================================================
	cfg, err := config.LoadCollector()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger.Init(cfg)
	m := metrics.New()

	// ====================================================================
	// 아카이브 (선택)
	// ====================================================================
	// ARCHIVE_BUCKET 이 있으면 수락된 메시지를 배치로 S3 에 보관한다.
	var (
		arc  *archive.Archive
		sink collector.Sink
	)
	if cfg.Collector.ArchiveEnabled() {
		client, err := archive.NewS3Client(context.Background(), cfg.Collector.AWSRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("s3 client")
		}
		uploader := archive.NewUploader(client, cfg.Collector.ArchiveBucket, cfg.Collector.S3Timeout, cfg.Collector.S3AppRetries, m)
		arc = archive.New(archive.Config{
			QueueSize:     cfg.Collector.ChannelSize,
			UploadQueue:   cfg.Collector.UploadQueue,
			BatchSize:     cfg.Collector.BatchSize,
			FlushInterval: cfg.Collector.FlushInterval,
		}, uploader, archive.NewKeyer(cfg.Collector.ArchivePrefix, cfg.InstanceID, nil), m)
		arc.Start()
		sink = arc
		log.Info().Str("bucket", cfg.Collector.ArchiveBucket).Str("prefix", cfg.Collector.ArchivePrefix).Msg("archive enabled")
	} else {
		log.Info().Msg("archive disabled (ARCHIVE_BUCKET not set)")
	}

	// ====================================================================
	// HTTP 서버
	// ====================================================================
	h := collector.NewHandler(cfg.Collector, schema.Default(), sink, m)
	srv := &http.Server{
		Addr:         cfg.Collector.HTTPAddr,
		Handler:      collector.NewMux(h),
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ====================================================================
	// Graceful Shutdown
	// ====================================================================
	// SIGTERM 수신 시 HTTP 서버를 먼저 멈추고 아카이브를 비운다.
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		if arc != nil {
			log.Info().Msg("flushing archive...")
			arc.Shutdown(ctx)
		}
	}()

	log.Info().Str("addr", cfg.Collector.HTTPAddr).Msg("collector listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server terminated")
	}

	<-idle
	log.Info().Str("metrics", m.String()).Msg("shutdown complete")
}
