// Package archive batches accepted usage messages into gzip JSONL objects on S3.
package archive

import (
	"context"
	"sync"
	"time"

	"usagestats/internal/metrics"
	"usagestats/internal/model"

	"github.com/rs/zerolog/log"
)

// Config 는 아카이브 파이프라인 파라미터.
type Config struct {
	QueueSize     int           // 수락 메시지 큐 크기
	UploadQueue   int           // 업로드 배치 큐 크기
	BatchSize     int           // N개 모이면 flush
	FlushInterval time.Duration // 시간 기반 flush
}

// Archive
// ------------------------------------------------------------
// 수집기가 수락한 메시지를 모아서(batch)
//   - gzip + JSONL 로 인코딩
//   - S3 업로드 (재시도 후에도 실패하면 버림, 로컬 DLQ 없음)
//
// 하는 파이프라인.
//
//   - queue: 수집기 → Archive 로 메시지 전달 (Submit, drop-on-full)
//   - collectLoop: BatchSize 또는 FlushInterval 마다 배치를 uploadCh 로 전달
//   - uploadLoop: 인코딩 + 업로드
//
// Shutdown 은 남은 배치를 모두 처리한 뒤 반환한다.
type Archive struct {
	cfg      Config
	uploader *Uploader
	keys     *Keyer
	metrics  *metrics.Metrics

	queue    chan model.Message
	uploadCh chan model.ArchiveJob

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(cfg Config, u *Uploader, keys *Keyer, m *metrics.Metrics) *Archive {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Archive{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		uploader: u,
		keys:     keys,
		metrics:  m,
		queue:    make(chan model.Message, max(cfg.QueueSize, 1)),
		uploadCh: make(chan model.ArchiveJob, max(cfg.UploadQueue, 1)),
	}
}

// Start 는 collectLoop / uploadLoop 를 실행한다.
func (a *Archive) Start() {
	a.wg.Add(2)
	go a.collectLoop()
	go a.uploadLoop()
}

// Submit 은 메시지를 큐에 넣는다. 가득 찼거나 종료 중이면 false. 블록하지 않는다.
func (a *Archive) Submit(msg model.Message) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false
	}
	select {
	case a.queue <- msg:
		return true
	default:
		return false
	}
}

// Shutdown 은 큐를 닫고 남은 배치 업로드가 끝날 때까지 기다린다.
// ctx 가 먼저 끝나면 진행 중인 업로드를 취소한다.
func (a *Archive) Shutdown(ctx context.Context) {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.cancel()
		<-done
		log.Warn().Msg("archive shutdown deadline exceeded, pending batches abandoned")
	}
	a.cancel()
}

// collectLoop 는 queue 에서 메시지를 읽어 배치로 묶는다.
// flush 는 항상 새 slice 로 교체한다 (업로드 중인 배치 재사용 금지).
func (a *Archive) collectLoop() {
	defer a.wg.Done()
	defer close(a.uploadCh)

	batch := make([]model.Message, 0, a.cfg.BatchSize)
	timer := time.NewTimer(a.cfg.FlushInterval)
	defer timer.Stop()

	flush := func() {
		if len(batch) > 0 {
			a.uploadCh <- model.ArchiveJob{Messages: batch}
			batch = make([]model.Message, 0, a.cfg.BatchSize)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(a.cfg.FlushInterval)
	}

	for {
		select {
		case msg, ok := <-a.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, msg)
			if len(batch) >= a.cfg.BatchSize {
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}

// uploadLoop 는 uploadCh 가 닫힐 때까지 배치를 업로드한다.
func (a *Archive) uploadLoop() {
	defer a.wg.Done()
	for job := range a.uploadCh {
		a.process(a.ctx, job)
	}
	log.Info().Msg("archive uploader exiting")
}

// process 는 배치 하나를 인코딩하고 업로드한다. 실패한 배치는 버린다.
func (a *Archive) process(ctx context.Context, job model.ArchiveJob) {
	n := int64(len(job.Messages))
	if n == 0 {
		return
	}

	data, err := EncodeJSONLGZ(job.Messages)
	if err != nil {
		a.metrics.Add(metrics.ArchiveEventsDropped, n)
		log.Error().Err(err).Int64("messages", n).Msg("archive encode failed, batch dropped")
		return
	}

	key := a.keys.Next()
	if err := a.uploader.Upload(ctx, key, data); err != nil {
		a.metrics.Add(metrics.ArchiveEventsDropped, n)
		log.Error().Err(err).Str("key", key).Int64("messages", n).Msg("archive upload failed, batch dropped")
		return
	}
	a.metrics.Add(metrics.S3EventsStored, n)
	log.Debug().Str("key", key).Int64("messages", n).Int("bytes", len(data)).Msg("archive batch stored")
}
