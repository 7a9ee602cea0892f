package delivery

import (
	"context"
	"sync"

	"usagestats/internal/metrics"
	"usagestats/internal/model"

	"github.com/rs/zerolog/log"
)

// Sender 는 메시지 하나를 전송한다 (*Client 가 만족).
type Sender interface {
	Send(ctx context.Context, msg model.Message) Outcome
}

// Dispatcher
// ------------------------------------------------------------
// 호스트 스레드를 막지 않고 메시지를 전송하기 위한 비동기 파이프라인.
//
//   - queue: Dispatch → worker 로 메시지 전달 (bounded)
//   - workers: queue 에서 꺼내 Sender.Send 를 한 번씩 호출
//
// queue 가 가득 차면 메시지를 버린다 (at-most-once, backpressure 없음).
// Shutdown 은 남은 메시지를 ctx 가 허락하는 만큼만 보내고 돌아온다.
type Dispatcher struct {
	sender  Sender
	metrics *metrics.Metrics

	queue chan model.Message

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex // closed 와 queue close 보호
	closed bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDispatcher 는 workers 개의 전송 goroutine 을 바로 시작한다.
func NewDispatcher(s Sender, workers, queueSize int, m *metrics.Metrics) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		sender:  s,
		metrics: m,
		queue:   make(chan model.Message, queueSize),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.sendLoop()
	}
	return d
}

// Dispatch 는 메시지를 큐에 넣는다. 큐가 가득 찼거나 종료 중이면 false (메시지 버림).
// 절대 블록하지 않는다.
func (d *Dispatcher) Dispatch(msg model.Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.Inc(metrics.DispatchDropped)
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.metrics.Inc(metrics.DispatchDropped)
		log.Debug().Str("event", string(msg.Event())).Msg("usage queue full, message dropped")
		return false
	}
}

// Shutdown
//
// 새 메시지 수신을 멈추고 남은 큐를 비운다.
// ctx 가 먼저 끝나면 진행 중인 전송을 취소하고 ctx.Err() 를 반환한다.
// 여러 번 호출해도 안전하다.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

// sendLoop 는 queue 가 닫힐 때까지 메시지를 하나씩 전송한다.
// 취소된 뒤 남은 메시지는 전송하지 않고 버린다.
func (d *Dispatcher) sendLoop() {
	defer d.wg.Done()

	for msg := range d.queue {
		if d.ctx.Err() != nil {
			d.metrics.Inc(metrics.DispatchDropped)
			continue
		}
		d.sender.Send(d.ctx, msg)
	}
}
