// Package usage is the host-facing facade: build, wrap, validate and dispatch
// usage-statistics events without ever failing the host.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"usagestats/internal/anonymizer"
	"usagestats/internal/config"
	"usagestats/internal/delivery"
	"usagestats/internal/envelope"
	"usagestats/internal/metrics"
	"usagestats/internal/model"
	"usagestats/internal/payload"
	"usagestats/internal/schema"
	"usagestats/internal/transport"

	"github.com/rs/zerolog/log"
)

// shutdownGrace 는 Close 가 남은 메시지를 보내기 위해 기다리는 최대 시간.
const shutdownGrace = 2 * time.Second

// Deps 는 Emitter 의 교체 가능한 협력자.
// 비어 있는 필드는 기본 구현으로 채운다.
type Deps struct {
	Transport transport.Transport
	Metrics   *metrics.Metrics
	Validator *schema.Validator
	Clock     func() time.Time
	Kinds     []anonymizer.Option
}

// Report 는 동기 전송(Deliver) 한 번의 관측 결과.
type Report struct {
	Validation schema.Result
	Outcome    delivery.Outcome
	Sent       bool
}

// Emitter
// ------------------------------------------------------------
// 호스트 애플리케이션이 사용하는 유일한 진입점.
//
//	build (payload.Builder) → wrap (envelope.Factory)
//	  → validate (schema.Validator) → dispatch (delivery.Dispatcher)
//
// 어떤 실패도 호스트에 전파하지 않는다. 실패는 metrics 와 로그로만 남는다.
// 비활성 상태에서는 모든 호출이 no-op 이다.
type Emitter struct {
	enabled bool

	builder    *payload.Builder
	factory    *envelope.Factory
	validator  *schema.Validator
	client     *delivery.Client
	dispatcher *delivery.Dispatcher
	metrics    *metrics.Metrics

	closeOnce sync.Once
}

// NewEmitter 는 설정으로 Emitter 를 만든다.
// 비활성 설정이면 협력자를 만들지 않고 no-op Emitter 를 반환한다.
func NewEmitter(cfg config.UsageConfig, deps Deps) (*Emitter, error) {
	if !cfg.Enabled {
		return &Emitter{}, nil
	}

	reg, err := anonymizer.New(cfg.Salt, deps.Kinds...)
	if err != nil {
		return nil, fmt.Errorf("usage: %w", err)
	}

	if deps.Transport == nil {
		deps.Transport = transport.NewHTTP(transport.WithGzip(cfg.Compress))
	}
	if deps.Validator == nil {
		deps.Validator = schema.Default()
		if len(deps.Kinds) > 0 {
			// 확장 kind 도 parent_class 로 통과해야 한다
			deps.Validator = schema.New(schema.TableFor(reg))
		}
	}
	var envOpts []envelope.Option
	if deps.Clock != nil {
		envOpts = append(envOpts, envelope.WithClock(deps.Clock))
	}

	identity := model.Identity{
		DataContextID:         cfg.DataContextID,
		DataContextInstanceID: cfg.DataContextInstanceID,
	}
	client := delivery.NewClient(cfg.URL, cfg.SendTimeout, deps.Transport, deps.Metrics)

	return &Emitter{
		enabled:    true,
		builder:    payload.NewBuilder(reg, cfg.GEVersion, payload.WithVocabulary(deps.Validator)),
		factory:    envelope.NewFactory(identity, cfg.GEVersion, envOpts...),
		validator:  deps.Validator,
		client:     client,
		dispatcher: delivery.NewDispatcher(client, cfg.Workers, cfg.Queue, deps.Metrics),
		metrics:    deps.Metrics,
	}, nil
}

// Enabled 는 emission 이 켜져 있는지 반환한다.
func (e *Emitter) Enabled() bool { return e != nil && e.enabled }

// Emit
//
// 이벤트 하나를 비동기로 보낸다. 호스트 스레드를 막지 않으며 에러를 반환하지 않는다.
//   - payload 를 만들 수 없으면 아무것도 보내지 않는다
//   - 로컬 검증에서 거절되면 보내지 않는다
//   - 큐가 가득 차면 버린다
func (e *Emitter) Emit(ctx context.Context, name string, success bool, snap payload.Snapshot) {
	if !e.Enabled() {
		return
	}
	defer e.recoverPanic(name)

	if ctx.Err() != nil {
		return
	}
	e.metrics.Inc(metrics.EventsEmitted)

	msg, ok := e.assemble(model.EventName(name), success, snap)
	if !ok {
		return
	}
	if !e.check(msg) {
		return
	}
	e.dispatcher.Dispatch(msg)
}

// EmitMessage 는 이미 조립된 메시지를 검증 후 비동기로 보낸다.
// 호출자의 메시지는 변경하지 않는다.
func (e *Emitter) EmitMessage(ctx context.Context, msg model.Message) {
	if !e.Enabled() {
		return
	}
	defer e.recoverPanic(string(msg.Event()))

	if ctx.Err() != nil {
		return
	}
	e.metrics.Inc(metrics.EventsEmitted)

	msg = msg.Clone()
	if !e.check(msg) {
		return
	}
	e.dispatcher.Dispatch(msg)
}

// Deliver
//
// 메시지를 검증하고 현재 goroutine 에서 한 번 전송한다 (timeout 으로 제한).
// 검증에 실패하면 transport 를 호출하지 않는다. replay 도구와 테스트용.
func (e *Emitter) Deliver(ctx context.Context, msg model.Message) (rep Report) {
	if !e.Enabled() {
		return Report{}
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("usage deliver panic")
			rep.Outcome = delivery.Outcome{Kind: delivery.Unreachable, Err: fmt.Errorf("usage: panic: %v", r)}
		}
	}()
	e.metrics.Inc(metrics.EventsEmitted)

	msg = msg.Clone()
	rep.Validation = e.validator.Validate(msg)
	if !rep.Validation.Valid {
		e.rejected(msg, rep.Validation)
		return rep
	}
	rep.Sent = true
	rep.Outcome = e.client.Send(ctx, msg)
	return rep
}

// Build 는 전송 없이 이벤트를 조립하고 검증 결과를 돌려준다 (dry-run).
func (e *Emitter) Build(name string, success bool, snap payload.Snapshot) (model.Message, schema.Result, error) {
	if !e.Enabled() {
		return nil, schema.Result{}, ErrDisabled
	}
	p, err := e.builder.Build(model.EventName(name), snap)
	if err != nil {
		return nil, schema.Result{}, err
	}
	msg := e.factory.Wrap(model.EventName(name), p, success).Message()
	return msg, e.validator.Validate(msg), nil
}

// ErrDisabled 는 비활성 Emitter 에서 Build 를 호출했을 때 반환된다.
var ErrDisabled = errors.New("usage: statistics disabled")

// Close 는 남은 메시지를 잠시 동안 보내고 전송 goroutine 을 정리한다.
// 반환 후 Emit 은 메시지를 버린다.
func (e *Emitter) Close(ctx context.Context) error {
	if !e.Enabled() {
		return nil
	}
	var err error
	e.closeOnce.Do(func() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, shutdownGrace)
			defer cancel()
		}
		err = e.dispatcher.Shutdown(ctx)
	})
	return err
}

func (e *Emitter) assemble(name model.EventName, success bool, snap payload.Snapshot) (model.Message, bool) {
	p, err := e.builder.Build(name, snap)
	if err != nil {
		e.metrics.Inc(metrics.BuildErrors)
		ev := log.Debug()
		if errors.Is(err, payload.ErrUnknownEvent) {
			ev = log.Warn()
		}
		ev.Str("event", string(name)).Err(err).Msg("usage payload not built")
		return nil, false
	}
	return e.factory.Wrap(name, p, success).Message(), true
}

func (e *Emitter) check(msg model.Message) bool {
	res := e.validator.Validate(msg)
	if !res.Valid {
		e.rejected(msg, res)
		return false
	}
	log.Debug().Str("event", string(msg.Event())).Str("revision", res.Revision).Msg("usage event accepted")
	return true
}

func (e *Emitter) rejected(msg model.Message, res schema.Result) {
	e.metrics.Inc(metrics.ValidationRejected)
	// payload 내용은 로그에 남기지 않는다 (경로와 규칙만)
	log.Warn().
		Str("event", string(msg.Event())).
		Strs("violations", res.Paths()).
		Msg("usage event failed local validation")
}

func (e *Emitter) recoverPanic(name string) {
	if r := recover(); r != nil {
		log.Error().Str("event", name).Interface("panic", r).Msg("usage emit panic")
	}
}
