package usage

import (
	"context"
	"sync/atomic"

	"usagestats/internal/model"
	"usagestats/internal/payload"
)

// Span
//
// .begin / .end 쌍으로 보고되는 작업 하나.
// Begin 에서 .begin 을 보내고, End 또는 Cancel 중 먼저 호출된 쪽이
// .end 를 정확히 한 번 보낸다.
type Span struct {
	e    *Emitter
	ctx  context.Context
	name model.EventName
	snap payload.Snapshot
	done atomic.Bool
}

// Begin 은 name.begin 을 보내고 Span 을 반환한다.
// name 은 접미사 없는 기본 이름 (예: "cli.checkpoint.new").
func (e *Emitter) Begin(ctx context.Context, name string, snap payload.Snapshot) *Span {
	base := model.EventName(name).Base()
	snap.Cancelled = false
	e.Emit(ctx, string(base.Begin()), true, snap)
	return &Span{e: e, ctx: ctx, name: base, snap: snap}
}

// End 는 작업 결과와 함께 name.end 를 보낸다.
func (s *Span) End(success bool) {
	s.finish(success, false)
}

// Cancel 은 사용자가 중단한 작업으로 name.end 를 보낸다 (cancelled: true).
func (s *Span) Cancel() {
	s.finish(false, true)
}

func (s *Span) finish(success, cancelled bool) {
	if s == nil || !s.done.CompareAndSwap(false, true) {
		return
	}
	snap := s.snap
	snap.Cancelled = cancelled
	// Begin 의 ctx 가 이미 끝났더라도 .end 는 보낸다
	s.e.Emit(context.WithoutCancel(s.ctx), string(s.name.End()), success, snap)
}
