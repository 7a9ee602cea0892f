package archive

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Keyer
// ------------------------------------------------------------
// 아카이브 객체 key 생성기.
//
//	<prefix>/dt=<YYYY-MM-DD>/hr=<HH>/<unix>_<instance>_<counter>.jsonl.gz
//
// 파티션은 UTC 기준 (event_time 과 같은 기준).
// 파일명은 정렬하면 곧 시간 순이다.
// counter 는 1e6 에서 0 으로 돌아간다. timestamp + instance 조합으로 충돌은 사실상 없다.
type Keyer struct {
	prefix   string
	instance string
	now      func() time.Time
	counter  atomic.Uint64
}

func NewKeyer(prefix, instance string, now func() time.Time) *Keyer {
	if now == nil {
		now = time.Now
	}
	return &Keyer{prefix: prefix, instance: instance, now: now}
}

// Next 는 새 객체 key 를 만든다.
func (k *Keyer) Next() string {
	t := k.now().UTC()
	c := k.counter.Add(1) % 1_000_000
	name := fmt.Sprintf("%d_%s_%06d.jsonl.gz", t.Unix(), k.instance, c)
	return fmt.Sprintf("%s/dt=%s/hr=%s/%s", k.prefix, t.Format("2006-01-02"), t.Format("15"), name)
}
