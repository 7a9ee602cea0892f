package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"usagestats/internal/metrics"
	"usagestats/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPutter 는 업로드된 객체를 메모리에 보관한다. failures 만큼 먼저 실패한다.
type memPutter struct {
	mu       sync.Mutex
	objects  map[string][]byte
	calls    int
	failures int
}

func newMemPutter() *memPutter { return &memPutter{objects: make(map[string][]byte)} }

func (p *memPutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return nil, errors.New("slow down")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	p.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (p *memPutter) snapshot() map[string][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]byte, len(p.objects))
	for k, v := range p.objects {
		out[k] = v
	}
	return out
}

func decode(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var out []map[string]any
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func msg(event string) model.Message {
	return model.Message{"event": event, "event_payload": map[string]any{}}
}

var fixedNow = func() time.Time { return time.Date(2021, 3, 4, 23, 15, 0, 0, time.UTC) }

func newArchive(p ObjectPutter, cfg Config, m *metrics.Metrics) *Archive {
	u := NewUploader(p, "bucket", time.Second, 2, m)
	u.backoff = time.Millisecond
	return New(cfg, u, NewKeyer("usage", "test", fixedNow), m)
}

func TestEncodeJSONLGZ(t *testing.T) {
	data, err := EncodeJSONLGZ([]model.Message{msg("a"), msg("b")})
	require.NoError(t, err)

	lines := decode(t, data)
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0]["event"])
	assert.Equal(t, "b", lines[1]["event"])
}

func TestEncodeJSONLGZ_Unencodable(t *testing.T) {
	_, err := EncodeJSONLGZ([]model.Message{{"bad": make(chan int)}})
	assert.Error(t, err)
}

func TestKeyer(t *testing.T) {
	k := NewKeyer("usage", "node1", fixedNow)
	assert.Equal(t, "usage/dt=2021-03-04/hr=23/1614899700_node1_000001.jsonl.gz", k.Next())
	assert.Equal(t, "usage/dt=2021-03-04/hr=23/1614899700_node1_000002.jsonl.gz", k.Next())
}

func TestArchive_BatchesBySize(t *testing.T) {
	p := newMemPutter()
	m := metrics.New()
	a := newArchive(p, Config{QueueSize: 16, UploadQueue: 4, BatchSize: 2, FlushInterval: time.Hour}, m)
	a.Start()

	for _, e := range []string{"a", "b", "c"} {
		require.True(t, a.Submit(msg(e)))
	}
	a.Shutdown(context.Background())

	objects := p.snapshot()
	require.Len(t, objects, 2, "two full-or-final batches")
	total := 0
	for key, data := range objects {
		assert.Contains(t, key, "usage/dt=2021-03-04/hr=23/")
		total += len(decode(t, data))
	}
	assert.Equal(t, 3, total)
	assert.EqualValues(t, 3, m.S3EventsStoredTotal)
}

func TestArchive_FlushInterval(t *testing.T) {
	p := newMemPutter()
	a := newArchive(p, Config{QueueSize: 16, UploadQueue: 4, BatchSize: 100, FlushInterval: 20 * time.Millisecond}, nil)
	a.Start()
	defer a.Shutdown(context.Background())

	require.True(t, a.Submit(msg("a")))
	assert.Eventually(t, func() bool { return len(p.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestArchive_RetriesThenDrops(t *testing.T) {
	p := newMemPutter()
	p.failures = 1
	m := metrics.New()
	a := newArchive(p, Config{QueueSize: 4, UploadQueue: 4, BatchSize: 1, FlushInterval: time.Hour}, m)
	a.Start()

	require.True(t, a.Submit(msg("retried")))
	a.Shutdown(context.Background())
	assert.Len(t, p.snapshot(), 1, "second attempt succeeds")
	assert.EqualValues(t, 1, m.S3PutErrorsTotal)

	p2 := newMemPutter()
	p2.failures = 10
	m2 := metrics.New()
	a2 := newArchive(p2, Config{QueueSize: 4, UploadQueue: 4, BatchSize: 1, FlushInterval: time.Hour}, m2)
	a2.Start()
	require.True(t, a2.Submit(msg("lost")))
	a2.Shutdown(context.Background())

	assert.Empty(t, p2.snapshot())
	assert.EqualValues(t, 2, m2.S3PutErrorsTotal)
	assert.EqualValues(t, 1, m2.ArchiveEventsDroppedTotal)
}

func TestArchive_SubmitAfterShutdown(t *testing.T) {
	a := newArchive(newMemPutter(), Config{QueueSize: 1, UploadQueue: 1, BatchSize: 1, FlushInterval: time.Hour}, nil)
	a.Start()
	a.Shutdown(context.Background())
	a.Shutdown(context.Background())
	assert.False(t, a.Submit(msg("late")))
}

func TestArchive_SubmitDropsWhenFull(t *testing.T) {
	// Start 하지 않으면 아무도 큐를 비우지 않는다
	a := newArchive(newMemPutter(), Config{QueueSize: 2, UploadQueue: 1, BatchSize: 10, FlushInterval: time.Hour}, nil)
	assert.True(t, a.Submit(msg("a")))
	assert.True(t, a.Submit(msg("b")))
	assert.False(t, a.Submit(msg("c")))
}
