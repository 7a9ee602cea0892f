package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// 수집기와 전송 hot path 의 메모리 재사용 풀.
//
//   - BodyPool: 요청 body 읽기 버퍼, 압축된 전송 body
//   - BufferPool: 아카이브 배치 gzip 결과 버퍼
//   - GzipPool: gzip.Writer 재사용
// ---------------------------------------------------------------

var (
	// BodyPool 초기 용량 4KB. 사용 통계 메시지는 대부분 여기에 들어간다.
	BodyPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 4*1024))
		},
	}

	// BufferPool 초기 용량 256KB. 1MB 초과 버퍼는 풀에 넣지 않는다.
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 256*1024))
		},
	}

	// GzipPool 은 BestSpeed 압축기를 재사용한다.
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// MaxBufferCap 보다 큰 버퍼는 풀에 반환하지 않고 GC 에 맡긴다.
const MaxBufferCap = 1 * 1024 * 1024 // 1MB

// PutBody 는 maxCap 이하인 body 버퍼만 풀에 되돌린다.
func PutBody(buf *bytes.Buffer, maxCap int64) {
	if int64(buf.Cap()) <= maxCap {
		buf.Reset()
		BodyPool.Put(buf)
	}
}

// PutBuffer 는 MaxBufferCap 이하인 gzip 결과 버퍼만 풀에 되돌린다.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
