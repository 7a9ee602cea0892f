package archive

import (
	"bytes"

	"usagestats/internal/model"
	"usagestats/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// EncodeJSONLGZ 는 메시지 배치를 JSONL (한 줄에 메시지 하나) 로 직렬화한 뒤 gzip 압축한다.
//
// pool 버퍼를 쓰므로 결과는 호출자 소유의 새 slice 로 복사해 반환한다.
func EncodeJSONLGZ(msgs []model.Message) ([]byte, error) {
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer pool.PutBuffer(buf)

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)
	defer pool.GzipPool.Put(gz)

	enc := json.NewEncoder(gz)
	for _, msg := range msgs {
		if err := enc.Encode(msg); err != nil {
			_ = gz.Close()
			return nil, err
		}
	}

	// Close 시 gzip footer 가 기록된다
	if err := gz.Close(); err != nil {
		return nil, err
	}

	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return data, nil
}
