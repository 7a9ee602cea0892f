package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"usagestats/internal/model"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// maxLine 은 JSONL 한 줄의 최대 크기.
const maxLine = 1 << 20

// readMessages 는 JSONL 메시지를 읽는다. "-" 는 stdin.
// gzip 매직 바이트로 시작하면 압축을 해제한다 (아카이브 객체를 그대로 넣을 수 있다).
func readMessages(path string, stdin io.Reader) ([]model.Message, error) {
	var src io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		src = f
	}

	br := bufio.NewReader(src)
	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return scanMessages(zr)
	}
	return scanMessages(br)
}

func scanMessages(r io.Reader) ([]model.Message, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []model.Message
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var msg model.Message
		if err := json.Unmarshal(b, &msg); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, msg)
	}
	return out, sc.Err()
}
