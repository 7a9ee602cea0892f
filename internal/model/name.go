package model

import "strings"

// EventName 은 점(.)으로 구분된 이벤트 이름.
// 예: cli.checkpoint.new, cli.checkpoint.new.begin, cli.checkpoint.new.end
type EventName string

const (
	suffixBegin = ".begin"
	suffixEnd   = ".end"
)

func (n EventName) String() string { return string(n) }

// IsBegin / IsEnd 는 장시간 작업을 감싸는 bracket 쌍 여부를 판단한다.
func (n EventName) IsBegin() bool { return strings.HasSuffix(string(n), suffixBegin) }
func (n EventName) IsEnd() bool   { return strings.HasSuffix(string(n), suffixEnd) }

// Base 는 .begin / .end 접미사를 제거한 family 이름을 반환한다.
func (n EventName) Base() EventName {
	s := string(n)
	s = strings.TrimSuffix(s, suffixBegin)
	s = strings.TrimSuffix(s, suffixEnd)
	return EventName(s)
}

func (n EventName) Begin() EventName { return n.Base() + suffixBegin }
func (n EventName) End() EventName   { return n.Base() + suffixEnd }
