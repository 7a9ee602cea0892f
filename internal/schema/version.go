package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Version 은 ge_version 의 앞쪽 숫자 구성요소 (major, minor, patch).
//
// 도구 버전 문자열은 semver 가 아니다:
//
//	0.13.18.manual_testing
//	0.11.9+25.g3ca555c.dirty
//
// 따라서 선행 숫자 구성요소만 읽고 나머지(local/dev 접미사)는 무시한다.
type Version [3]int

// V 는 테이블 선언용 생성자.
func V(major, minor, patch int) Version { return Version{major, minor, patch} }

// ParseVersion 은 선행 숫자 구성요소를 파싱한다.
// 숫자 구성요소가 하나도 없으면 false.
func ParseVersion(s string) (Version, bool) {
	var v Version
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	n := 0
	for _, part := range strings.Split(s, ".") {
		if n == len(v) {
			break
		}
		digits := leadingDigits(part)
		if digits == "" {
			break
		}
		x, err := strconv.Atoi(digits)
		if err != nil {
			break
		}
		v[n] = x
		n++
		if len(digits) != len(part) {
			// "9rc1" 처럼 숫자 뒤에 접미사가 붙은 구성요소 → 여기서 종료
			break
		}
	}
	return v, n > 0
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// Less 는 v < o 인지 비교한다.
func (v Version) Less(o Version) bool {
	for i := range v {
		if v[i] != o[i] {
			return v[i] < o[i]
		}
	}
	return false
}

// AtLeast 는 v >= o.
func (v Version) AtLeast(o Version) bool { return !v.Less(o) }

func (v Version) IsZero() bool { return v == Version{} }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}
