package collector

import (
	"net"
	"net/http"
	"strings"
)

// maxForwardedFor 는 x-forwarded-for 주석의 최대 길이 (검증기 제한과 같다).
const maxForwardedFor = 1024

// forwardedFor
//
// 수락된 메시지에 붙일 x-forwarded-for 값.
//  1. X-Forwarded-For 헤더가 있으면 체인 그대로
//  2. 없으면 CloudFront-Viewer-Address / RemoteAddr 에서 찾은 public IP
//  3. 둘 다 없으면 "" (주석 생략)
func forwardedFor(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if len(xff) > maxForwardedFor {
			xff = xff[:maxForwardedFor]
		}
		return xff
	}
	return clientIP(r)
}

// isPublicIP 는 private / loopback / link-local 이 아니면 true.
func isPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsPrivate() {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	return true
}

func safeParseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// clientIP
//
// 프록시 뒤에서 실제 클라이언트 IP 를 추정한다.
// 우선순위:
//  1. X-Forwarded-For 의 첫 번째 public IP
//  2. CloudFront-Viewer-Address (포트 제거)
//  3. RemoteAddr
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := safeParseIP(part); isPublicIP(ip) {
				return ip.String()
			}
		}
	}

	// 예: "203.0.113.55:44321" 또는 "2404:6800:4004::200e:44321"
	if cf := r.Header.Get("CloudFront-Viewer-Address"); cf != "" {
		host := cf
		if i := strings.LastIndex(cf, ":"); i != -1 {
			host = cf[:i]
		}
		if ip := safeParseIP(host); isPublicIP(ip) {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if ip := safeParseIP(host); isPublicIP(ip) {
			return ip.String()
		}
	}
	return ""
}
