package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

// securityMetrics counts throttled and flagged requests.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
}

// privateNetworks are the networks whose forwarding headers are
// believed. Anything arriving from elsewhere is judged by its socket
// address alone.
var privateNetworks = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad proxy CIDR %s: %v", cidr, err))
		}
		nets = append(nets, network)
	}
	return nets
}()

func fromPrivateNetwork(ip net.IP) bool {
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP resolves the client address for logging and rate
// limiting. Forwarding headers are honored only when the direct peer is
// a private-network proxy; a spoofed header from the open internet
// cannot reset someone else's rate limit window.
func extractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !fromPrivateNetwork(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	return directIP
}

// scanSignatures are path and query fragments that show up in
// vulnerability scans far more often than in dashboard traffic. The
// dashboard has no admin surface, no PHP and no file parameters, so any
// of these is somebody poking around.
var scanSignatures = []string{
	"../", "..\\", "etc/passwd", "cmd.exe",
	".env", ".git", ".ssh",
	"wp-admin", "phpmyadmin", "admin.php", "config.php",
	"union select", "<script", "javascript:", "eval(",
	"base64", "0x",
}

// scannerAgents flag automated clients. Plain curl and wget land here
// too; the dashboard is browser-facing and its API is same-origin.
var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb",
	"curl", "wget", "python-requests", "scanner",
	"bot", "crawler", "spider", "scraper",
}

// detectSuspiciousRequest flags requests that look like automated scans.
// Flagged requests are logged and counted, not blocked; the rate limiter
// is what actually slows an aggressive client down.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) bool {
	suspicious := false

	target := strings.ToLower(r.URL.Path) + "?" + strings.ToLower(r.URL.RawQuery)
	for _, sig := range scanSignatures {
		if strings.Contains(target, sig) {
			suspicious = true
			break
		}
	}

	if !suspicious {
		userAgent := strings.ToLower(r.Header.Get("User-Agent"))
		for _, agent := range scannerAgents {
			if strings.Contains(userAgent, agent) {
				suspicious = true
				break
			}
		}
	}

	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		suspicious = true
	}

	if len(r.URL.String()) > 2048 {
		suspicious = true
	}

	// Both forwarding headers plus a long proxy chain is a header
	// stuffing attempt, not a real deployment.
	if r.Header.Get("X-Forwarded-For") != "" && r.Header.Get("X-Real-IP") != "" {
		if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
			suspicious = true
		}
	}

	if suspicious && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}
	return suspicious
}
