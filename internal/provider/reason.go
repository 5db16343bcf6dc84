package provider

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// classifyError maps a failed client call to an absence reason. Vendor
// status errors are detected by the adapter before calling this, so the
// chain here is timeout, then network, then parse.
func classifyError(err error) AbsentReason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetworkError
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return ReasonNetworkError
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return ReasonNetworkError
		}
	}

	return ReasonParseError
}
