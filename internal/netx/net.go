// Package netx classifies low level network failures so transports can
// translate them into retryable remote store errors.
package netx

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsTransient reports whether err looks like a connectivity problem that
// a later attempt may not hit: refused or reset connections, timeouts,
// DNS failures and unexpected EOFs.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
