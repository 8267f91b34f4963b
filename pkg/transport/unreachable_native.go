// +build !js

package transport

import (
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// platformUnreachable recognises failures to resolve or connect:
// anything that went wrong before a connection existed.
func platformUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}
