package transport

import (
	"strings"

	"github.com/pkg/errors"
)

// NetworkError is the message the browser Fetch API rejects with
// when the server can't be reached at all.
const NetworkError = "NetworkError when attempting to fetch resource."

const (
	curlCouldntResolveHost = 6
	curlCouldntConnect     = 7
)

// IsUnreachable says whether err means the request never reached a
// server, as opposed to any other failure of the transport. It is
// what separates an outage from a broken call.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), NetworkError) {
		return true
	}
	var curlErr *CurlError
	if errors.As(err, &curlErr) {
		return curlErr.ExitCode == curlCouldntResolveHost || curlErr.ExitCode == curlCouldntConnect
	}
	return platformUnreachable(err)
}
