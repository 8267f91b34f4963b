// +build js

package transport

import "strings"

// Browsers don't say much about why a fetch failed; each engine has
// its own message for "couldn't reach the server".
var fetchFailures = []string{
	"Failed to fetch", // Chromium
	"Load failed",     // WebKit
}

func platformUnreachable(err error) bool {
	msg := err.Error()
	for _, f := range fetchFailures {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
