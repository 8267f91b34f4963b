package rpc

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/bifrostrpc/bifrost/pkg/transport"
)

// noErrorText stands in for an error body that couldn't be read.
const noErrorText = "<no error text>"

// Classify turns what the transport produced for a call to method
// into an Outcome. The rules are applied in order: transport errors,
// 401, any other non-200 status, a body that isn't JSON, and a body
// the converter rejects. It closes the response body.
func Classify(method string, resp *http.Response, err error, conv Converter) Outcome {
	if err != nil {
		if transport.IsUnreachable(err) {
			return NewFailure(Outage, err.Error())
		}
		return NewFailure(Broken, "System error: "+err.Error())
	}
	if resp == nil {
		return NewFailure(Broken, "System error: transport returned no response")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return NewFailure(Unauthorized, "HTTP 401 Unauthorized: "+errorText(resp))
	default:
		return NewFailure(Broken, fmt.Sprintf("%d %s: %s", resp.StatusCode, statusText(resp), errorText(resp)))
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return NewFailure(Broken, "System error: "+err.Error())
	}
	parsed, err := parseBody(body)
	if err != nil {
		return NewFailure(Broken, "Response was not valid JSON: "+err.Error())
	}
	result, err := convert(conv, parsed)
	if err != nil {
		return NewFailure(Broken, fmt.Sprintf("Response data from %s was invalid: %s", method, err))
	}
	return NewSuccess(result)
}

// errorText is the body of an error response, verbatim apart from
// trailing newlines.
func errorText(resp *http.Response) string {
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return noErrorText
	}
	return strings.TrimRight(string(body), "\r\n")
}

// statusText is the reason phrase the server sent, or the standard
// one for the code if it sent none.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}
