package rpc

import (
	"errors"
	"io"
	"io/ioutil"
	"strings"
)

func stringBody(s string) io.ReadCloser {
	return ioutil.NopCloser(strings.NewReader(s))
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func (failingBody) Close() error { return nil }
