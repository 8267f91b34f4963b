// Shared main test code
package main

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/kit/log"

	"github.com/bifrostrpc/bifrost/pkg/demo"
	api "github.com/bifrostrpc/bifrost/pkg/http"
)

func demoServer() *httptest.Server {
	return httptest.NewServer(demo.NewHandler(demo.NewService(), api.NewAPIRouter(), log.NewNopLogger()))
}

// run executes bifrostctl with args, returning what it printed.
func run(t *testing.T, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd := newRoot().Command()
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func assertString(t *testing.T, s1, s2 string) {
	if s1 != s2 {
		t.Fatalf("Expected %q but got %q", s1, s2)
	}
}
