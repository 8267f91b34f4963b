package transport

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bifrostrpc/bifrost/pkg/session"
)

// statusTrailer separates the body curl prints from the status code
// it writes after it.
const statusTrailer = "\n__bifrost_status__:"

// CurlError is a failed curl invocation.
type CurlError struct {
	ExitCode int
	Stderr   string
}

func (e *CurlError) Error() string {
	// --show-error messages already start with "curl: "
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	return "curl: exit status " + strconv.Itoa(e.ExitCode)
}

// Curl delivers requests by running the curl binary. With a cookie
// file, curl reads the session from it and writes it back; the file's
// lock is held for the whole invocation so concurrent calls don't
// overwrite each other's cookies.
type Curl struct {
	binary  string
	cookies *session.File
}

// NewCurl returns a curl binding. binary defaults to "curl" on the
// PATH; cookies may be nil for stateless calls.
func NewCurl(binary string, cookies *session.File) *Curl {
	if binary == "" {
		binary = "curl"
	}
	return &Curl{binary: binary, cookies: cookies}
}

func (c *Curl) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = ioutil.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, errors.Wrap(err, "reading request body")
		}
	}

	if c.cookies == nil {
		return c.run(req, body, "")
	}
	var resp *http.Response
	err := c.cookies.WithLock(func(path string) error {
		var err error
		resp, err = c.run(req, body, path)
		return err
	})
	return resp, err
}

func (c *Curl) args(req *http.Request, headerFile, cookieFile string) []string {
	args := []string{
		"--silent", "--show-error",
		"--request", req.Method,
		"--data-binary", "@-",
		"--output", "-",
		"--write-out", statusTrailer + "%{http_code}",
	}
	if headerFile != "" {
		args = append(args, "--header", "@"+headerFile)
	}
	if cookieFile != "" {
		args = append(args, "--cookie", cookieFile, "--cookie-jar", cookieFile)
	}
	return append(args, "--url", req.URL.String())
}

// writeHeaders puts the request headers in a file only this user can
// read, so credentials don't show up in the process list. It returns
// "" if there are no headers.
func writeHeaders(h http.Header) (string, error) {
	if len(h) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		for _, v := range h[k] {
			buf.WriteString(k + ": " + v + "\n")
		}
	}

	f, err := ioutil.TempFile("", "bifrost-curl-headers")
	if err != nil {
		return "", errors.Wrap(err, "writing curl headers")
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.Wrap(err, "writing curl headers")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(err, "writing curl headers")
	}
	return f.Name(), nil
}

func (c *Curl) run(req *http.Request, body []byte, cookieFile string) (*http.Response, error) {
	headerFile, err := writeHeaders(req.Header)
	if err != nil {
		return nil, err
	}
	if headerFile != "" {
		defer os.Remove(headerFile)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(req.Context(), c.binary, c.args(req, headerFile, cookieFile)...)
	cmd.Stdin = bytes.NewReader(body)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, &CurlError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, errors.Wrapf(err, "running %s", c.binary)
	}

	out := stdout.Bytes()
	i := bytes.LastIndex(out, []byte(statusTrailer))
	if i < 0 {
		return nil, errors.New("curl output has no status code")
	}
	code, err := strconv.Atoi(string(out[i+len(statusTrailer):]))
	if err != nil {
		return nil, errors.Wrap(err, "parsing curl status code")
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{},
		Body:          ioutil.NopCloser(bytes.NewReader(out[:i])),
		ContentLength: int64(i),
		Request:       req,
	}, nil
}
