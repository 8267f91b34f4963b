package session

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

const (
	// maxLine is the longest line read from a cookie file.
	maxLine        = 1 << 20
	httpOnlyPrefix = "#HttpOnly_"
	fileHeader     = "# Netscape HTTP Cookie File\n# This file was generated by bifrost. Edit at your own risk.\n\n"
)

// File keeps cookies in a Netscape cookie file, the format curl reads
// with --cookie and writes with --cookie-jar. The file is the source
// of truth: it is read before every call and merged into after every
// call, so several clients (or curl) may share it.
type File struct {
	Path string

	mu  sync.Mutex
	now func() time.Time
}

func NewFile(path string) *File {
	return &File{Path: path, now: time.Now}
}

func (f *File) Cookies(u *url.URL) ([]*http.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return nil, err
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	now := f.now()
	for _, e := range entries {
		if e.expired(now) {
			continue
		}
		e.addTo(jar)
	}
	return jar.Cookies(u), nil
}

func (f *File) SetCookies(u *url.URL, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	now := f.now()
	for _, c := range cookies {
		e, ok := entryFor(u, c, now)
		if !ok {
			continue
		}
		entries = entries.put(e)
	}
	return f.save(entries.live(now))
}

// WithLock runs fn while holding the lock that guards the file, for
// callers (like the curl transport) that read and rewrite it
// themselves.
func (f *File) WithLock(fn func(path string) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f.Path)
}

func (f *File) load() (entries, error) {
	data, err := ioutil.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading cookie file %s", f.Path)
	}
	es, err := parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cookie file %s", f.Path)
	}
	return es, nil
}

func (f *File) save(es entries) error {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	for _, e := range es {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}

	tmp, err := ioutil.TempFile(filepath.Dir(f.Path), filepath.Base(f.Path)+".tmp")
	if err != nil {
		return errors.Wrapf(err, "writing cookie file %s", f.Path)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "writing cookie file %s", f.Path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "writing cookie file %s", f.Path)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "replacing cookie file %s", f.Path)
	}
	return nil
}

// entry is one line of a Netscape cookie file.
type entry struct {
	Domain            string // without the leading dot
	IncludeSubdomains bool
	Path              string
	Secure            bool
	HTTPOnly          bool
	Expires           int64 // unix seconds; 0 for a session cookie
	Name              string
	Value             string
}

func (e entry) String() string {
	domain := e.Domain
	if e.IncludeSubdomains {
		domain = "." + domain
	}
	if e.HTTPOnly {
		domain = httpOnlyPrefix + domain
	}
	return strings.Join([]string{
		domain,
		flag(e.IncludeSubdomains),
		e.Path,
		flag(e.Secure),
		strconv.FormatInt(e.Expires, 10),
		e.Name,
		e.Value,
	}, "\t")
}

func (e entry) expired(now time.Time) bool {
	return e.Expires != 0 && e.Expires <= now.Unix()
}

func (e entry) sameCookie(o entry) bool {
	return e.Domain == o.Domain && e.Path == o.Path && e.Name == o.Name
}

func (e entry) addTo(jar *cookiejar.Jar) {
	scheme := "http"
	if e.Secure {
		scheme = "https"
	}
	c := &http.Cookie{
		Name:     e.Name,
		Value:    e.Value,
		Path:     e.Path,
		Secure:   e.Secure,
		HttpOnly: e.HTTPOnly,
	}
	if e.IncludeSubdomains {
		c.Domain = e.Domain
	}
	// expiry was already checked against the store's clock
	jar.SetCookies(&url.URL{Scheme: scheme, Host: e.Domain, Path: e.Path}, []*http.Cookie{c})
}

type entries []entry

func (es entries) put(e entry) entries {
	for i := range es {
		if es[i].sameCookie(e) {
			es[i] = e
			return es
		}
	}
	return append(es, e)
}

func (es entries) live(now time.Time) entries {
	var out entries
	for _, e := range es {
		if !e.expired(now) {
			out = append(out, e)
		}
	}
	return out
}

func parse(data []byte) (entries, error) {
	var es entries
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), maxLine)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = line[len(httpOnlyPrefix):]
		} else if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			// curl skips lines it can't parse, and so do we
			continue
		}
		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		es = es.put(entry{
			Domain:            strings.TrimPrefix(strings.ToLower(fields[0]), "."),
			IncludeSubdomains: fields[1] == "TRUE",
			Path:              fields[2],
			Secure:            fields[3] == "TRUE",
			HTTPOnly:          httpOnly,
			Expires:           expires,
			Name:              fields[5],
			Value:             fields[6],
		})
	}
	return es, scanner.Err()
}

// entryFor works out what a Set-Cookie from u should store. A cookie
// deleting itself comes back with an expiry in the past, which drops
// it from the file on save. Cookies naming a domain u can't set
// cookies for are refused.
func entryFor(u *url.URL, c *http.Cookie, now time.Time) (entry, bool) {
	host := strings.ToLower(u.Hostname())
	e := entry{
		Domain:   host,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
		Name:     c.Name,
		Value:    c.Value,
	}
	if c.Domain != "" {
		domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		switch {
		case domain == host:
			e.IncludeSubdomains = net.ParseIP(host) == nil
		case net.ParseIP(host) == nil && strings.HasSuffix(host, "."+domain):
			e.Domain = domain
			e.IncludeSubdomains = true
		default:
			return entry{}, false
		}
	}
	if !strings.HasPrefix(e.Path, "/") {
		e.Path = defaultPath(u.Path)
	}
	switch {
	case c.MaxAge < 0:
		e.Expires = now.Unix() - 1
	case c.MaxAge > 0:
		e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second).Unix()
	case !c.Expires.IsZero():
		e.Expires = c.Expires.Unix()
		if e.Expires <= now.Unix() {
			e.Expires = now.Unix() - 1
		}
	}
	return e, true
}

// defaultPath is the cookie default-path of RFC 6265 section 5.1.4.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func flag(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
