package http

import (
	"net/http"
	"testing"
)

func Test_NegotiateContentType(t *testing.T) {
	prefs := []string{"application/json", "text/plain"}

	// For no accept header, you get your first choice
	got := negotiateContentType(&http.Request{}, prefs)
	if got != "application/json" {
		t.Errorf("First choice: Expected %q, got %q", "application/json", got)
	}

	// If there's accept headers but none match, get ""
	h := http.Header{}
	h.Add("Accept", "text/html;q=0.9")
	h.Add("Accept", "image/png")
	got = negotiateContentType(&http.Request{Header: h}, prefs)
	if got != "" {
		t.Errorf("No matching: expected empty string, got %q", got)
	}

	// Equal quality: the first preference wins
	h = http.Header{}
	h.Add("Accept", "text/plain,application/json,text/html")
	got = negotiateContentType(&http.Request{Header: h}, prefs)
	if got != "application/json" {
		t.Errorf("Equal quality: expected %q, got %q", "application/json", got)
	}

	// Quality beats preference
	h = http.Header{}
	h.Add("Accept", "application/json;q=0.5,text/plain;q=1.0")
	got = negotiateContentType(&http.Request{Header: h}, prefs)
	if got != "text/plain" {
		t.Errorf("Quality beats preference: expected %q, got %q", "text/plain", got)
	}
}
