package browser

import (
	"testing"
	"time"
)

func TestShouldBlock(t *testing.T) {
	set := blockSetOf([]string{"Images", " fonts ", "stylesheets"})

	cases := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", true},
		{"Media", false},
		{"Document", false},
		{"XHR", false},
		{"Script", false},
	}
	for _, c := range cases {
		if got := shouldBlock(set, c.resType); got != c.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", c.resType, got, c.want)
		}
	}
}

func TestShouldBlock_NeverDocuments(t *testing.T) {
	set := blockSetOf([]string{"document", "xhr"})
	if shouldBlock(set, "Document") || shouldBlock(set, "XHR") {
		t.Fatal("document and xhr requests must never be blocked")
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.NavigateTimeout != 30*time.Second {
		t.Errorf("NavigateTimeout = %v", m.cfg.NavigateTimeout)
	}
	if m.cfg.Logger == nil {
		t.Error("Logger not defaulted")
	}
	if m.cfg.Headless {
		t.Error("Headless must default to false")
	}
	if m.Browser() != nil {
		t.Error("Browser before Start must be nil")
	}
}

func TestClosedManagerRefusesStart(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(t.Context()); err == nil {
		t.Fatal("Start after Close must fail")
	}
}
