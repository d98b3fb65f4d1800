package provider

import (
	"context"
	"errors"
	"testing"
)

type fakeAdapter struct {
	link *ResolvedLink
	err  error
}

func (f *fakeAdapter) ResolveLink(ctx context.Context, restrictedURL string) (*ResolvedLink, error) {
	return f.link, f.err
}

func TestDetectProvider(t *testing.T) {
	cases := map[string]string{
		"https://real-debrid.com/d/XYZ":  "realdebrid",
		"https://alldebrid.com/dl/abc":   "alldebrid",
		"https://torbox.app/d/abc":       "torbox",
		"https://premiumize.me/d/abc":    "premiumize",
		"https://example.com/file.mkv":   "",
		"":                               "",
	}
	for url, want := range cases {
		got, ok := DetectProvider(url)
		if want == "" {
			if ok {
				t.Errorf("DetectProvider(%q) = %q, want none", url, got)
			}
			continue
		}
		if !ok || got != want {
			t.Errorf("DetectProvider(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestConstructRestricted(t *testing.T) {
	cases := []struct {
		key, id, want string
	}{
		{"realdebrid", "XYZ", "https://real-debrid.com/d/XYZ"},
		{"premiumize", "XYZ", "https://premiumize.me/d/XYZ"},
		{"alldebrid", "XYZ", "https://alldebrid.com/dl/XYZ"},
		{"torbox", "XYZ", "https://torbox.app/d/XYZ"},
		{"unknown", "XYZ", "XYZ"},
	}
	for _, c := range cases {
		if got := ConstructRestricted(c.key, c.id); got != c.want {
			t.Errorf("ConstructRestricted(%q, %q) = %q, want %q", c.key, c.id, got, c.want)
		}
	}
}

func TestResolveURLNoProviderDetected(t *testing.T) {
	r := NewRegistry()
	link := r.ResolveURL(context.Background(), "https://example.com/file.mkv", "")
	if link.DownloadURL != "https://example.com/file.mkv" || link.Name != "file" {
		t.Errorf("unexpected fallback link: %+v", link)
	}
}

func TestResolveURLProviderNotRegistered(t *testing.T) {
	r := NewRegistry()
	link := r.ResolveURL(context.Background(), "https://real-debrid.com/d/XYZ", "")
	if link.DownloadURL != "https://real-debrid.com/d/XYZ" {
		t.Errorf("expected fallback to restricted URL, got %+v", link)
	}
}

func TestResolveURLSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register("realdebrid", &fakeAdapter{link: &ResolvedLink{DownloadURL: "https://cdn.example.com/a", Name: "a.mkv", Size: 100}})

	link := r.ResolveURL(context.Background(), "https://real-debrid.com/d/XYZ", "")
	if link.DownloadURL != "https://cdn.example.com/a" || link.Size != 100 {
		t.Errorf("unexpected resolved link: %+v", link)
	}
}

func TestResolveURLAdapterError(t *testing.T) {
	r := NewRegistry()
	r.Register("realdebrid", &fakeAdapter{err: errors.New("rate limited")})

	link := r.ResolveURL(context.Background(), "https://real-debrid.com/d/XYZ", "")
	if link.DownloadURL != "https://real-debrid.com/d/XYZ" {
		t.Errorf("expected fallback on adapter error, got %+v", link)
	}
}

func TestGetDownloadURL(t *testing.T) {
	if got := GetDownloadURL("https://stored", "realdebrid", "id"); got != "https://stored" {
		t.Errorf("expected stored URL precedence, got %q", got)
	}
	if got := GetDownloadURL("", "realdebrid", "XYZ"); got != "https://real-debrid.com/d/XYZ" {
		t.Errorf("expected constructed restricted URL, got %q", got)
	}
	if got := GetDownloadURL("", "", ""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
