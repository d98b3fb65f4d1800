package urlcache

import (
	"testing"
	"time"
)

func TestGetSetEvict(t *testing.T) {
	c := New(time.Minute)

	if _, found := c.Get("/movies/A.mkv"); found {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("/movies/A.mkv", "https://cdn.example.com/a")
	got, found := c.Get("/movies/A.mkv")
	if !found || got != "https://cdn.example.com/a" {
		t.Fatalf("got %q, %v", got, found)
	}

	c.Evict("/movies/A.mkv")
	if _, found := c.Get("/movies/A.mkv"); found {
		t.Fatal("expected miss after evict")
	}
}

func TestEvictPrefix(t *testing.T) {
	c := New(time.Minute)
	c.Set("/movies/Foo/a.mkv", "u1")
	c.Set("/movies/Foo/b.mkv", "u2")
	c.Set("/movies/Bar/c.mkv", "u3")

	c.EvictPrefix("/movies/Foo")

	if _, found := c.Get("/movies/Foo/a.mkv"); found {
		t.Fatal("expected a.mkv evicted")
	}
	if _, found := c.Get("/movies/Foo/b.mkv"); found {
		t.Fatal("expected b.mkv evicted")
	}
	if _, found := c.Get("/movies/Bar/c.mkv"); !found {
		t.Fatal("expected unrelated entry to survive")
	}
}
