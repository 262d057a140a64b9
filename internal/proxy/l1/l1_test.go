package l1

import (
	"testing"
	"time"
)

func TestSetGet_RoundTrips(t *testing.T) {
	t.Parallel()
	c, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	c.Set("fp1", Entry{Status: 200, Body: []byte("body"), StoredAt: now})
	// otter processes Set asynchronously; wait briefly.
	time.Sleep(50 * time.Millisecond)

	got, ok := c.Get("fp1")
	if !ok {
		t.Fatal("expected entry present")
	}
	if got.Status != 200 || string(got.Body) != "body" {
		t.Errorf("got %+v", got)
	}
}

func TestGet_MissingReturnsFalse(t *testing.T) {
	t.Parallel()
	c, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unset key")
	}
}

func TestSet_OverwritesPriorEntry(t *testing.T) {
	t.Parallel()
	c, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Set("fp1", Entry{Status: 200, Body: []byte("v1")})
	c.Set("fp1", Entry{Status: 200, Body: []byte("v2")})
	time.Sleep(50 * time.Millisecond)

	got, ok := c.Get("fp1")
	if !ok || string(got.Body) != "v2" {
		t.Errorf("got %+v, ok=%v, want v2", got, ok)
	}
}

func TestDelete_RemovesEntry(t *testing.T) {
	t.Parallel()
	c, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Set("fp1", Entry{Status: 200})
	time.Sleep(50 * time.Millisecond)
	c.Delete("fp1")

	if _, ok := c.Get("fp1"); ok {
		t.Error("expected entry gone after delete")
	}
}
