package main

import (
	"testing"
	"time"
)

func TestGetenvDefault(t *testing.T) {
	t.Setenv("DOCSHARE_TEST_SET", "value")

	if got := getenvDefault("DOCSHARE_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("got %q, want %q", got, "value")
	}
	if got := getenvDefault("DOCSHARE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("got %q, want %q", got, "fallback")
	}
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("DOCSHARE_TEST_DUR", "90s")
	t.Setenv("DOCSHARE_TEST_DUR_BAD", "ninety")

	if got := getenvDuration("DOCSHARE_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("got %v, want 90s", got)
	}
	if got := getenvDuration("DOCSHARE_TEST_DUR_BAD", time.Minute); got != time.Minute {
		t.Fatalf("bad value should fall back to default, got %v", got)
	}
	if got := getenvDuration("DOCSHARE_TEST_DUR_UNSET", time.Minute); got != time.Minute {
		t.Fatalf("unset should fall back to default, got %v", got)
	}
}

func TestGetenvInt64(t *testing.T) {
	t.Setenv("DOCSHARE_TEST_INT", "1048576")
	t.Setenv("DOCSHARE_TEST_INT_BAD", "lots")

	if got := getenvInt64("DOCSHARE_TEST_INT", 0); got != 1048576 {
		t.Fatalf("got %d, want 1048576", got)
	}
	if got := getenvInt64("DOCSHARE_TEST_INT_BAD", 42); got != 42 {
		t.Fatalf("bad value should fall back to default, got %d", got)
	}
	if got := getenvInt64("DOCSHARE_TEST_INT_UNSET", 42); got != 42 {
		t.Fatalf("unset should fall back to default, got %d", got)
	}
}
