package test

import (
	"errors"
	"testing"
)

// T wraps *testing.T with the assertion helpers used across package tests.
type T struct {
	*testing.T
}

func FromT(t *testing.T) *T {
	t.Helper()
	return &T{t}
}

// Assert fails the test if the condition is false. Use Assertf to describe
// the failure.
func (t *T) Assert(condition bool) {
	t.Helper()
	if !condition {
		t.Fatal("assertion failed")
	}
}

func (t *T) Assertf(condition bool, format string, args ...any) {
	t.Helper()
	if !condition {
		t.Fatalf(format, args...)
	}
}

func (t *T) CheckErr(err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ExpectErr fails the test unless errors.Is(err, expected).
func (t *T) ExpectErr(err, expected error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error '%v', but got nil", expected)
	}
	if !errors.Is(err, expected) {
		t.Fatalf("expected error '%v', but got '%v'", expected, err)
	}
}

// Equal fails the test if got != want.
func Equal[V comparable](t *T, got, want V) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
