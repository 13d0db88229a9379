// Package test_util contains assertion helpers shared by the tests of every package.
package test_util

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func ExpectEquals(t *testing.T, expected interface{}, actual interface{}, msg string) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("ExpectEquals failed: %s: %#v != %#v", msg, expected, actual)
	}
}

func ExpectStringEquals(t *testing.T, expected string, actual string, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("ExpectStringEquals failed: %s: %q != %q", msg, expected, actual)
	}
}

func ExpectBytesEquals(t *testing.T, expected []byte, actual []byte, msg string) {
	t.Helper()
	if !bytes.Equal(expected, actual) {
		t.Errorf("ExpectBytesEquals failed: %s: % x != % x", msg, expected, actual)
	}
}

// ExpectErrorAs fails unless err matches target (a pointer to an error type) per errors.As.
func ExpectErrorAs(t *testing.T, err error, target interface{}, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("ExpectErrorAs failed: %s: got nil error, want %T", msg, target)
		return
	}
	if !errors.As(err, target) {
		t.Errorf("ExpectErrorAs failed: %s: %T (%v) is not %T", msg, err, err, target)
	}
}
