package util

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/uniqush/uniqush-apns/test_util"
)

// TestMarshalJSONUnescaped tests that HTML encoding is not applied, so that the gateway receives the text it was given.
func TestMarshalJSONUnescaped(t *testing.T) {
	testValues := []string{
		`null`,
		`{"a":"\\u003c"}`,   // Double backslashes, not an escape sequence in json
		`{"a":"\u0019"}`,    // An ASCII control code. Keep it escaped.
		`{"<a":"<&>"}`,
		`"<&>\""`,
		`{"a":">\""}`, // A quotation mark. Should use backslashes to escape instead of unicode escape sequence
		`{"a":"한국어/조선말"}`,
	}

	for _, testValue := range testValues {
		var data interface{}
		originalBytes := []byte(testValue)
		err := json.Unmarshal(originalBytes, &data)
		if err != nil {
			t.Fatalf("Invalid test value %q: %v", testValue, err)
		}
		reencoded, err := MarshalJSONUnescaped(data)
		if err != nil {
			t.Fatalf("Unexpected error for %q: %v", testValue, err)
		}
		if !bytes.Equal(reencoded, originalBytes) {
			t.Errorf("Expected %v(%s), got %v(%s)", originalBytes, testValue, reencoded, string(reencoded))
		}
	}
}

func TestQuoteString(t *testing.T) {
	expectQuoted := func(expected, input string) {
		t.Helper()
		actual, err := QuoteString(input)
		if err != nil {
			t.Fatalf("Unexpected error quoting %q: %v", input, err)
		}
		test_util.ExpectStringEquals(t, expected, actual, "unexpected quoted string")
	}
	expectQuoted(`"hello"`, "hello")
	expectQuoted(`""`, "")
	expectQuoted(`"say \"hi\""`, `say "hi"`)
	expectQuoted(`"a\\b"`, `a\b`)
	expectQuoted(`"line\nbreak"`, "line\nbreak")
	expectQuoted(`"<b>&</b>"`, "<b>&</b>")
}
