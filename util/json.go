// Package util contains JSON helpers used to build notification payloads.
package util

import (
	"bytes"
	"encoding/json"
)

// MarshalJSONUnescaped uses encoding/json to return a JSON string without escapes for unicode and special characters in HTML.
func MarshalJSONUnescaped(v interface{}) ([]byte, error) {
	writer := bytes.Buffer{}
	encoder := json.NewEncoder(&writer)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}

	// Encode always appends a newline.
	b := writer.Bytes()
	return b[:len(b)-1], nil
}

// QuoteString returns s as a JSON string literal, including the surrounding quotes.
// Text without quotes, backslashes or control characters is returned unchanged between the quotes.
func QuoteString(s string) (string, error) {
	b, err := MarshalJSONUnescaped(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
