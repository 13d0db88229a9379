/*
 * Copyright 2011 Nan Deng
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package push contains the error kinds reported by the APNS binary client.
package push

import (
	"errors"
	"fmt"
)

// Error is a specialized error. Each kind tells the caller which recovery applies:
// configuration and format errors need different input, the others need a new connection.
type Error interface {
	error
	isPushError() // Placeholder function to distinguish these from error class
}

type implementsPushError struct{}

func (*implementsPushError) isPushError() {}

var _ Error = &ConfigurationError{}
var _ Error = &ResolutionError{}
var _ Error = &NetworkError{}
var _ Error = &HandshakeError{}
var _ Error = &FormatError{}
var _ Error = &TransportError{}

var (
	// ErrNotConnected is wrapped by a TransportError when the channel was never connected.
	ErrNotConnected = errors.New("channel is not connected")
	// ErrChannelClosed is wrapped by a TransportError when the channel was already closed.
	ErrChannelClosed = errors.New("channel is closed")
)

/*********************/

// ConfigurationError indicates bad certificate/key material or an invalid client configuration.
type ConfigurationError struct {
	implementsPushError
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("ConfigurationError %v: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("ConfigurationError %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError returns a ConfigurationError for the file at path (which may be empty).
func NewConfigurationError(path string, err error) *ConfigurationError {
	return &ConfigurationError{Path: path, Err: err}
}

// NewConfigurationErrorf returns a ConfigurationError built from a format string.
func NewConfigurationErrorf(path string, f string, v ...interface{}) *ConfigurationError {
	return &ConfigurationError{Path: path, Err: fmt.Errorf(f, v...)}
}

/*********************/

// ResolutionError indicates that the gateway host name could not be resolved.
type ResolutionError struct {
	implementsPushError
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("ResolutionError %v: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// NewResolutionError returns a ResolutionError for host.
func NewResolutionError(host string, err error) *ResolutionError {
	return &ResolutionError{Host: host, Err: err}
}

/*********************/

// NetworkError indicates that the TCP connection to the gateway was refused or timed out.
type NetworkError struct {
	implementsPushError
	Addr string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("NetworkError %v: %v", e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError returns a NetworkError for addr.
func NewNetworkError(addr string, err error) *NetworkError {
	return &NetworkError{Addr: addr, Err: err}
}

/*********************/

// HandshakeError indicates that TLS negotiation with the gateway failed.
type HandshakeError struct {
	implementsPushError
	Addr string
	Err  error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil && e.Err.Error() == "EOF" {
		return fmt.Sprintf("HandshakeError %v: certificate is probably invalid/expired: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("HandshakeError %v: %v", e.Addr, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// NewHandshakeError returns a HandshakeError for addr.
func NewHandshakeError(addr string, err error) *HandshakeError {
	return &HandshakeError{Addr: addr, Err: err}
}

/*********************/

// FormatError indicates a malformed device token or a notification that does not fit the frame.
type FormatError struct {
	implementsPushError
	Details string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("FormatError %s: %v", e.Details, e.Err)
	}
	return fmt.Sprintf("FormatError %s", e.Details)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NewFormatError returns a FormatError with details and an optional cause.
func NewFormatError(details string, err error) *FormatError {
	return &FormatError{Details: details, Err: err}
}

// NewFormatErrorf returns a FormatError built from a format string.
func NewFormatErrorf(f string, v ...interface{}) *FormatError {
	return &FormatError{Details: fmt.Sprintf(f, v...)}
}

/*********************/

// TransportError indicates that a read or write on an established session failed.
// Callers should treat it as connection loss and build a new channel.
type TransportError struct {
	implementsPushError
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("TransportError %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError returns a TransportError for the operation op.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}
