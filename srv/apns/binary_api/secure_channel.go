/*
 * Copyright 2011-2013 Nan Deng
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package binary_api

// This file contains the secure channel: one TLS session, authenticated with a client certificate, to one gateway endpoint.
// It is owned by a single Client and is not safe for concurrent use.

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	"github.com/uniqush/uniqush-apns/push"
)

// ChannelState is the lifecycle state of a SecureChannel.
type ChannelState int

const (
	Unconnected ChannelState = iota
	Connected
	Closed
)

func (s ChannelState) String() string {
	switch s {
	case Unconnected:
		return "Unconnected"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	}
	return "ChannelState(" + strconv.Itoa(int(s)) + ")"
}

var errAlreadyConnected = errors.New("channel is already connected")

// SecureChannel holds exactly one encrypted connection to one gateway endpoint.
type SecureChannel struct {
	conf        *tls.Config
	resolver    *net.Resolver
	dialer      proxy.Dialer
	dialTimeout time.Duration
	pollTimeout time.Duration

	state ChannelState
	addr  string
	raw   net.Conn
	conn  *tls.Conn

	// pending holds decrypted bytes that arrived before anyone asked for them.
	pending bytes.Buffer
	// readErr is set once the session stops delivering data (EOF or a read failure).
	readErr error
}

// NewSecureChannel loads the client credentials and builds an unconnected channel
// restricted to TLS 1.2. The gateway's certificate is not verified.
func NewSecureChannel(certFile, keyFile string, passphrase PassphraseFunc) (*SecureChannel, error) {
	cert, err := LoadKeyPair(certFile, keyFile, passphrase)
	if err != nil {
		return nil, err
	}
	return newSecureChannel(cert, DefaultConnectTimeout, DefaultPollTimeout), nil
}

func newSecureChannel(cert tls.Certificate, dialTimeout, pollTimeout time.Duration) *SecureChannel {
	conf := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tls.VersionTLS12,
	}
	return &SecureChannel{
		conf:        conf,
		resolver:    net.DefaultResolver,
		dialer:      proxy.FromEnvironmentUsing(&net.Dialer{Timeout: dialTimeout}),
		dialTimeout: dialTimeout,
		pollTimeout: pollTimeout,
		state:       Unconnected,
	}
}

// State returns the lifecycle state.
func (c *SecureChannel) State() ChannelState {
	return c.state
}

// RemoteAddr returns the resolved address the channel connected to, or "" before Connect.
func (c *SecureChannel) RemoteAddr() string {
	return c.addr
}

// Connect resolves host, opens a TCP connection to it and performs the TLS handshake.
func (c *SecureChannel) Connect(host string, port int) error {
	switch c.state {
	case Connected:
		return push.NewTransportError("connect", errAlreadyConnected)
	case Closed:
		return push.NewTransportError("connect", push.ErrChannelClosed)
	}

	ip, err := c.resolve(host)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(ip, strconv.Itoa(port))

	raw, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return push.NewNetworkError(addr, err)
	}

	conf := c.conf.Clone()
	conf.ServerName = host
	conn := tls.Client(raw, conf)
	if err := conn.SetDeadline(time.Now().Add(c.dialTimeout)); err != nil {
		raw.Close()
		return push.NewHandshakeError(addr, err)
	}
	if err := conn.Handshake(); err != nil {
		raw.Close()
		return push.NewHandshakeError(addr, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		raw.Close()
		return push.NewHandshakeError(addr, err)
	}

	c.raw = raw
	c.conn = conn
	c.addr = addr
	c.state = Connected
	return nil
}

// resolve returns an IPv4 address of host if there is one, otherwise the first address.
func (c *SecureChannel) resolve(host string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	defer cancel()
	addrs, err := c.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", push.NewResolutionError(host, err)
	}
	if len(addrs) == 0 {
		return "", push.NewResolutionError(host, errors.New("no addresses"))
	}
	for _, a := range addrs {
		if ip4 := a.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}

func (c *SecureChannel) ready(op string) error {
	switch c.state {
	case Connected:
		return nil
	case Closed:
		return push.NewTransportError(op, push.ErrChannelClosed)
	}
	return push.NewTransportError(op, push.ErrNotConnected)
}

// Write sends the whole buffer through the session in a single call.
// A failed, empty or short write is a TransportError; nothing is retried.
func (c *SecureChannel) Write(b []byte) (int, error) {
	if err := c.ready("write"); err != nil {
		return 0, err
	}
	n, err := c.conn.Write(b)
	if err != nil {
		return n, push.NewTransportError("write", err)
	}
	if n == 0 || n < len(b) {
		return n, push.NewTransportError("write", io.ErrShortWrite)
	}
	return n, nil
}

// PendingBytes reports how many decrypted bytes can be read without blocking.
// Data already in flight is collected for at most the poll timeout.
func (c *SecureChannel) PendingBytes() (int, error) {
	if err := c.ready("poll"); err != nil {
		return 0, err
	}
	if c.readErr == nil {
		if err := c.fill(); err != nil {
			return c.pending.Len(), err
		}
	}
	return c.pending.Len(), nil
}

func (c *SecureChannel) fill() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pollTimeout)); err != nil {
		return push.NewTransportError("poll", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	var buf [1024]byte
	for {
		n, err := c.conn.Read(buf[:])
		c.pending.Write(buf[:n])
		if err == nil {
			continue
		}
		// Timeouts are resumable in crypto/tls; a partial record stays buffered inside the conn.
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil
		}
		c.readErr = err
		if err == io.EOF {
			// The gateway ended the session. What arrived before stays readable.
			return nil
		}
		return push.NewTransportError("poll", err)
	}
}

// Peek returns the first n buffered bytes without consuming them.
// It never reads from the session; call PendingBytes first to collect what has arrived.
func (c *SecureChannel) Peek(n int) ([]byte, error) {
	if err := c.ready("peek"); err != nil {
		return nil, err
	}
	if n > c.pending.Len() {
		return nil, push.NewTransportError("peek", io.ErrShortBuffer)
	}
	ret := make([]byte, n)
	copy(ret, c.pending.Bytes())
	return ret, nil
}

// Read fills b completely, taking buffered bytes first.
func (c *SecureChannel) Read(b []byte) error {
	if err := c.ready("read"); err != nil {
		return err
	}
	n, _ := c.pending.Read(b)
	if n == len(b) {
		return nil
	}
	if c.readErr != nil {
		return push.NewTransportError("read", c.readErr)
	}
	if _, err := io.ReadFull(c.conn, b[n:]); err != nil {
		c.readErr = err
		return push.NewTransportError("read", err)
	}
	return nil
}

// Close shuts down the TLS session, then closes the socket, then drops the TLS configuration.
// Steps whose resource was never acquired are skipped. Closing twice is a no-op.
func (c *SecureChannel) Close() error {
	if c.state == Closed {
		return nil
	}
	c.state = Closed

	var firstErr error
	// Only send close_notify if the gateway has not already ended the session.
	if c.conn != nil && c.readErr == nil {
		if err := c.conn.CloseWrite(); err != nil {
			firstErr = push.NewTransportError("shutdown", err)
		}
	}
	if c.raw != nil {
		if err := c.raw.Close(); err != nil && firstErr == nil {
			firstErr = push.NewTransportError("close", err)
		}
	}
	c.conn = nil
	c.raw = nil
	c.conf = nil
	c.pending.Reset()
	return firstErr
}
