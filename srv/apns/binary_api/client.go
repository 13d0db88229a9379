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
 *
 * See https://developer.apple.com/library/archive/documentation/NetworkingInternet/Conceptual/RemoteNotificationsPG/LegacyNotificationFormat.html
 */

// Package binary_api implements a client for the legacy APNS binary provider protocol:
// command 1 notification frames written over a TLS session, and the feedback stream read back from it.
package binary_api

import (
	"io"
	"io/ioutil"

	"github.com/uniqush/log"

	"github.com/uniqush/uniqush-apns/push"
	"github.com/uniqush/uniqush-apns/srv/apns/common"
)

// Client pushes notifications through one SecureChannel and drains the feedback that arrives on it.
// Everything is synchronous; a Client must not be shared between goroutines.
type Client struct {
	channel *SecureChannel
	logger  log.Logger
}

// NewClient loads the credentials and connects to host:port. Any failure is returned unchanged.
func NewClient(host string, port int, certFile, keyFile string, passphrase PassphraseFunc) (*Client, error) {
	return Dial(&Config{
		Host:       host,
		Port:       port,
		CertFile:   certFile,
		KeyFile:    keyFile,
		Passphrase: passphrase,
	}, nil)
}

// Dial validates c, loads the credentials and connects. logger may be nil.
func Dial(c *Config, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.NewLogger(ioutil.Discard, "", log.LOGLEVEL_SILENT)
	}
	if err := c.Validate(); err != nil {
		logger.Errorf("Gateway=%v:%v Invalid config: %v", c.Host, c.Port, err)
		return nil, err
	}
	cert, err := LoadKeyPair(c.CertFile, c.KeyFile, c.Passphrase)
	if err != nil {
		logger.Errorf("Gateway=%v Cannot load credentials: %v", c.addr(), err)
		return nil, err
	}
	channel := newSecureChannel(cert, c.connectTimeout(), c.pollTimeout())
	if err := channel.Connect(c.Host, c.Port); err != nil {
		logger.Errorf("Gateway=%v Cannot connect: %v", c.addr(), err)
		channel.Close()
		return nil, err
	}
	logger.Infof("Gateway=%v Connection opened to %v", c.addr(), channel.RemoteAddr())
	return &Client{
		channel: channel,
		logger:  logger,
	}, nil
}

// SetLogger replaces the logger.
func (c *Client) SetLogger(logger log.Logger) {
	c.logger = logger
}

// Channel returns the underlying channel.
func (c *Client) Channel() *SecureChannel {
	return c.channel
}

// PushMessage encodes one notification and writes it, returning the number of bytes written.
func (c *Client) PushMessage(token, body string, badge int, sound string) (int, error) {
	return c.Push(common.NewNotification(token, body, badge, sound, now()))
}

// Push writes an already built notification.
// The legacy protocol does not acknowledge a successful delivery.
func (c *Client) Push(n *common.Notification) (int, error) {
	frame, err := EncodeFrame(n)
	if err != nil {
		c.logger.Errorf("Token=%v Bad notification: %v", n.Token, err)
		return 0, err
	}
	written, err := c.channel.Write(frame)
	if err != nil {
		c.logger.Errorf("Gateway=%v Token=%v MsgId=%v Write failed: %v", c.channel.RemoteAddr(), n.Token, n.ID, err)
		return written, err
	}
	c.logger.Debugf("Gateway=%v Token=%v MsgId=%v Wrote %v bytes", c.channel.RemoteAddr(), n.Token, n.ID, written)
	return written, nil
}

// DrainFeedback returns the feedback records that have already arrived, without waiting for more.
// A frame is consumed only once all of it is pending; a partial frame stays buffered for a later call.
// A failed read is a TransportError and means the connection is lost.
func (c *Client) DrainFeedback() ([]*common.FeedbackRecord, error) {
	ret := make([]*common.FeedbackRecord, 0, 1)
	for {
		pending, err := c.channel.PendingBytes()
		if err != nil {
			c.logger.Errorf("Gateway=%v Feedback poll failed: %v", c.channel.RemoteAddr(), err)
			return ret, err
		}
		if pending < common.FeedbackFrameSize {
			if err := c.truncatedFrame(pending); err != nil {
				c.logger.Errorf("Gateway=%v Feedback read failed: %v", c.channel.RemoteAddr(), err)
				return ret, err
			}
			return ret, nil
		}
		for pending >= common.FeedbackFrameSize {
			rec, n, err := c.readFeedbackRecord(pending)
			if err != nil {
				c.logger.Errorf("Gateway=%v Feedback read failed: %v", c.channel.RemoteAddr(), err)
				return ret, err
			}
			if rec == nil {
				if err := c.truncatedFrame(pending); err != nil {
					c.logger.Errorf("Gateway=%v Feedback read failed: %v", c.channel.RemoteAddr(), err)
					return ret, err
				}
				return ret, nil
			}
			c.logger.Debugf("Gateway=%v Feedback Token=%v Timestamp=%v", c.channel.RemoteAddr(), rec.Token, rec.Timestamp)
			ret = append(ret, rec)
			pending -= n
		}
	}
}

// readFeedbackRecord consumes one frame if all of it is among the pending bytes, and returns it with its size on the wire.
// It returns a nil record when the frame is incomplete.
func (c *Client) readFeedbackRecord(pending int) (*common.FeedbackRecord, int, error) {
	header, err := c.channel.Peek(common.FeedbackHeaderSize)
	if err != nil {
		return nil, 0, err
	}
	_, tokenLen, err := DecodeFeedbackHeader(header)
	if err != nil {
		return nil, 0, err
	}
	size := common.FeedbackHeaderSize + int(tokenLen)
	if pending < size {
		c.logger.Debugf("Gateway=%v Feedback frame of %v bytes incomplete, %v pending", c.channel.RemoteAddr(), size, pending)
		return nil, 0, nil
	}
	frame := make([]byte, size)
	if err := c.channel.Read(frame); err != nil {
		return nil, 0, err
	}
	rec, err := DecodeFeedbackRecord(frame)
	if err != nil {
		return nil, 0, err
	}
	return rec, size, nil
}

// truncatedFrame reports a TransportError when a partial frame is pending but the gateway already ended the session.
func (c *Client) truncatedFrame(pending int) error {
	if pending == 0 || c.channel.readErr == nil {
		return nil
	}
	return push.NewTransportError("read", io.ErrUnexpectedEOF)
}

// Close tears down the channel. It is safe to call more than once.
func (c *Client) Close() error {
	if c.channel.State() == Closed {
		return nil
	}
	err := c.channel.Close()
	if err != nil {
		c.logger.Errorf("Gateway=%v Close failed: %v", c.channel.RemoteAddr(), err)
	} else {
		c.logger.Infof("Gateway=%v Connection closed", c.channel.RemoteAddr())
	}
	return err
}
