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

// Package common contains the data types shared by the binary protocol codec, the client and the feedback registry.
package common

import (
	"fmt"
	"time"
)

// Notification is a single push to one device.
type Notification struct {
	// Token is the device token as 64 hex characters.
	Token string
	Body  string
	Badge int
	Sound string

	// ID is an opaque identifier the gateway would use when reporting errors.
	// The current Unix time is used by default, so it is not unique within a second.
	ID uint32
	// Expiry is the absolute Unix time after which the gateway may drop the notification.
	Expiry uint32
}

// NewNotification builds a notification identified by now, valid for DefaultExpiry.
func NewNotification(token, body string, badge int, sound string, now time.Time) *Notification {
	id := uint32(now.Unix())
	return &Notification{
		Token:  token,
		Body:   body,
		Badge:  badge,
		Sound:  sound,
		ID:     id,
		Expiry: id + uint32(DefaultExpiry/time.Second),
	}
}

func (n *Notification) String() string {
	return fmt.Sprintf("id=%v; expiry=%v; token=%v; badge=%v; sound=%q", n.ID, n.Expiry, n.Token, n.Badge, n.Sound)
}

// FeedbackRecord is a device the gateway reported as unreachable.
type FeedbackRecord struct {
	// Timestamp is the Unix time at which the gateway recorded the failure.
	Timestamp uint32
	// Token is the lowercase hex rendering of the device token.
	Token string
}

// Time returns the timestamp as a time.Time.
func (r *FeedbackRecord) Time() time.Time {
	return time.Unix(int64(r.Timestamp), 0)
}

func (r *FeedbackRecord) String() string {
	return fmt.Sprintf("timestamp=%v; token=%v", r.Timestamp, r.Token)
}
