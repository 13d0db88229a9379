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

// This file contains the encoder for notification frames and the decoder for feedback frames.
// Nothing here performs I/O.

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/uniqush/uniqush-apns/push"
	"github.com/uniqush/uniqush-apns/srv/apns/common"
	"github.com/uniqush/uniqush-apns/util"
)

// now is replaced in tests.
var now = time.Now

// HexToBytes converts a hex string (either case) to raw bytes.
func HexToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, push.NewFormatError("malformed hex string", err)
	}
	return b, nil
}

// BytesToHex renders raw bytes as lowercase hex, two digits per byte.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeToken converts a 64 character hex device token to its 32 byte binary form.
func DecodeToken(token string) ([]byte, error) {
	b, err := HexToBytes(token)
	if err != nil {
		return nil, err
	}
	if len(b) != common.TokenSize {
		return nil, push.NewFormatErrorf("device token %q decodes to %v bytes, expected %v", token, len(b), common.TokenSize)
	}
	return b, nil
}

// BuildPayload substitutes body, badge and sound into the aps template.
// body and sound are written as JSON string literals.
func BuildPayload(body string, badge int, sound string) ([]byte, error) {
	if badge < 0 {
		return nil, push.NewFormatErrorf("negative badge %v", badge)
	}
	qbody, err := util.QuoteString(body)
	if err != nil {
		return nil, push.NewFormatError("cannot encode alert body", err)
	}
	qsound, err := util.QuoteString(sound)
	if err != nil {
		return nil, push.NewFormatError("cannot encode sound", err)
	}

	buffer := bytes.NewBuffer(make([]byte, 0, common.MaxPayloadSize))
	buffer.WriteString(`{"aps": {"alert": `)
	buffer.WriteString(qbody)
	buffer.WriteString(`,"badge": `)
	buffer.WriteString(strconv.Itoa(badge))
	buffer.WriteString(`,"sound": `)
	buffer.WriteString(qsound)
	buffer.WriteString(`}}`)

	if buffer.Len() > common.MaxPayloadSize {
		return nil, push.NewFormatErrorf("payload is %v bytes, more than %v", buffer.Len(), common.MaxPayloadSize)
	}
	return buffer.Bytes(), nil
}

// EncodeNotification builds a notification frame identified by the current time and valid for 24 hours.
func EncodeNotification(token, body string, badge int, sound string) ([]byte, error) {
	return EncodeFrame(common.NewNotification(token, body, badge, sound, now()))
}

// EncodeFrame generates the bytes of a command 1 frame:
//
//	|COMMAND|ID|EXPIRY|TOKENLEN|TOKEN|PAYLOADLEN|PAYLOAD|
//	|   1   |4 |  4   |   2    | 32  |    2     | <=256 |
//
// All integers are big endian.
func EncodeFrame(n *common.Notification) ([]byte, error) {
	btoken, err := DecodeToken(n.Token)
	if err != nil {
		return nil, err
	}
	payload, err := BuildPayload(n.Body, n.Badge, n.Sound)
	if err != nil {
		return nil, err
	}

	var dataBuffer [common.MaxNotificationFrameSize]byte
	buffer := bytes.NewBuffer(dataBuffer[:0])

	buffer.WriteByte(common.CommandEnhancedNotification)
	binary.Write(buffer, binary.BigEndian, n.ID)
	binary.Write(buffer, binary.BigEndian, n.Expiry)

	binary.Write(buffer, binary.BigEndian, uint16(len(btoken)))
	buffer.Write(btoken)

	binary.Write(buffer, binary.BigEndian, uint16(len(payload)))
	buffer.Write(payload)

	return buffer.Bytes(), nil
}

// DecodeFeedbackHeader parses the timestamp and token length that start every feedback frame.
func DecodeFeedbackHeader(b []byte) (timestamp uint32, tokenLen uint16, err error) {
	if len(b) < common.FeedbackHeaderSize {
		return 0, 0, push.NewFormatErrorf("feedback frame is %v bytes, shorter than its %v byte header", len(b), common.FeedbackHeaderSize)
	}
	timestamp = binary.BigEndian.Uint32(b[0:4])
	tokenLen = binary.BigEndian.Uint16(b[4:6])
	return timestamp, tokenLen, nil
}

// DecodeFeedbackRecord parses one feedback frame: a 4 byte timestamp, a 2 byte token length and the token.
// Bytes after the token are ignored.
func DecodeFeedbackRecord(b []byte) (*common.FeedbackRecord, error) {
	timestamp, tokenLen, err := DecodeFeedbackHeader(b)
	if err != nil {
		return nil, err
	}
	end := common.FeedbackHeaderSize + int(tokenLen)
	if len(b) < end {
		return nil, push.NewFormatErrorf("feedback frame announces a %v byte token but only %v bytes follow", tokenLen, len(b)-common.FeedbackHeaderSize)
	}
	return &common.FeedbackRecord{
		Timestamp: timestamp,
		Token:     BytesToHex(b[common.FeedbackHeaderSize:end]),
	}, nil
}
