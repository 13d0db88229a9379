package binary_api

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/uniqush/uniqush-apns/push"
	"github.com/uniqush/uniqush-apns/srv/apns/binary_api/mocks"
	"github.com/uniqush/uniqush-apns/srv/apns/common"
	"github.com/uniqush/uniqush-apns/test_util"
)

func tokenOf(b byte) []byte {
	return bytes.Repeat([]byte{b}, common.TokenSize)
}

// drainUntil keeps draining until n records were collected or the test timeout expires.
func drainUntil(t *testing.T, client *Client, n int) []*common.FeedbackRecord {
	t.Helper()
	var records []*common.FeedbackRecord
	deadline := time.Now().Add(testTimeout)
	for len(records) < n && time.Now().Before(deadline) {
		batch, err := client.DrainFeedback()
		if err != nil {
			t.Fatalf("Unexpected error draining feedback: %v", err)
		}
		records = append(records, batch...)
	}
	return records
}

func TestPushMessage(t *testing.T) {
	gw := startMockGateway(t)
	client := dialTestClient(t, gw)
	mockNow(t, 1700000000)

	n, err := client.PushMessage(sequentialToken(), "Hello", 3, "chime")
	if err != nil {
		t.Fatalf("Unexpected error pushing: %v", err)
	}

	notif, err := gw.NextNotification(testTimeout)
	if err != nil {
		t.Fatal(err)
	}
	test_util.ExpectEquals(t, common.NotificationHeaderSize+common.TokenSize+2+int(notif.PayloadLen), n, "bytes written")
	test_util.ExpectEquals(t, common.CommandEnhancedNotification, notif.Command, "command")
	test_util.ExpectEquals(t, uint32(1700000000), notif.ID, "identifier")
	test_util.ExpectEquals(t, uint32(1700000000+86400), notif.Expiry, "expiry")
	test_util.ExpectStringEquals(t, sequentialToken(), BytesToHex(notif.DevToken), "token")

	var payload struct {
		Aps struct {
			Alert string `json:"alert"`
			Badge int    `json:"badge"`
			Sound string `json:"sound"`
		} `json:"aps"`
	}
	if err := json.Unmarshal(notif.Payload, &payload); err != nil {
		t.Fatalf("Payload %q is not JSON: %v", notif.Payload, err)
	}
	test_util.ExpectStringEquals(t, "Hello", payload.Aps.Alert, "alert")
	test_util.ExpectEquals(t, 3, payload.Aps.Badge, "badge")
	test_util.ExpectStringEquals(t, "chime", payload.Aps.Sound, "sound")
}

func TestPushMessageBadTokenKeepsConnection(t *testing.T) {
	gw := startMockGateway(t)
	client := dialTestClient(t, gw)

	n, err := client.PushMessage("zz", "Hello", 1, "default")
	var formatErr *push.FormatError
	test_util.ExpectErrorAs(t, err, &formatErr, "malformed token")
	test_util.ExpectEquals(t, 0, n, "nothing written for a malformed token")

	if _, err := client.PushMessage(sequentialToken(), "Hello", 1, "default"); err != nil {
		t.Fatalf("The connection should still be usable: %v", err)
	}
	if _, err := gw.NextNotification(testTimeout); err != nil {
		t.Fatal(err)
	}
}

func TestDrainFeedbackEmpty(t *testing.T) {
	gw := startMockGateway(t)
	client := dialTestClient(t, gw)

	start := time.Now()
	records, err := client.DrainFeedback()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	test_util.ExpectEquals(t, 0, len(records), "records from a silent gateway")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Draining an empty channel took %v", elapsed)
	}
}

func TestDrainFeedback(t *testing.T) {
	gw := startMockGateway(t)
	client := dialTestClient(t, gw)
	serverConn, err := gw.NextConn(testTimeout)
	if err != nil {
		t.Fatal(err)
	}

	stream := append(mocks.FeedbackFrame(1000, tokenOf(0xab)), mocks.FeedbackFrame(2000, tokenOf(0x01))...)
	// The start of a third frame must not be consumed.
	stream = append(stream, 0, 0, 0)
	if _, err := serverConn.Write(stream); err != nil {
		t.Fatal(err)
	}

	records := drainUntil(t, client, 2)
	test_util.ExpectEquals(t, 2, len(records), "number of records")
	test_util.ExpectEquals(t, uint32(1000), records[0].Timestamp, "first timestamp")
	test_util.ExpectStringEquals(t, BytesToHex(tokenOf(0xab)), records[0].Token, "first token")
	test_util.ExpectEquals(t, uint32(2000), records[1].Timestamp, "second timestamp")
	test_util.ExpectStringEquals(t, BytesToHex(tokenOf(0x01)), records[1].Token, "second token")

	pending, err := client.Channel().PendingBytes()
	if err != nil {
		t.Fatal(err)
	}
	test_util.ExpectEquals(t, 3, pending, "partial frame left unread")

	records, err = client.DrainFeedback()
	if err != nil {
		t.Fatal(err)
	}
	test_util.ExpectEquals(t, 0, len(records), "a partial frame yields nothing")
}

func TestDrainFeedbackConnectionLost(t *testing.T) {
	gw := startMockGateway(t)
	client := dialTestClient(t, gw)
	serverConn, err := gw.NextConn(testTimeout)
	if err != nil {
		t.Fatal(err)
	}

	// The header announces a 40 byte token but the session ends after 32.
	frame := mocks.FeedbackFrame(1000, make([]byte, 40))[:common.FeedbackFrameSize]
	if _, err := serverConn.Write(frame); err != nil {
		t.Fatal(err)
	}
	serverConn.Close()

	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		records, err := client.DrainFeedback()
		if err != nil {
			expectTransportError(t, err, nil, "truncated frame")
			test_util.ExpectEquals(t, 0, len(records), "no record from a truncated frame")
			return
		}
		test_util.ExpectEquals(t, 0, len(records), "no record before the frame is complete")
	}
	t.Fatal("The lost connection was never reported")
}

func TestDrainFeedbackLeavesIncompleteFrame(t *testing.T) {
	gw := startMockGateway(t)
	client := dialTestClient(t, gw)
	serverConn, err := gw.NextConn(testTimeout)
	if err != nil {
		t.Fatal(err)
	}

	// A standard frame's worth of bytes, but the header announces a 40 byte token and the session stays open.
	frame := mocks.FeedbackFrame(1000, append(tokenOf(0x42), 1, 2, 3, 4, 5, 6, 7, 8))
	if _, err := serverConn.Write(frame[:common.FeedbackFrameSize]); err != nil {
		t.Fatal(err)
	}
	test_util.ExpectEquals(t, common.FeedbackFrameSize, waitPending(t, client.Channel(), common.FeedbackFrameSize), "pending before draining")

	type drainResult struct {
		records []*common.FeedbackRecord
		err     error
	}
	done := make(chan drainResult, 1)
	go func() {
		records, err := client.DrainFeedback()
		done <- drainResult{records, err}
	}()
	var res drainResult
	select {
	case res = <-done:
	case <-time.After(testTimeout):
		t.Fatal("DrainFeedback waited for the rest of an incomplete frame")
	}
	if res.err != nil {
		t.Fatalf("Unexpected error: %v", res.err)
	}
	test_util.ExpectEquals(t, 0, len(res.records), "no record from an incomplete frame")

	pending, err := client.Channel().PendingBytes()
	if err != nil {
		t.Fatal(err)
	}
	test_util.ExpectEquals(t, common.FeedbackFrameSize, pending, "the incomplete frame stays buffered")

	if _, err := serverConn.Write(frame[common.FeedbackFrameSize:]); err != nil {
		t.Fatal(err)
	}
	records := drainUntil(t, client, 1)
	test_util.ExpectEquals(t, 1, len(records), "record once the frame is complete")
	test_util.ExpectStringEquals(t, BytesToHex(frame[common.FeedbackHeaderSize:]), records[0].Token, "long token")
}

func TestClientClose(t *testing.T) {
	gw := startMockGateway(t)
	client := dialTestClient(t, gw)

	if err := client.Close(); err != nil {
		t.Fatalf("Unexpected error closing: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Closing twice should succeed, got %v", err)
	}
	_, err := client.PushMessage(sequentialToken(), "Hello", 1, "default")
	expectTransportError(t, err, push.ErrChannelClosed, "push after close")
}

func TestNewClientEncryptedKey(t *testing.T) {
	gw := startMockGateway(t)
	certFile, keyFile := writeTestCredentials(t, "client", "secret")
	client, err := NewClient(gw.Host(), gw.Port(), certFile, keyFile, func() ([]byte, error) {
		return []byte("secret"), nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer client.Close()
	test_util.ExpectEquals(t, Connected, client.Channel().State(), "state")
}

func TestNewClientMissingCredentials(t *testing.T) {
	gw := startMockGateway(t)
	dir := t.TempDir()
	_, err := NewClient(gw.Host(), gw.Port(), dir+"/missing.crt", dir+"/missing.key", nil)
	var confErr *push.ConfigurationError
	test_util.ExpectErrorAs(t, err, &confErr, "missing credentials")
}
