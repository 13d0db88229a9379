package binary_api

import (
	"testing"
	"time"

	"github.com/uniqush/uniqush-apns/srv/apns/binary_api/mocks"
)

const testTimeout = 5 * time.Second

// writeTestCredentials writes a client certificate and key into a temp dir; a non-empty passphrase encrypts the key.
func writeTestCredentials(t *testing.T, name string, passphrase string) (certFile, keyFile string) {
	t.Helper()
	certFile, keyFile, err := mocks.WriteCredentials(t.TempDir(), name, []byte(passphrase))
	if err != nil {
		t.Fatalf("Failed to write credentials: %v", err)
	}
	return certFile, keyFile
}

func startMockGateway(t *testing.T) *mocks.MockGateway {
	t.Helper()
	gw, err := mocks.NewMockGateway()
	if err != nil {
		t.Fatalf("Failed to start the mock gateway: %v", err)
	}
	t.Cleanup(gw.Close)
	return gw
}

// connectTestChannel returns a channel connected to gw, closed when the test ends.
func connectTestChannel(t *testing.T, gw *mocks.MockGateway) *SecureChannel {
	t.Helper()
	certFile, keyFile := writeTestCredentials(t, "client", "")
	channel, err := NewSecureChannel(certFile, keyFile, nil)
	if err != nil {
		t.Fatalf("Failed to build channel: %v", err)
	}
	if err := channel.Connect(gw.Host(), gw.Port()); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { channel.Close() })
	return channel
}

func dialTestClient(t *testing.T, gw *mocks.MockGateway) *Client {
	t.Helper()
	certFile, keyFile := writeTestCredentials(t, "client", "")
	client, err := Dial(&Config{
		Host:     gw.Host(),
		Port:     gw.Port(),
		CertFile: certFile,
		KeyFile:  keyFile,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to dial the mock gateway: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
