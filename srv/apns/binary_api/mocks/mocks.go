// Package mocks implements a mock APNS gateway for unit tests.
// The gateway is a real TLS 1.2 listener on the loopback interface which requires a client certificate,
// records the notification frames it receives and can stream feedback frames back to the client.
package mocks

import (
	"crypto/tls"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// APNSNotification is a command 1 frame as received by the gateway.
type APNSNotification struct {
	Command    uint8
	ID         uint32
	Expiry     uint32
	TokenLen   uint16
	DevToken   []byte
	PayloadLen uint16
	Payload    []byte
}

func (self *APNSNotification) String() string {
	return fmt.Sprintf("command=%v; id=%v; expiry=%v; token=%v; payload=%v",
		self.Command, self.ID, self.Expiry, hex.EncodeToString(self.DevToken), string(self.Payload))
}

// ReadNotification reads one command 1 frame from r.
func ReadNotification(r io.Reader) (*APNSNotification, error) {
	notif := new(APNSNotification)
	var header [11]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	notif.Command = header[0]
	if notif.Command != 1 {
		return nil, fmt.Errorf("Unknown Command %d in notification frame", int(notif.Command))
	}
	notif.ID = binary.BigEndian.Uint32(header[1:5])
	notif.Expiry = binary.BigEndian.Uint32(header[5:9])
	notif.TokenLen = binary.BigEndian.Uint16(header[9:11])

	notif.DevToken = make([]byte, notif.TokenLen)
	if _, err := io.ReadFull(r, notif.DevToken); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &notif.PayloadLen); err != nil {
		return nil, err
	}
	notif.Payload = make([]byte, notif.PayloadLen)
	if _, err := io.ReadFull(r, notif.Payload); err != nil {
		return nil, err
	}
	return notif, nil
}

// FeedbackFrame builds one feedback frame the way the gateway sends it.
func FeedbackFrame(timestamp uint32, token []byte) []byte {
	frame := make([]byte, 6+len(token))
	binary.BigEndian.PutUint32(frame[0:4], timestamp)
	binary.BigEndian.PutUint16(frame[4:6], uint16(len(token)))
	copy(frame[6:], token)
	return frame
}

// MockGateway accepts any number of TLS connections.
type MockGateway struct {
	listener net.Listener
	accepted chan *tls.Conn
	notifs   chan *APNSNotification

	mutex  sync.Mutex
	conns  []*tls.Conn
	closed bool
	wg     sync.WaitGroup
}

// NewMockGateway listens on an ephemeral loopback port with a freshly generated server certificate.
func NewMockGateway() (*MockGateway, error) {
	cert, err := GenerateKeyPair("mock-gateway")
	if err != nil {
		return nil, err
	}
	conf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
	}
	listener, err := tls.Listen("tcp", "127.0.0.1:0", conf)
	if err != nil {
		return nil, err
	}
	g := &MockGateway{
		listener: listener,
		accepted: make(chan *tls.Conn, 16),
		notifs:   make(chan *APNSNotification, 100),
	}
	g.wg.Add(1)
	go g.serve()
	return g, nil
}

// Host returns the IP address the gateway listens on.
func (g *MockGateway) Host() string {
	host, _, _ := net.SplitHostPort(g.listener.Addr().String())
	return host
}

// Port returns the port the gateway listens on.
func (g *MockGateway) Port() int {
	_, port, _ := net.SplitHostPort(g.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

func (g *MockGateway) serve() {
	defer g.wg.Done()
	for {
		c, err := g.listener.Accept()
		if err != nil {
			return
		}
		g.wg.Add(1)
		go g.handle(c.(*tls.Conn))
	}
}

func (g *MockGateway) handle(conn *tls.Conn) {
	defer g.wg.Done()
	if err := conn.Handshake(); err != nil {
		conn.Close()
		return
	}
	g.mutex.Lock()
	if g.closed {
		g.mutex.Unlock()
		conn.Close()
		return
	}
	g.conns = append(g.conns, conn)
	g.mutex.Unlock()
	select {
	case g.accepted <- conn:
	default:
	}

	for {
		notif, err := ReadNotification(conn)
		if err != nil {
			return
		}
		select {
		case g.notifs <- notif:
		default:
		}
	}
}

// NextConn waits for the next connection that completed its handshake.
func (g *MockGateway) NextConn(timeout time.Duration) (*tls.Conn, error) {
	select {
	case conn := <-g.accepted:
		return conn, nil
	case <-time.After(timeout):
		return nil, errors.New("no connection accepted by the mock gateway")
	}
}

// NextNotification waits for the next notification frame received on any connection.
func (g *MockGateway) NextNotification(timeout time.Duration) (*APNSNotification, error) {
	select {
	case notif := <-g.notifs:
		return notif, nil
	case <-time.After(timeout):
		return nil, errors.New("no notification received by the mock gateway")
	}
}

// Close stops listening, closes every accepted connection and waits for the handlers to exit.
func (g *MockGateway) Close() {
	g.listener.Close()
	g.mutex.Lock()
	g.closed = true
	for _, conn := range g.conns {
		conn.Close()
	}
	g.conns = nil
	g.mutex.Unlock()
	g.wg.Wait()
}
