package common

import "time"

// Frame layout of the legacy (command 1) notification format and of the feedback stream.
const (
	// CommandEnhancedNotification is the first byte of every notification frame.
	CommandEnhancedNotification uint8 = 1

	// TokenSize is the length of a binary device token.
	TokenSize = 32
	// MaxPayloadSize is the largest JSON payload the legacy format accepts.
	MaxPayloadSize = 256

	// NotificationHeaderSize covers command, identifier, expiry and token length.
	NotificationHeaderSize = 1 + 4 + 4 + 2
	// MaxNotificationFrameSize is the size of a frame carrying the largest payload.
	MaxNotificationFrameSize = NotificationHeaderSize + TokenSize + 2 + MaxPayloadSize

	// FeedbackHeaderSize covers timestamp and token length.
	FeedbackHeaderSize = 4 + 2
	// FeedbackFrameSize is the size of one feedback frame carrying a standard token.
	FeedbackFrameSize = FeedbackHeaderSize + TokenSize

	// DefaultExpiry is how long the gateway keeps an undelivered notification.
	DefaultExpiry = 24 * time.Hour
)

// Gateway and feedback endpoints.
const (
	GatewayHost        = "gateway.push.apple.com"
	GatewaySandboxHost = "gateway.sandbox.push.apple.com"
	GatewayPort        = 2195

	FeedbackHost        = "feedback.push.apple.com"
	FeedbackSandboxHost = "feedback.sandbox.push.apple.com"
	FeedbackPort        = 2196
)

// DefaultGatewayHost returns the production or sandbox gateway host.
func DefaultGatewayHost(sandbox bool) string {
	if sandbox {
		return GatewaySandboxHost
	}
	return GatewayHost
}

// FeedbackAddress returns the feedback host paired with a gateway host.
// Unknown hosts (e.g. a local test gateway) serve feedback themselves.
func FeedbackAddress(gatewayHost string) string {
	switch gatewayHost {
	case GatewayHost:
		return FeedbackHost
	case GatewaySandboxHost:
		return FeedbackSandboxHost
	}
	return gatewayHost
}
