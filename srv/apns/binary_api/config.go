package binary_api

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/uniqush/uniqush-apns/push"
)

const (
	// DefaultPollTimeout bounds how long PendingBytes waits for data that is already in flight.
	DefaultPollTimeout = 10 * time.Millisecond
	// DefaultConnectTimeout bounds the TCP connect.
	DefaultConnectTimeout = 30 * time.Second
)

// Config describes one gateway endpoint and the client credentials used to authenticate to it.
type Config struct {
	Host     string `validate:"required,hostname_rfc1123|ip"`
	Port     int    `validate:"min=1,max=65535"`
	CertFile string `validate:"required"`
	KeyFile  string `validate:"required"`

	// Passphrase is only needed for encrypted keys.
	Passphrase PassphraseFunc `validate:"-"`

	// Zero values select the defaults above.
	ConnectTimeout time.Duration `validate:"min=0"`
	PollTimeout    time.Duration `validate:"min=0"`
}

var validate = validator.New()

// Validate reports the first invalid field as a ConfigurationError.
func (c *Config) Validate() error {
	if c == nil {
		return push.NewConfigurationErrorf("", "nil config")
	}
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return push.NewConfigurationErrorf("", "invalid %s %v: failed %q check", fe.Field(), fe.Value(), fe.Tag())
		}
		return push.NewConfigurationError("", err)
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%v:%v", c.Host, c.Port)
}

func (c *Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return c.ConnectTimeout
}

func (c *Config) pollTimeout() time.Duration {
	if c.PollTimeout <= 0 {
		return DefaultPollTimeout
	}
	return c.PollTimeout
}
