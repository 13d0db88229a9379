package binary_api

import (
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/uniqush/uniqush-apns/push"
)

// PassphraseFunc supplies the passphrase of an encrypted private key.
// It is only called when the key file turns out to be encrypted.
type PassphraseFunc func() ([]byte, error)

// EnvPassphrase returns a PassphraseFunc reading the passphrase from the environment variable name.
func EnvPassphrase(name string) PassphraseFunc {
	return func() ([]byte, error) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil, errors.New("environment variable " + name + " is not set")
		}
		return []byte(v), nil
	}
}

// LoadKeyPair loads a PEM certificate and a PEM private key, decrypting the key with passphrase if needed,
// and checks that the key belongs to the certificate.
// Both files may be the same file holding the certificate and the key.
func LoadKeyPair(certFile, keyFile string, passphrase PassphraseFunc) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, push.NewConfigurationError(certFile, err)
	}
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, push.NewConfigurationError(keyFile, err)
	}

	keyBlock := findPrivateKeyBlock(keyData)
	if keyBlock == nil {
		return tls.Certificate{}, push.NewConfigurationErrorf(keyFile, "no PEM private key found")
	}
	key, err := parsePrivateKey(keyBlock, passphrase)
	if err != nil {
		return tls.Certificate{}, push.NewConfigurationError(keyFile, err)
	}

	// Re-encode as unencrypted PKCS#8 so crypto/tls performs the certificate/key match check.
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return tls.Certificate{}, push.NewConfigurationError(keyFile, err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, push.NewConfigurationError(certFile, err)
	}
	return cert, nil
}

func findPrivateKeyBlock(data []byte) *pem.Block {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil
		}
		if strings.HasSuffix(block.Type, "PRIVATE KEY") {
			return block
		}
	}
}

func parsePrivateKey(block *pem.Block, passphrase PassphraseFunc) (interface{}, error) {
	raw := pem.EncodeToMemory(block)
	key, err := ssh.ParseRawPrivateKey(raw)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if passphrase == nil {
			return nil, errors.New("private key is encrypted and no passphrase source was given")
		}
		pass, perr := passphrase()
		if perr != nil {
			return nil, perr
		}
		key, err = ssh.ParseRawPrivateKeyWithPassphrase(raw, pass)
	}
	if err != nil {
		return nil, err
	}
	// OpenSSH keys come back as pointers, x509 marshalling wants the value.
	if k, ok := key.(*ed25519.PrivateKey); ok {
		return *k, nil
	}
	return key, nil
}
