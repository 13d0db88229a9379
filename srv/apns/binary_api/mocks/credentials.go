package mocks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// GenerateCertificate returns a self-signed ECDSA P-256 certificate and its unencrypted "EC PRIVATE KEY", both PEM encoded.
func GenerateCertificate(commonName string) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, nil, err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, err
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// GenerateKeyPair returns a self-signed certificate ready for a tls.Config.
func GenerateKeyPair(commonName string) (tls.Certificate, error) {
	certPEM, keyPEM, err := GenerateCertificate(commonName)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// EncryptKeyPEM encrypts a PEM private key with the legacy "Proc-Type: 4,ENCRYPTED" scheme OpenSSL writes.
func EncryptKeyPEM(keyPEM, passphrase []byte) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	// nolint: staticcheck
	encrypted, err := x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, passphrase, x509.PEMCipherAES256)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(encrypted), nil
}

// WriteCredentials writes name.cert and name.key into dir.
// A non-empty passphrase encrypts the key.
func WriteCredentials(dir, name string, passphrase []byte) (certFile, keyFile string, err error) {
	certPEM, keyPEM, err := GenerateCertificate(name)
	if err != nil {
		return "", "", err
	}
	if len(passphrase) > 0 {
		keyPEM, err = EncryptKeyPEM(keyPEM, passphrase)
		if err != nil {
			return "", "", err
		}
	}
	certFile = filepath.Join(dir, name+".cert")
	keyFile = filepath.Join(dir, name+".key")
	if err = os.WriteFile(certFile, certPEM, 0600); err != nil {
		return "", "", err
	}
	if err = os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		return "", "", err
	}
	return certFile, keyFile, nil
}
