package binary_api

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/uniqush/uniqush-apns/push"
	"github.com/uniqush/uniqush-apns/test_util"
)

func expectConfigurationError(t *testing.T, err error, msg string) {
	t.Helper()
	var confErr *push.ConfigurationError
	test_util.ExpectErrorAs(t, err, &confErr, msg)
}

func TestLoadKeyPair(t *testing.T) {
	certFile, keyFile := writeTestCredentials(t, "plain", "")
	cert, err := LoadKeyPair(certFile, keyFile, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	test_util.ExpectEquals(t, 1, len(cert.Certificate), "certificate chain length")
}

func TestLoadKeyPairMissingFiles(t *testing.T) {
	certFile, keyFile := writeTestCredentials(t, "plain", "")
	missing := filepath.Join(t.TempDir(), "missing.pem")

	_, err := LoadKeyPair(missing, keyFile, nil)
	expectConfigurationError(t, err, "missing certificate")

	_, err = LoadKeyPair(certFile, missing, nil)
	expectConfigurationError(t, err, "missing key")
}

func TestLoadKeyPairMalformed(t *testing.T) {
	certFile, keyFile := writeTestCredentials(t, "plain", "")
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a pem file"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadKeyPair(garbage, keyFile, nil)
	expectConfigurationError(t, err, "malformed certificate")

	_, err = LoadKeyPair(certFile, garbage, nil)
	expectConfigurationError(t, err, "malformed key")
}

func TestLoadKeyPairMismatch(t *testing.T) {
	certFile, _ := writeTestCredentials(t, "first", "")
	_, otherKeyFile := writeTestCredentials(t, "second", "")
	_, err := LoadKeyPair(certFile, otherKeyFile, nil)
	expectConfigurationError(t, err, "key of another certificate")
}

func TestLoadKeyPairCombinedFile(t *testing.T) {
	certFile, keyFile := writeTestCredentials(t, "combined", "")
	certPEM, _ := os.ReadFile(certFile)
	keyPEM, _ := os.ReadFile(keyFile)
	combined := filepath.Join(t.TempDir(), "combined.pem")
	if err := os.WriteFile(combined, append(certPEM, keyPEM...), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKeyPair(combined, combined, nil); err != nil {
		t.Errorf("Expected a file holding both certificate and key to load: %v", err)
	}
}

func TestLoadKeyPairEncrypted(t *testing.T) {
	certFile, keyFile := writeTestCredentials(t, "encrypted", "s3cret")
	calls := 0
	passphrase := func() ([]byte, error) {
		calls++
		return []byte("s3cret"), nil
	}
	if _, err := LoadKeyPair(certFile, keyFile, passphrase); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	test_util.ExpectEquals(t, 1, calls, "passphrase callback calls")

	_, err := LoadKeyPair(certFile, keyFile, nil)
	expectConfigurationError(t, err, "encrypted key without passphrase source")

	wrong := func() ([]byte, error) { return []byte("wrong"), nil }
	_, err = LoadKeyPair(certFile, keyFile, wrong)
	expectConfigurationError(t, err, "wrong passphrase")

	failing := func() ([]byte, error) { return nil, errors.New("vault unavailable") }
	_, err = LoadKeyPair(certFile, keyFile, failing)
	expectConfigurationError(t, err, "failing passphrase source")
}

func TestPassphraseNotAskedForPlainKey(t *testing.T) {
	certFile, keyFile := writeTestCredentials(t, "plain", "")
	passphrase := func() ([]byte, error) {
		t.Error("passphrase callback should not be called for an unencrypted key")
		return nil, nil
	}
	if _, err := LoadKeyPair(certFile, keyFile, passphrase); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestEnvPassphrase(t *testing.T) {
	certFile, keyFile := writeTestCredentials(t, "encrypted", "from-env")
	t.Setenv("UNIQUSH_APNS_TEST_PASSPHRASE", "from-env")
	if _, err := LoadKeyPair(certFile, keyFile, EnvPassphrase("UNIQUSH_APNS_TEST_PASSPHRASE")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err := LoadKeyPair(certFile, keyFile, EnvPassphrase("UNIQUSH_APNS_TEST_UNSET_VARIABLE"))
	expectConfigurationError(t, err, "unset passphrase variable")
}
