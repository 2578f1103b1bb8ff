package apns

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestCertificate builds a self-signed certificate for transport and
// inspection tests.
func generateTestCertificate(t *testing.T, commonName string) (certPEM, keyPEM []byte, cert tls.Certificate) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	cert, err = tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	return certPEM, keyPEM, cert
}

func TestSummarizeCertificate(t *testing.T) {
	_, _, cert := generateTestCertificate(t, "Apple Push Services: com.example.app")
	summary, err := SummarizeCertificate(cert)
	require.NoError(t, err)
	assert.Equal(t, "Apple Push Services: com.example.app", summary.CommonName)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), summary.Expire, time.Minute)
	assert.False(t, summary.Expired())
	// a plain self-signed certificate carries no push extensions
	assert.Empty(t, summary.Topics)
	assert.Empty(t, summary.Environments)
}

func TestCertificateSummaryCanPush(t *testing.T) {
	summary := &CertificateSummary{BundleID: "com.example.app"}
	assert.True(t, summary.CanPush("com.example.app"))
	assert.False(t, summary.CanPush("com.example.other"))

	summary.Topics = []string{"com.example.app", "com.example.app.voip"}
	assert.True(t, summary.CanPush("com.example.app.voip"))
	assert.False(t, summary.CanPush("com.example.watch"))
}

func TestCertificateSummaryExpired(t *testing.T) {
	summary := &CertificateSummary{Expire: time.Now().Add(-time.Hour)}
	assert.True(t, summary.Expired())
	summary.Expire = time.Now().Add(time.Hour)
	assert.False(t, summary.Expired())
}

func TestCertificateSummaryString(t *testing.T) {
	summary := &CertificateSummary{
		CommonName:   "Apple Push Services: com.example.app",
		BundleID:     "com.example.app",
		Environments: []string{"development", "production"},
		Expire:       time.Date(2027, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t,
		"Apple Push Services: com.example.app (com.example.app, development+production, expires 2027-03-14)",
		summary.String())

	bare := &CertificateSummary{CommonName: "test"}
	assert.Contains(t, bare.String(), "unknown bundle")
	assert.Contains(t, bare.String(), "unknown environment")
}

func TestLoadCAPath(t *testing.T) {
	certPEM, _, _ := generateTestCertificate(t, "Test CA")
	capath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(capath, "ca.pem"), certPEM, 0o600))

	pool, err := loadCAPath(capath)
	require.NoError(t, err)
	assert.NotNil(t, pool)
}

func TestLoadCAPathMissing(t *testing.T) {
	_, err := loadCAPath(filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)
}

func TestLoadCertificateMissingFile(t *testing.T) {
	_, err := LoadCertificate(filepath.Join(t.TempDir(), "none.p12"), "")
	assert.Error(t, err)
}
