package apns

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// LoadCertificate reads a .p12 bundle and returns the client certificate it
// contains, ready to be assigned to Config.Certificate. An expired
// certificate is rejected here rather than by a handshake failure later.
func LoadCertificate(filename, password string) (*tls.Certificate, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	privateKey, leaf, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, err
	}
	if time.Now().After(leaf.NotAfter) {
		return nil, fmt.Errorf("certificate %q expired %s",
			leaf.Subject.CommonName, leaf.NotAfter.Format("2006-01-02"))
	}
	return &tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  privateKey,
		Leaf:        leaf,
	}, nil
}

// loadCAPath reads every file in a directory of trusted CA certificates and
// returns the resulting pool. PEM blocks that fail to parse are skipped.
func loadCAPath(capath string) (*x509.CertPool, error) {
	entries, err := os.ReadDir(capath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(capath, entry.Name()))
		if err != nil {
			continue
		}
		pool.AppendCertsFromPEM(data)
	}
	return pool, nil
}

// CertificateSummary describes the push capabilities of a client
// certificate: which app it belongs to, which topics and environments it may
// push to, and when it stops working. The daemon and the tools log it at
// startup so a wrong certificate is caught before the first delivery fails.
type CertificateSummary struct {
	CommonName   string
	BundleID     string
	Topics       []string
	Environments []string // "development", "production"
	Expire       time.Time
}

// Apple-specific X.509 identifiers carried by push certificates.
var (
	oidUserID          = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}
	oidPushDevelopment = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 1}
	oidPushProduction  = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 2}
	oidPushTopics      = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 6}
)

// SummarizeCertificate inspects a client certificate and reports its push
// capabilities.
func SummarizeCertificate(certificate tls.Certificate) (*CertificateSummary, error) {
	leaf := certificate.Leaf
	if leaf == nil {
		var err error
		if leaf, err = x509.ParseCertificate(certificate.Certificate[0]); err != nil {
			return nil, err
		}
	}
	summary := &CertificateSummary{
		CommonName: leaf.Subject.CommonName,
		Expire:     leaf.NotAfter,
	}
	for _, attr := range leaf.Subject.Names {
		if attr.Type.Equal(oidUserID) {
			summary.BundleID, _ = attr.Value.(string)
		}
	}
	for _, ext := range leaf.Extensions {
		switch {
		case ext.Id.Equal(oidPushDevelopment):
			summary.Environments = append(summary.Environments, "development")
		case ext.Id.Equal(oidPushProduction):
			summary.Environments = append(summary.Environments, "production")
		case ext.Id.Equal(oidPushTopics):
			summary.Topics = parseTopicsExtension(ext.Value)
		}
	}
	return summary, nil
}

// parseTopicsExtension decodes the topics extension: a sequence of topic
// names, each followed by a name list this package has no use for.
func parseTopicsExtension(value []byte) []string {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(value, &raw); err != nil {
		return nil
	}
	var topics []string
	for rest := raw.Bytes; len(rest) > 0; {
		var err error
		var topic string
		if rest, err = asn1.Unmarshal(rest, &topic); err != nil {
			break
		}
		topics = append(topics, topic)
		var names []string
		if rest, err = asn1.Unmarshal(rest, &names); err != nil {
			break
		}
	}
	return topics
}

// Expired возвращает true, если сертификат уже недействителен.
func (s *CertificateSummary) Expired() bool {
	return time.Now().After(s.Expire)
}

// CanPush reports whether the certificate may push to the given topic.
// Certificates without a topics extension cover only their own bundle.
func (s *CertificateSummary) CanPush(topic string) bool {
	if len(s.Topics) == 0 {
		return topic == s.BundleID
	}
	for _, name := range s.Topics {
		if name == topic {
			return true
		}
	}
	return false
}

// String returns the one-line form the tools log at startup.
func (s *CertificateSummary) String() string {
	bundle := s.BundleID
	if bundle == "" {
		bundle = "unknown bundle"
	}
	environments := strings.Join(s.Environments, "+")
	if environments == "" {
		environments = "unknown environment"
	}
	return fmt.Sprintf("%s (%s, %s, expires %s)",
		s.CommonName, bundle, environments, s.Expire.Format("2006-01-02"))
}
