package tlsutil

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"software.sslmate.com/src/go-pkcs12"
)

// Format distinguishes the two accepted certificate containers.
type Format int

const (
	FormatPEM Format = iota
	FormatPKCS12
)

func (f Format) String() string {
	if f == FormatPKCS12 {
		return "PKCS#12"
	}
	return "PEM"
}

// Identity describes the certificate material given on the command line.
// At most one identity is active per run.
type Identity struct {
	CertPath string
	KeyPath  string
	PassPath string
	Format   Format
}

// FromArgs validates the --ssl-* flag combination. A PEM certificate
// requires a paired key file; PKCS#12 archives carry their own key.
func FromArgs(certPath, keyPath, passPath string) (*Identity, error) {
	if certPath == "" {
		if keyPath != "" || passPath != "" {
			return nil, errors.New("--ssl-key/--ssl-pass provided without --ssl-cert")
		}
		return nil, nil
	}

	format, err := detectFormat(certPath)
	if err != nil {
		return nil, err
	}

	if format == FormatPEM && keyPath == "" {
		return nil, errors.Errorf("PEM certificate %s requires --ssl-key", certPath)
	}

	return &Identity{
		CertPath: certPath,
		KeyPath:  keyPath,
		PassPath: passPath,
		Format:   format,
	}, nil
}

// detectFormat starts from the extension hint and confirms it against the
// file contents: anything carrying a PEM armor line is PEM no matter what
// it is called.
func detectFormat(certPath string) (Format, error) {
	hint := FormatPEM
	switch strings.ToLower(filepath.Ext(certPath)) {
	case ".p12", ".pfx":
		hint = FormatPKCS12
	}

	data, err := os.ReadFile(certPath)
	if err != nil {
		return hint, errors.Wrapf(err, "read certificate %s", certPath)
	}

	if bytes.Contains(data, []byte("-----BEGIN")) {
		return FormatPEM, nil
	}
	if hint == FormatPKCS12 || (len(data) > 0 && data[0] == 0x30) {
		// Bare DER: a PKCS#12 archive opens with an ASN.1 SEQUENCE.
		return FormatPKCS12, nil
	}
	return hint, nil
}

// ServerConfig loads the identity and returns a TLS 1.2+ server
// configuration. Every failure names the path that caused it; callers
// treat any error as fatal before binding.
func (id *Identity) ServerConfig() (*tls.Config, error) {
	var cert tls.Certificate
	var err error

	switch id.Format {
	case FormatPKCS12:
		cert, err = id.loadPKCS12()
	default:
		cert, err = id.loadPEM()
	}
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// loadPEM reads the whole certificate chain and the paired private key
// (PKCS#8 or PKCS#1). tls.X509KeyPair verifies that the key signs for the
// leaf certificate, so a mismatched pair fails here rather than at
// handshake time.
func (id *Identity) loadPEM() (tls.Certificate, error) {
	certPEM, err := os.ReadFile(id.CertPath)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "read certificate %s", id.CertPath)
	}
	keyPEM, err := os.ReadFile(id.KeyPath)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "read private key %s", id.KeyPath)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "load key pair %s / %s", id.CertPath, id.KeyPath)
	}
	return cert, nil
}

// loadPKCS12 opens the archive with the passphrase file's trimmed
// contents. A wrong passphrase or an archive without a private key is
// fatal.
func (id *Identity) loadPKCS12() (tls.Certificate, error) {
	data, err := os.ReadFile(id.CertPath)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "read certificate %s", id.CertPath)
	}

	passphrase := ""
	if id.PassPath != "" {
		raw, err := os.ReadFile(id.PassPath)
		if err != nil {
			return tls.Certificate{}, errors.Wrapf(err, "read passphrase %s", id.PassPath)
		}
		passphrase = strings.TrimSpace(string(raw))
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, passphrase)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "decode PKCS#12 archive %s", id.CertPath)
	}
	if key == nil {
		return tls.Certificate{}, errors.Errorf("no private key in PKCS#12 archive %s", id.CertPath)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, ca := range chain {
		cert.Certificate = append(cert.Certificate, ca.Raw)
	}
	return cert, nil
}

// LeafCertificate parses and returns the leaf of a loaded config, for
// startup diagnostics.
func LeafCertificate(cfg *tls.Config) (*x509.Certificate, error) {
	if len(cfg.Certificates) == 0 || len(cfg.Certificates[0].Certificate) == 0 {
		return nil, errors.New("no certificate loaded")
	}
	if cfg.Certificates[0].Leaf != nil {
		return cfg.Certificates[0].Leaf, nil
	}
	return x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
}
