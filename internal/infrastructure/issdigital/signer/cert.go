// Carga del certificado A1 desde .p12/.pfx (PKCS#12) o par PEM.

package signer

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	xpkcs12 "golang.org/x/crypto/pkcs12"
	"software.sslmate.com/src/go-pkcs12"
)

// LoadFromP12 carga certificado, llave privada y cadena desde un archivo .p12/.pfx.
// Intenta primero DecodeChain (soporta PBES2/AES de los certificados recientes) y cae
// al decodificador de x/crypto para archivos heredados.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	return DecodeP12(data, password)
}

// DecodeP12 igual que LoadFromP12 pero desde bytes.
func DecodeP12(data []byte, password string) (tls.Certificate, error) {
	priv, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		legacyPriv, legacyLeaf, legacyErr := xpkcs12.Decode(data, password)
		if legacyErr != nil {
			return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", errors.Join(err, legacyErr))
		}
		priv, leaf, chain = legacyPriv, legacyLeaf, nil
	}
	out := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  priv,
		Leaf:        leaf,
	}
	for _, c := range chain {
		out.Certificate = append(out.Certificate, c.Raw)
	}
	return out, nil
}

// LoadFromPEM carga certificado y llave desde archivos PEM (separados o combinados).
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	return cert, nil
}

// Load elige el formato por la extensión del archivo.
func Load(path, password string) (tls.Certificate, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".pem") || strings.HasSuffix(lower, ".crt") {
		return LoadFromPEM(path, "")
	}
	return LoadFromP12(path, password)
}

// CertInfo resumen legible del certificado para diagnóstico.
type CertInfo struct {
	Subject   string
	Issuer    string
	Serial    string
	NotBefore time.Time
	NotAfter  time.Time
}

// Describe extrae CertInfo del certificado hoja.
func Describe(cert tls.Certificate) (CertInfo, error) {
	leaf := cert.Leaf
	if leaf == nil {
		if len(cert.Certificate) == 0 {
			return CertInfo{}, errors.New("certificado vacío")
		}
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return CertInfo{}, fmt.Errorf("parsear certificado: %w", err)
		}
	}
	return CertInfo{
		Subject:   leaf.Subject.CommonName,
		Issuer:    leaf.Issuer.String(),
		Serial:    leaf.SerialNumber.Text(16),
		NotBefore: leaf.NotBefore,
		NotAfter:  leaf.NotAfter,
	}, nil
}

// Expired indica si el certificado está fuera de vigencia en t.
func (c CertInfo) Expired(t time.Time) bool {
	return t.Before(c.NotBefore) || t.After(c.NotAfter)
}
