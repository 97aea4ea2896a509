// Firma XMLDSig envelopada (RSA-SHA256, C14N) de los mensajes de ISS Digital.
// La Reference apunta al elemento con el Id indicado y la firma se agrega
// como último hijo de la raíz.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// XMLSigner firma documentos con el certificado A1 del prestador.
type XMLSigner struct {
	priv *rsa.PrivateKey
	leaf *x509.Certificate
}

// New valida que el certificado tenga llave RSA.
func New(cert tls.Certificate) (*XMLSigner, error) {
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("signer: el certificado debe incluir llave privada RSA")
	}
	leaf := cert.Leaf
	if leaf == nil {
		if len(cert.Certificate) == 0 {
			return nil, errors.New("signer: certificado vacío")
		}
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return nil, fmt.Errorf("signer: parsear certificado: %w", err)
		}
	}
	return &XMLSigner{priv: priv, leaf: leaf}, nil
}

// Sign firma el elemento cuyo atributo Id es referenceID (vacío = la raíz).
func (s *XMLSigner) Sign(xmlBytes []byte, referenceID string) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, errors.New("signer: XML vacío")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("signer: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("signer: documento sin raíz")
	}

	target, uri := root, ""
	if referenceID != "" {
		target = findByID(root, referenceID)
		if target == nil {
			return nil, fmt.Errorf("signer: no existe elemento con Id %q", referenceID)
		}
		uri = "#" + referenceID
	}

	// 1) Digest del elemento referenciado (antes de insertar la firma: transform enveloped)
	canonicalTarget, err := canonicalElement(target)
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar %q: %w", referenceID, err)
	}
	digest := sha256.Sum256(canonicalTarget)

	// 2) Signature al final de la raíz, SignatureValue pendiente
	sigDoc := etree.NewDocument()
	sigXML := buildSignature(uri, base64.StdEncoding.EncodeToString(digest[:]),
		base64.StdEncoding.EncodeToString(s.leaf.Raw))
	if err := sigDoc.ReadFromString(sigXML); err != nil {
		return nil, fmt.Errorf("signer: parsear Signature: %w", err)
	}
	sig := sigDoc.Root()
	root.AddChild(sig)

	// 3) SignedInfo canonicalizado en su lugar definitivo, con los namespaces de la raíz en alcance
	signedInfo := sig.SelectElement("ds:SignedInfo")
	signatureValue := sig.SelectElement("ds:SignatureValue")
	if signedInfo == nil || signatureValue == nil {
		return nil, errors.New("signer: Signature incompleta")
	}
	canonicalSignedInfo, err := canonicalElement(signedInfo)
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	rawSig, err := rsa.SignPKCS1v15(nil, s.priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("signer: firmar SignedInfo: %w", err)
	}
	signatureValue.SetText(base64.StdEncoding.EncodeToString(rawSig))

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("signer: serializar: %w", err)
	}
	return out.Bytes(), nil
}

// CanonicalizeXML aplica C14N inclusiva (sin comentarios).
func CanonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// canonicalElement serializa el subárbol con los namespaces heredados de sus ancestros,
// como lo exige C14N inclusiva para un subconjunto del documento.
func canonicalElement(el *etree.Element) ([]byte, error) {
	cp := el.Copy()
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if !isNamespaceDecl(a) {
				continue
			}
			if cp.SelectAttr(a.FullKey()) == nil {
				cp.CreateAttr(a.FullKey(), a.Value)
			}
		}
	}
	d := etree.NewDocument()
	d.SetRoot(cp)
	raw, err := d.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return CanonicalizeXML(raw)
}

func isNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}

func findByID(el *etree.Element, id string) *etree.Element {
	if el.SelectAttrValue("Id", "") == id {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func buildSignature(uri, digestB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:SignedInfo>`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<ds:Reference URI="` + uri + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + digestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	sb.WriteString(`<ds:SignatureValue></ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}
