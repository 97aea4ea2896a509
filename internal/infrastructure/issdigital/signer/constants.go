// Constantes XMLDSig para la firma envelopada de los lotes de ISS Digital.

package signer

// Namespaces y algoritmos XMLDSig.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// Ids de los elementos firmados en cada mensaje.
const (
	ConsultaNotasID  = "Consulta:notas"
	ConsultaRPSLotID = "lote:consulta"
)

// LotID Id del elemento <Lote> de un envío.
func LotID(numero string) string { return "lote:" + numero }
