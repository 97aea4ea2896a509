package issdigital

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"
)

// Note NFS-e generada (ChaveNFe).
type Note struct {
	InscricaoPrestador string
	NumeroNFe          string
	CodigoVerificacao  string
}

// Message Erro o Alerta del webservice.
type Message struct {
	Codigo    string
	Descricao string
}

func (m Message) String() string {
	if m.Codigo == "" {
		return m.Descricao
	}
	return m.Codigo + " - " + m.Descricao
}

// Fault SOAP Fault.
type Fault struct {
	Code   string
	String string
}

// Response respuesta de negocio ya extraída del sobre SOAP.
type Response struct {
	Success    bool
	SuccessSet bool
	NumeroLote string
	Notes      []Note
	Errors     []Message
	Alerts     []Message
	Fault      *Fault
	Inner      []byte // XML de negocio desescapado
}

// Rejected hay errores o Sucesso=false.
func (r *Response) Rejected() bool {
	return len(r.Errors) > 0 || (r.SuccessSet && !r.Success)
}

// ErrorMessage mensajes de error unidos, tal como los envió el webservice.
func (r *Response) ErrorMessage() string {
	if r.Fault != nil {
		return strings.TrimSpace(r.Fault.Code + " " + r.Fault.String)
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.String())
	}
	if len(parts) == 0 && r.SuccessSet && !r.Success {
		return "lote rechazado sin detalle"
	}
	return strings.Join(parts, "; ")
}

// FirstErrorCode código del primer error, para la bitácora.
func (r *Response) FirstErrorCode() string {
	if r.Fault != nil {
		return r.Fault.Code
	}
	if len(r.Errors) > 0 {
		return r.Errors[0].Codigo
	}
	return ""
}

var escapedReturnEnd = regexp.MustCompile(`</[A-Za-z0-9_:]*Return>`)

// ExtractInner devuelve el XML de negocio: el webservice lo entrega escapado
// dentro de <...Return>. Si no viene escapado devuelve raw tal cual.
func ExtractInner(raw []byte) []byte {
	s := string(raw)
	if !strings.Contains(s, "&lt;") {
		return raw
	}
	start := strings.Index(s, "&lt;?xml")
	if start < 0 {
		start = strings.Index(s, "&lt;")
	}
	rest := s[start:]
	if loc := escapedReturnEnd.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return []byte(html.UnescapeString(rest))
}

// ParseResponse interpreta la respuesta por nombre local de las etiquetas, sin depender de prefijos.
func ParseResponse(raw []byte) (*Response, error) {
	r := &Response{}

	outer, err := readDoc(raw)
	if err != nil {
		return nil, fmt.Errorf("iss: respuesta no es XML: %w", err)
	}
	if f := findLocal(outer.Root(), "Fault"); f != nil {
		r.Fault = &Fault{Code: childText(f, "faultcode"), String: childText(f, "faultstring")}
		return r, nil
	}

	r.Inner = ExtractInner(raw)
	doc := outer
	if bytes.Contains(raw, []byte("&lt;")) {
		if doc, err = readDoc(r.Inner); err != nil {
			return nil, fmt.Errorf("iss: XML interno inválido: %w", err)
		}
	}
	walk(doc.Root(), r)
	return r, nil
}

func walk(el *etree.Element, r *Response) {
	if el == nil {
		return
	}
	switch el.Tag {
	case "Sucesso":
		r.SuccessSet = true
		r.Success = strings.EqualFold(strings.TrimSpace(el.Text()), "true")
	case "NumeroLote":
		if r.NumeroLote == "" {
			r.NumeroLote = strings.TrimSpace(el.Text())
		}
	case "ChaveNFe":
		n := Note{
			InscricaoPrestador: childText(el, "InscricaoPrestador"),
			NumeroNFe:          childText(el, "NumeroNFe"),
			CodigoVerificacao:  childText(el, "CodigoVerificacao"),
		}
		if n.NumeroNFe != "" {
			r.Notes = append(r.Notes, n)
		}
		return
	case "Erro":
		if m := message(el); m.Descricao != "" || m.Codigo != "" {
			r.Errors = append(r.Errors, m)
		}
		return
	case "Alerta":
		if m := message(el); m.Descricao != "" || m.Codigo != "" {
			r.Alerts = append(r.Alerts, m)
		}
		return
	}
	for _, c := range el.ChildElements() {
		walk(c, r)
	}
}

func message(el *etree.Element) Message {
	m := Message{Codigo: childText(el, "Codigo"), Descricao: childText(el, "Descricao")}
	if m.Codigo == "" && m.Descricao == "" && len(el.ChildElements()) == 0 {
		m.Descricao = strings.TrimSpace(el.Text())
	}
	return m
}

// childText texto del primer descendiente con ese nombre local.
func childText(el *etree.Element, local string) string {
	if c := findLocal(el, local); c != nil && c != el {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func findLocal(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == local {
		return el
	}
	for _, c := range el.ChildElements() {
		if f := findLocal(c, local); f != nil {
			return f
		}
	}
	return nil
}

func readDoc(b []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("documento vacío")
	}
	return doc, nil
}

// charsetReader el webservice a veces declara ISO-8859-1.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return input, nil
}
