package focusnfe

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// flexString acepta string o número en el JSON (numero, codigo_verificacao).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(b))
	return nil
}

// Erro entrada de "erros".
type Erro struct {
	Codigo   flexString `json:"codigo"`
	Mensagem string     `json:"mensagem"`
	Correcao string     `json:"correcao"`
}

// NFSeResponse campos relevantes de la respuesta de /v2/nfsen (envío, consulta o cancelación).
type NFSeResponse struct {
	Ref               string     `json:"ref"`
	Status            string     `json:"status"`
	Numero            flexString `json:"numero"`
	NumeroNFSe        flexString `json:"numero_nfse"`
	CodigoVerificacao flexString `json:"codigo_verificacao"`
	DataEmissao       string     `json:"data_emissao"`
	URL               string     `json:"url"`
	URLDanfse         string     `json:"url_danfse"`
	URLXML            string     `json:"url_xml"`
	CaminhoXML        string     `json:"caminho_xml_nota_fiscal"`
	MensagemSefaz     string     `json:"mensagem_sefaz"`
	Codigo            flexString `json:"codigo"`
	Mensagem          string     `json:"mensagem"`
	Erros             []Erro     `json:"erros"`
	Erro              string     `json:"erro"` // cuerpo no JSON envuelto
}

// ParseNFSeResponse decodifica el cuerpo; uno que no es JSON queda en Erro.
func ParseNFSeResponse(body []byte) *NFSeResponse {
	var r NFSeResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return &NFSeResponse{Erro: strings.TrimSpace(string(body))}
	}
	return &r
}

// IsBusinessError el proveedor devolvió un error de negocio estructurado.
func (r *NFSeResponse) IsBusinessError() bool {
	return r.Codigo != "" || r.Mensagem != "" || len(r.Erros) > 0
}

// NumeroNota número de la NFS-e, venga como "numero" o "numero_nfse".
func (r *NFSeResponse) NumeroNota() string {
	if r.Numero != "" {
		return string(r.Numero)
	}
	return string(r.NumeroNFSe)
}

// XMLPath ruta o URL del XML autorizado.
func (r *NFSeResponse) XMLPath() string {
	if r.URLXML != "" {
		return r.URLXML
	}
	return r.CaminhoXML
}

// Message texto del proveedor tal cual: erros, luego mensagem, luego mensagem_sefaz.
func (r *NFSeResponse) Message() string {
	if len(r.Erros) > 0 {
		parts := make([]string, 0, len(r.Erros))
		for _, e := range r.Erros {
			if e.Codigo != "" {
				parts = append(parts, string(e.Codigo)+": "+e.Mensagem)
			} else {
				parts = append(parts, e.Mensagem)
			}
		}
		return strings.Join(parts, "; ")
	}
	if r.Mensagem != "" {
		return r.Mensagem
	}
	if r.MensagemSefaz != "" {
		return r.MensagemSefaz
	}
	return r.Erro
}

// ErrorCode código del error de negocio.
func (r *NFSeResponse) ErrorCode() string {
	if r.Codigo != "" {
		return string(r.Codigo)
	}
	if len(r.Erros) > 0 {
		return string(r.Erros[0].Codigo)
	}
	return ""
}

// IssuedAt fecha de emisión si viene en un formato reconocible.
func (r *NFSeResponse) IssuedAt() *time.Time {
	if r.DataEmissao == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, r.DataEmissao, brt); err == nil {
			return &t
		}
	}
	return nil
}
