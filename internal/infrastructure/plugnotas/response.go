package plugnotas

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// SendResponse respuesta de POST /nfse.
type SendResponse struct {
	Documents []struct {
		IDIntegracao string `json:"idIntegracao"`
		Prestador    string `json:"prestador"`
		ID           string `json:"id"`
	} `json:"documents"`
	Message  string    `json:"message"`
	Protocol string    `json:"protocol"`
	Error    *APIError `json:"error"`
}

// APIError cuerpo de error {"error": {"message": ..., "data": ...}}.
type APIError struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Record un registro de /consultar/{id}.
type Record struct {
	ID                  string `json:"id"`
	IDIntegracao        string `json:"idIntegracao"`
	Situacao            string `json:"situacao"`
	NumeroNFSe          string `json:"numeroNfse"`
	CodigoVerificacao   string `json:"codigoVerificacao"`
	Protocolo           string `json:"protocolo"`
	ProtocoloPrefeitura string `json:"protocoloPrefeitura"`
	Emissao             string `json:"emissao"`
	Mensagem            string `json:"mensagem"`
	Message             string `json:"message"`
	PDF                 string `json:"pdf"`
	XML                 string `json:"xml"`
}

// Verification código de verificación o, en su falta, el protocolo de la prefectura.
func (r Record) Verification() string {
	for _, v := range []string{r.CodigoVerificacao, r.ProtocoloPrefeitura, r.Protocolo} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Text mensaje del proveedor.
func (r Record) Text() string {
	if r.Mensagem != "" {
		return r.Mensagem
	}
	return r.Message
}

var brt = time.FixedZone("BRT", -3*60*60)

// IssuedAt emisión "dd/mm/aaaa" (o RFC 3339).
func (r Record) IssuedAt() *time.Time {
	if r.Emissao == "" {
		return nil
	}
	for _, layout := range []string{"02/01/2006", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, r.Emissao, brt); err == nil {
			return &t
		}
	}
	return nil
}

// ParseRecords la consulta devuelve un objeto o una lista.
func ParseRecords(body []byte) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var list []Record
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one Record
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	if one.ID == "" && one.Situacao == "" {
		return nil, nil
	}
	return []Record{one}, nil
}

// ErrorMessage extrae error.message, o message, o el texto crudo.
func ErrorMessage(body []byte) (msg string, structured bool) {
	var e struct {
		Error   *APIError `json:"error"`
		Message string    `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return strings.TrimSpace(string(body)), false
	}
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message, true
	}
	if e.Message != "" {
		return e.Message, true
	}
	return strings.TrimSpace(string(body)), false
}
