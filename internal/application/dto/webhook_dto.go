package dto

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString acepta string o número en el JSON del proveedor.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	*f = FlexString(string(b))
	return nil
}

// FocusWebhook gatillo de Focus NFSe para NFS-e.
type FocusWebhook struct {
	Ref                string     `json:"ref"`
	Status             string     `json:"status"`
	Numero             FlexString `json:"numero"`
	NumeroNFSe         FlexString `json:"numero_nfse"`
	CodigoVerificacao  FlexString `json:"codigo_verificacao"`
	MotivoCancelamento string     `json:"motivo_cancelamento"`
	MensagemSefaz      string     `json:"mensagem_sefaz"`
	Mensagem           string     `json:"mensagem"`
}

// Number numero o numero_nfse.
func (w FocusWebhook) Number() string {
	if w.Numero != "" {
		return string(w.Numero)
	}
	return string(w.NumeroNFSe)
}

// Message mensagem_sefaz o mensagem.
func (w FocusWebhook) Message() string {
	if w.MensagemSefaz != "" {
		return w.MensagemSefaz
	}
	return w.Mensagem
}

// PlugNotasWebhook notificación de PlugNotas.
type PlugNotasWebhook struct {
	ID                string     `json:"id"`
	IDIntegracao      string     `json:"idIntegracao"`
	Situacao          string     `json:"situacao"`
	NumeroNFSe        FlexString `json:"numeroNfse"`
	CodigoVerificacao FlexString `json:"codigoVerificacao"`
	Mensagem          string     `json:"mensagem"`
}

// WebhookAck respuesta a los webhooks.
type WebhookAck struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// ISSNotaDTO NFS-e listada por ConsultarNotas.
type ISSNotaDTO struct {
	InscricaoPrestador string `json:"inscricao_prestador"`
	NumeroNFe          string `json:"numero_nfe"`
	CodigoVerificacao  string `json:"codigo_verificacao"`
}

// ISSNotasResponse respuesta de GET /api/iss-digital/notas.
type ISSNotasResponse struct {
	Notas   []ISSNotaDTO `json:"notas"`
	Alertas []string     `json:"alertas,omitempty"`
}
