package issdigital_test

import (
	"html"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/infrastructure/issdigital"
)

// soapReturn envuelve el XML de negocio escapado dentro de <{op}Return>, como responde el webservice.
func soapReturn(op, inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>` +
		`<ns1:` + op + `Response xmlns:ns1="http://sistemas.semfaz.saoluis.ma.gov.br/WsNFe2/LoteRps.jws">` +
		`<` + op + `Return>` + html.EscapeString(`<?xml version="1.0" encoding="UTF-8"?>`+inner) + `</` + op + `Return>` +
		`</ns1:` + op + `Response></soapenv:Body></soapenv:Envelope>`
}

const (
	innerLoteAceito = `<RetornoEnvioLoteRPS><Cabecalho><CodCidade>0921</CodCidade><Sucesso>true</Sucesso>` +
		`<NumeroLote>4521</NumeroLote></Cabecalho></RetornoEnvioLoteRPS>`
	innerLoteComNota = `<RetornoConsultaLote><Cabecalho><Sucesso>true</Sucesso><NumeroLote>4521</NumeroLote></Cabecalho>` +
		`<ListaNFSe><ConsultaNFSe><ChaveNFe><InscricaoPrestador>00000123456</InscricaoPrestador>` +
		`<NumeroNFe>987</NumeroNFe><CodigoVerificacao>AB12CD34</CodigoVerificacao></ChaveNFe></ConsultaNFSe></ListaNFSe>` +
		`</RetornoConsultaLote>`
	innerLoteErro = `<RetornoEnvioLoteRPS><Cabecalho><Sucesso>false</Sucesso></Cabecalho>` +
		`<Erros><Erro><Codigo>203</Codigo><Descricao>CNPJ invalido</Descricao></Erro></Erros></RetornoEnvioLoteRPS>`
	soapFault = `<?xml version="1.0" encoding="utf-8"?><soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<soapenv:Body><soapenv:Fault><faultcode>soapenv:Server</faultcode><faultstring>Assinatura invalida</faultstring>` +
		`</soapenv:Fault></soapenv:Body></soapenv:Envelope>`
)

func TestExtractInner_Desescapa(t *testing.T) {
	inner := issdigital.ExtractInner([]byte(soapReturn("enviar", innerLoteAceito)))
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>`+innerLoteAceito, string(inner))

	plano := []byte("<Retorno><Sucesso>true</Sucesso></Retorno>")
	assert.Equal(t, plano, issdigital.ExtractInner(plano), "sin escape se devuelve tal cual")
}

func TestParseResponse_LoteAceito(t *testing.T) {
	r, err := issdigital.ParseResponse([]byte(soapReturn("enviar", innerLoteAceito)))
	require.NoError(t, err)
	assert.True(t, r.SuccessSet)
	assert.True(t, r.Success)
	assert.False(t, r.Rejected())
	assert.Equal(t, "4521", r.NumeroLote)
	assert.Empty(t, r.Notes)
}

func TestParseResponse_ChaveNFe(t *testing.T) {
	r, err := issdigital.ParseResponse([]byte(soapReturn("consultarLote", innerLoteComNota)))
	require.NoError(t, err)
	require.Len(t, r.Notes, 1)
	assert.Equal(t, "987", r.Notes[0].NumeroNFe)
	assert.Equal(t, "AB12CD34", r.Notes[0].CodigoVerificacao)
	assert.Equal(t, "00000123456", r.Notes[0].InscricaoPrestador)
	assert.Contains(t, string(r.Inner), "<ChaveNFe>")
}

func TestParseResponse_Errores(t *testing.T) {
	r, err := issdigital.ParseResponse([]byte(soapReturn("enviar", innerLoteErro)))
	require.NoError(t, err)
	assert.True(t, r.Rejected())
	assert.Equal(t, "203", r.FirstErrorCode())
	assert.Equal(t, "203 - CNPJ invalido", r.ErrorMessage())
}

func TestParseResponse_SucessoFalsoSinDetalle(t *testing.T) {
	r, err := issdigital.ParseResponse([]byte(soapReturn("enviar", `<Retorno><Cabecalho><Sucesso>false</Sucesso></Cabecalho></Retorno>`)))
	require.NoError(t, err)
	assert.True(t, r.Rejected())
	assert.Equal(t, "lote rechazado sin detalle", r.ErrorMessage())
}

func TestParseResponse_Fault(t *testing.T) {
	r, err := issdigital.ParseResponse([]byte(soapFault))
	require.NoError(t, err)
	require.NotNil(t, r.Fault)
	assert.Equal(t, "soapenv:Server", r.Fault.Code)
	assert.Equal(t, "soapenv:Server Assinatura invalida", r.ErrorMessage())
}

func TestParseResponse_ISO88591(t *testing.T) {
	// "Descrição" en Latin-1: ç = 0xE7, ã = 0xE3.
	raw := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><Retorno><Alertas><Alerta><Codigo>1</Codigo><Descricao>Descri\xe7\xe3o</Descricao></Alerta></Alertas></Retorno>")
	r, err := issdigital.ParseResponse(raw)
	require.NoError(t, err)
	require.Len(t, r.Alerts, 1)
	assert.Equal(t, "Descrição", r.Alerts[0].Descricao)
}

func TestParseResponse_NoXML(t *testing.T) {
	_, err := issdigital.ParseResponse([]byte("Bad Gateway"))
	assert.Error(t, err)
}
