package focusnfe_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/infrastructure/focusnfe"
)

var fixedNow = time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)

func buildFocusInvoice() *entity.Invoice {
	return &entity.Invoice{
		Provider:           entity.ProviderFocusNFe,
		Reference:          "NFSE-FOCUS-1",
		ServiceAmount:      decimal.RequireFromString("100.00"),
		ISSRate:            decimal.NewFromInt(5),
		ServiceCode:        "08.01",
		CNAE:               "8541-4/00",
		ServiceDescription: "Mensalidade\tescolar\r\nmarço",
		Issuer: entity.Issuer{
			CNPJ:                  "12.345.678/0001-95",
			MunicipalRegistration: "123.456",
			TaxRegime:             "1",
			Address:               entity.Address{StateCode: "21", CityCode: "2111300"},
		},
		Payer: entity.Payer{
			Document: "123.456.789-09",
			Name:     "Maria da Silva",
			Email:    "maria@example.com",
			Phone:    "(98) 98888-7777",
			Address: entity.Address{
				Street: "Rua Grande", Number: "100", District: "Centro",
				ZipCode: "65010-000", StateCode: "21", CityCode: "11300",
			},
		},
	}
}

func payloadMap(t *testing.T, inv *entity.Invoice) map[string]any {
	t.Helper()
	p, err := focusnfe.BuildPayload(inv, fixedNow)
	require.NoError(t, err)
	b, err := p.Marshal()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

// Escenario A: 100.00, "08.01", tomador CPF.
func TestBuildPayload_PlanoConCodigoNacional(t *testing.T) {
	m := payloadMap(t, buildFocusInvoice())

	assert.Equal(t, "080100", m["codigo_tributacao_nacional_iss"])
	for _, nested := range []string{"servico", "prestador", "tomador"} {
		assert.NotContains(t, m, nested, "sin grupos anidados")
	}
	assert.Equal(t, "12345678909", m["cpf_tomador"])
	assert.NotContains(t, m, "cnpj_tomador")
	assert.Equal(t, "12345678000195", m["cnpj_prestador"])
	assert.Equal(t, "123456", m["inscricao_municipal_prestador"])
	assert.Equal(t, "2111300", m["codigo_municipio_emissora"])
	assert.Equal(t, "2111300", m["codigo_municipio_tomador"], "UF + municipio de 5 dígitos")
	assert.Equal(t, "2111300", m["codigo_municipio_prestacao"])
	assert.Equal(t, "65010000", m["cep_tomador"])
	assert.Equal(t, 100.0, m["valor_servico"])
	assert.Equal(t, float64(3), m["codigo_opcao_simples_nacional"])
	assert.Equal(t, float64(1), m["tipo_retencao_iss"])
	assert.Equal(t, "854140000", m["codigo_tributacao_municipal_iss"])
	assert.Equal(t, "8541400", m["codigo_cnae"])
	assert.Equal(t, "Mensalidade escolar março", m["descricao_servico"])
	assert.Equal(t, "2024-03-15T10:00:00-03:00", m["data_emissao"])
	assert.Equal(t, "2024-03-15", m["data_competencia"])
}

func TestBuildPayload_PercentuaisSiempre(t *testing.T) {
	m := payloadMap(t, buildFocusInvoice())
	for _, k := range []string{
		"percentual_total_tributos_federais",
		"percentual_total_tributos_estaduais",
		"percentual_total_tributos_municipais",
	} {
		assert.Equal(t, 0.0, m[k], k)
	}
}

func TestBuildPayload_Determinista(t *testing.T) {
	a, err := focusnfe.BuildPayload(buildFocusInvoice(), fixedNow)
	require.NoError(t, err)
	b, err := focusnfe.BuildPayload(buildFocusInvoice(), fixedNow)
	require.NoError(t, err)
	ab, _ := a.Marshal()
	bb, _ := b.Marshal()
	assert.Equal(t, ab, bb)
}

func TestBuildPayload_TomadorCNPJYTelefoneCorto(t *testing.T) {
	inv := buildFocusInvoice()
	inv.Payer.Document = "11.222.333/0001-81"
	inv.Payer.Phone = "3232-1010"
	inv.ISSWithheld = true
	inv.Issuer.TaxRegime = "3"
	m := payloadMap(t, inv)

	assert.Equal(t, "11222333000181", m["cnpj_tomador"])
	assert.NotContains(t, m, "cpf_tomador")
	assert.NotContains(t, m, "telefone_tomador", "menos de 10 dígitos no se envía")
	assert.Equal(t, float64(2), m["tipo_retencao_iss"])
	assert.Equal(t, float64(1), m["codigo_opcao_simples_nacional"])
}

func TestBuildPayload_TelefoneYRegimeEspecial(t *testing.T) {
	inv := buildFocusInvoice()
	inv.Issuer.SpecialTaxRegime = "6"
	m := payloadMap(t, inv)
	assert.Equal(t, "98988887777", m["telefone_tomador"])
	assert.Equal(t, float64(6), m["regime_especial_tributacao"])

	inv.Issuer.SpecialTaxRegime = "ME"
	_, err := focusnfe.BuildPayload(inv, fixedNow)
	assert.True(t, domain.IsValidation(err))
}

func TestBuildPayload_Itens(t *testing.T) {
	inv := buildFocusInvoice()
	inv.LineItems = []entity.LineItem{
		{Description: "Matrícula", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("40"), Taxable: true},
		{Description: "Material\ndidático", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("20"), Taxable: false},
	}
	m := payloadMap(t, inv)
	items, ok := m["itens"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	second := items[1].(map[string]any)
	assert.Equal(t, "Material didático", second["discriminacao"])
	assert.Equal(t, 60.0, second["valor_total"])
	assert.Equal(t, false, second["tributavel"])
}

func TestBuildPayload_SinCodigoDeServicio(t *testing.T) {
	inv := buildFocusInvoice()
	inv.ServiceCode = ""
	_, err := focusnfe.BuildPayload(inv, fixedNow)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "service_code", ve.Field)
}
