package pdf_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/infrastructure/pdf"
)

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 0,00", pdf.FormatBRL(decimal.Zero))
	assert.Equal(t, "R$ 150,50", pdf.FormatBRL(decimal.RequireFromString("150.5")))
	assert.Equal(t, "R$ 1.234.567,89", pdf.FormatBRL(decimal.RequireFromString("1234567.891")))
	assert.Equal(t, "-R$ 10,00", pdf.FormatBRL(decimal.NewFromInt(-10)))
}

func TestFormatDocument(t *testing.T) {
	assert.Equal(t, "123.456.789-09", pdf.FormatDocument("12345678909"))
	assert.Equal(t, "12.345.678/0001-95", pdf.FormatDocument("12345678000195"))
	assert.Equal(t, "—", pdf.FormatDocument(""))
}

func TestFormatAddress(t *testing.T) {
	a := entity.Address{Street: "Rua Grande", Number: "100", District: "Centro", CityName: "São Luís", CityCode: "2111300"}
	assert.Equal(t, "Rua Grande, 100 - Centro - São Luís/MA", pdf.FormatAddress(a))
	assert.Equal(t, "—", pdf.FormatAddress(entity.Address{}))
}

func TestRPSEspelho_GeneraPDF(t *testing.T) {
	issued := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	inv := &entity.Invoice{
		Reference:          "NFSE-0001",
		Status:             entity.StatusAuthorized,
		Number:             "987",
		VerificationCode:   "AB12CD34",
		ServiceAmount:      decimal.RequireFromString("100.00"),
		ISSRate:            decimal.NewFromInt(5),
		ServiceCode:        "0801",
		ServiceDescription: "Mensalidade escolar",
		IssuedAt:           &issued,
		RPS:                entity.RPS{Type: "RPS", Series: "NF", Number: 42},
		Issuer:             entity.Issuer{CNPJ: "12345678000195", LegalName: "Escola Exemplo Ltda"},
		Payer:              entity.Payer{Document: "12345678909", Name: "Maria da Silva"},
		LineItems: []entity.LineItem{
			{Description: "Mensalidade", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
		},
	}
	data, err := pdf.NewRPSEspelho().Generate(inv)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRPSEspelho_NotaNil(t *testing.T) {
	_, err := pdf.NewRPSEspelho().Generate(nil)
	assert.Error(t, err)
}
