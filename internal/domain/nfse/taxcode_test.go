package nfse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/nfse"
)

func TestDeriveTaxClassificationCode(t *testing.T) {
	cases := map[string]string{
		"08.01":       "080100",
		"8.01":        "080100",
		"08.01.02":    "080102",
		"0801":        "080100",
		"080102":      "080102",
		"8":           "080000",
		" 17.01 ":     "170100",
		"1.2.3.4":     "010203",
	}
	for in, want := range cases {
		got, err := nfse.DeriveTaxClassificationCode(in)
		require.NoError(t, err, "entrada %q", in)
		assert.Equal(t, want, got, "entrada %q", in)
		assert.Len(t, got, 6)
	}
}

func TestDeriveTaxClassificationCode_Errores(t *testing.T) {
	_, err := nfse.DeriveTaxClassificationCode("")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "service_code", ve.Field)

	_, err = nfse.DeriveTaxClassificationCode("108.01")
	assert.True(t, domain.IsValidation(err), "segmento de 3 dígitos es inválido")
}

func TestMunicipalTaxCode(t *testing.T) {
	assert.Equal(t, "620150100", nfse.MunicipalTaxCode("6201-5/01"))
	assert.Equal(t, "", nfse.MunicipalTaxCode(""))
}
