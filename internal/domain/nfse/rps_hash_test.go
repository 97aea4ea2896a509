package nfse_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/domain/nfse"
)

// ──────────────────────────────────────────────────────────────────────────────
// Hash del RPS (ISS Digital São Luís)
//
// Vector calculado a mano con SHA-1 sobre:
//
//	"00000123456" + "NF   " + "000000000042" + "20240315" + "T " + "N" + "N" +
//	"000000000010000" + "000000000000000" + "0000801000" + "00012345678909"
// ──────────────────────────────────────────────────────────────────────────────

const testRPSHashExpected = "bef4c592ff4b18b80007f1be751fc4f2d8293d0a"

func buildHashParams() nfse.RPSHashParams {
	return nfse.RPSHashParams{
		InscricaoMunicipal: "123456",
		Serie:              "NF",
		Numero:             "42",
		DataEmissao:        time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		Tributacao:         "T",
		Situacao:           "N",
		TipoRecolhimento:   "A",
		ValorServico:       decimal.RequireFromString("100.00"),
		ValorDeducao:       decimal.Zero,
		CodigoAtividade:    "801000",
		DocumentoTomador:   "123.456.789-09",
	}
}

func TestRPSHash_VectorExacto(t *testing.T) {
	in, err := nfse.RPSHashInput(buildHashParams())
	require.NoError(t, err)
	assert.Len(t, in, 94, "la cadena del hash tiene ancho fijo")

	h, err := nfse.RPSHash(buildHashParams())
	require.NoError(t, err)
	assert.Equal(t, testRPSHashExpected, h)
}

func TestRPSHash_Determinista(t *testing.T) {
	h1, err1 := nfse.RPSHash(buildHashParams())
	h2, err2 := nfse.RPSHash(buildHashParams())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, h1, h2)
}

// TestRPSHash_CadaCampoAfectaElHash cambiar cualquiera de los 11 campos cambia el hash.
func TestRPSHash_CadaCampoAfectaElHash(t *testing.T) {
	base, err := nfse.RPSHash(buildHashParams())
	require.NoError(t, err)

	mutations := map[string]func(p *nfse.RPSHashParams){
		"inscricao":    func(p *nfse.RPSHashParams) { p.InscricaoMunicipal = "123457" },
		"serie":        func(p *nfse.RPSHashParams) { p.Serie = "A1" },
		"numero":       func(p *nfse.RPSHashParams) { p.Numero = "43" },
		"data":         func(p *nfse.RPSHashParams) { p.DataEmissao = p.DataEmissao.AddDate(0, 0, 1) },
		"tributacao":   func(p *nfse.RPSHashParams) { p.Tributacao = "E" },
		"situacao":     func(p *nfse.RPSHashParams) { p.Situacao = "C" },
		"recolhimento": func(p *nfse.RPSHashParams) { p.TipoRecolhimento = "R" },
		"valor":        func(p *nfse.RPSHashParams) { p.ValorServico = decimal.RequireFromString("100.01") },
		"deducao":      func(p *nfse.RPSHashParams) { p.ValorDeducao = decimal.RequireFromString("10") },
		"atividade":    func(p *nfse.RPSHashParams) { p.CodigoAtividade = "801001" },
		"documento":    func(p *nfse.RPSHashParams) { p.DocumentoTomador = "12345678000195" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := buildHashParams()
			mutate(&p)
			h, err := nfse.RPSHash(p)
			require.NoError(t, err)
			assert.NotEqual(t, base, h, "el campo %s debe influir en el hash", name)
		})
	}
}

// TestRPSHash_SinAmbiguedadEntreCampos campos contiguos cuya concatenación ingenua
// coincide ("12"+"345" == "123"+"45") producen hashes distintos gracias al ancho fijo.
func TestRPSHash_SinAmbiguedadEntreCampos(t *testing.T) {
	a := buildHashParams()
	a.CodigoAtividade = "12"
	a.DocumentoTomador = "345"

	b := buildHashParams()
	b.CodigoAtividade = "123"
	b.DocumentoTomador = "45"

	ha, err := nfse.RPSHash(a)
	require.NoError(t, err)
	hb, err := nfse.RPSHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)

	// 100 en 15 posiciones no se confunde con 1 seguido de relleno desplazado.
	c := buildHashParams()
	c.ValorServico = decimal.RequireFromString("1.00")
	d := buildHashParams()
	d.ValorServico = decimal.RequireFromString("0.01")
	hc, _ := nfse.RPSHash(c)
	hd, _ := nfse.RPSHash(d)
	assert.NotEqual(t, hc, hd)
}

func TestRPSHash_DeduccionSeRestaDelNeto(t *testing.T) {
	p := buildHashParams()
	p.ValorDeducao = decimal.RequireFromString("10.00")
	in, err := nfse.RPSHashInput(p)
	require.NoError(t, err)
	assert.Contains(t, in, "000000000009000"+"000000000001000")

	h, err := nfse.RPSHash(p)
	require.NoError(t, err)
	assert.Equal(t, "bcf2601ba6df02288762ec748cf853e72ed022c2", h)
}

// ── Errores de ancho ──────────────────────────────────────────────────────────

func TestRPSHash_ErrorSiCampoNoCabe(t *testing.T) {
	cases := map[string]func(p *nfse.RPSHashParams){
		"inscricao": func(p *nfse.RPSHashParams) { p.InscricaoMunicipal = "123456789012" },
		"serie":     func(p *nfse.RPSHashParams) { p.Serie = "SERIE1" },
		"situacao":  func(p *nfse.RPSHashParams) { p.Situacao = "" },
		"documento": func(p *nfse.RPSHashParams) { p.DocumentoTomador = "123456789012345" },
		"negativo":  func(p *nfse.RPSHashParams) { p.ValorDeducao = decimal.RequireFromString("200") },
		"fecha":     func(p *nfse.RPSHashParams) { p.DataEmissao = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := buildHashParams()
			mutate(&p)
			_, err := nfse.RPSHash(p)
			assert.Error(t, err)
		})
	}
}
