package nfse

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-api/pkg/fiscal"
)

// RPSHashParams los 11 campos de la "assinatura" del RPS de ISS Digital, en el orden del manual.
type RPSHashParams struct {
	InscricaoMunicipal string          // 11 dígitos, ceros a la izquierda
	Serie              string          // 5 posiciones, espacios a la derecha
	Numero             string          // 12 dígitos
	DataEmissao        time.Time       // AAAAMMDD
	Tributacao         string          // 2 posiciones, espacios a la derecha
	Situacao           string          // N o C
	TipoRecolhimento   string          // A -> "N", R -> "S"
	ValorServico       decimal.Decimal // se firma el neto (servicio - deducción) en centavos
	ValorDeducao       decimal.Decimal
	CodigoAtividade    string // 10 dígitos
	DocumentoTomador   string // 14 dígitos
}

// RPSHashInput concatena los campos de ancho fijo. Falla si alguno no cabe en su ancho.
func RPSHashInput(p RPSHashParams) (string, error) {
	im, err := fiscal.FixedDigits(p.InscricaoMunicipal, 11)
	if err != nil {
		return "", fmt.Errorf("rps: inscrição municipal: %w", err)
	}
	serie := strings.TrimSpace(p.Serie)
	if len(serie) > 5 {
		return "", fmt.Errorf("rps: série %q excede 5 posiciones", serie)
	}
	numero, err := fiscal.FixedDigits(p.Numero, 12)
	if err != nil {
		return "", fmt.Errorf("rps: número: %w", err)
	}
	trib := strings.TrimSpace(p.Tributacao)
	if len(trib) > 2 {
		return "", fmt.Errorf("rps: tributação %q excede 2 posiciones", trib)
	}
	situacao := strings.TrimSpace(p.Situacao)
	if len(situacao) != 1 {
		return "", fmt.Errorf("rps: situação %q debe tener 1 posición", situacao)
	}
	recolhimento := "S"
	if strings.TrimSpace(p.TipoRecolhimento) == "A" {
		recolhimento = "N"
	}
	if p.DataEmissao.IsZero() {
		return "", fmt.Errorf("rps: fecha de emisión obligatoria")
	}
	net, err := fiscal.CentsFixed(p.ValorServico.Sub(p.ValorDeducao), 15)
	if err != nil {
		return "", fmt.Errorf("rps: valor neto: %w", err)
	}
	ded, err := fiscal.CentsFixed(p.ValorDeducao, 15)
	if err != nil {
		return "", fmt.Errorf("rps: deducción: %w", err)
	}
	atividade, err := fiscal.FixedDigits(p.CodigoAtividade, 10)
	if err != nil {
		return "", fmt.Errorf("rps: código de actividad: %w", err)
	}
	doc, err := fiscal.FixedDigits(p.DocumentoTomador, 14)
	if err != nil {
		return "", fmt.Errorf("rps: documento del tomador: %w", err)
	}

	var b strings.Builder
	b.Grow(94)
	b.WriteString(im)
	b.WriteString(fiscal.LJust(serie, 5))
	b.WriteString(numero)
	b.WriteString(p.DataEmissao.Format("20060102"))
	b.WriteString(fiscal.LJust(trib, 2))
	b.WriteString(situacao)
	b.WriteString(recolhimento)
	b.WriteString(net)
	b.WriteString(ded)
	b.WriteString(atividade)
	b.WriteString(doc)
	return b.String(), nil
}

// RPSHash SHA-1 hexadecimal (minúsculas) de la cadena de RPSHashInput.
func RPSHash(p RPSHashParams) (string, error) {
	in, err := RPSHashInput(p)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum([]byte(in))
	return hex.EncodeToString(sum[:]), nil
}
