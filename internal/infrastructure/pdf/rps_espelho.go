// Package pdf genera el espelho del RPS: representación gráfica local de la
// NFS-e, sin valor fiscal, mientras el proveedor no publique la DANFSE.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Prestador + CNPJ    │  RPS Serie/N° + Fecha        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PRESTADOR: IM / Dirección / Contacto                        │
//	│  TOMADOR: Nombre + CPF/CNPJ + dirección                      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DISCRIMINACIÓN + TABLA: Cant | Descripción | Unit | Total   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  VALORES: Servicio / Deducciones / Base / ISS                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: Estado, NFS-e, código de verificación, leyenda      │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/pkg/fiscal"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 92, Blue: 75}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

var _ appnfse.RPSPrinter = (*RPSEspelho)(nil)

// ── Generator ─────────────────────────────────────────────────────────────────

// RPSEspelho implementa nfse.RPSPrinter usando Maroto v2.
type RPSEspelho struct{}

// NewRPSEspelho construye el generador.
func NewRPSEspelho() *RPSEspelho { return &RPSEspelho{} }

// Generate arma el PDF y devuelve sus bytes.
func (g *RPSEspelho) Generate(inv *entity.Invoice) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("pdf: nota vacía")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Espelho do RPS "+inv.Reference, true).
		WithAuthor(nonEmpty(inv.Issuer.LegalName, inv.Issuer.CNPJ), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(issuerRow(inv.Issuer))
	m.AddRows(payerRow(inv.Payer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(descriptionRow(inv))
	if len(inv.LineItems) > 0 {
		m.AddRows(tableHeaderRow())
		m.AddRows(tableDetailRows(inv.LineItems)...)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(inv))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(inv)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(inv *entity.Invoice) core.Row {
	rps := fmt.Sprintf("RPS %s %d", nonEmpty(inv.RPS.Series, "-"), inv.RPS.Number)
	if inv.RPS.Number == 0 {
		rps = "Ref. " + inv.Reference
	}
	fecha := inv.CreatedAt.Format("02/01/2006")
	if inv.IssuedAt != nil {
		fecha = inv.IssuedAt.Format("02/01/2006")
	}

	return row.New(18).Add(
		col.New(7).Add(
			text.New(nonEmpty(inv.Issuer.LegalName, "Prestador"), props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+FormatDocument(inv.Issuer.CNPJ), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("ESPELHO DO RPS - SEM VALOR FISCAL", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(rps, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Data: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func issuerRow(is entity.Issuer) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("PRESTADOR DE SERVIÇOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("IM: %s   |   %s   |   Tel: %s   |   Email: %s",
				nonEmpty(is.MunicipalRegistration, "—"),
				FormatAddress(is.Address),
				nonEmpty(is.Phone, "—"),
				nonEmpty(is.Email, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func payerRow(p entity.Payer) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("TOMADOR DE SERVIÇOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(p.Name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("CPF/CNPJ: %s   |   %s   |   Email: %s",
				FormatDocument(p.Document),
				FormatAddress(p.Address),
				nonEmpty(p.Email, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func descriptionRow(inv *entity.Invoice) core.Row {
	return row.New(16).Add(
		col.New(12).Add(
			text.New(fmt.Sprintf("DISCRIMINAÇÃO DOS SERVIÇOS   (item LC 116: %s   |   CNAE: %s)",
				fiscal.FormatItemListaServico(inv.ServiceCode), nonEmpty(inv.CNAE, "—")), props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(inv.ServiceDescription, "—"), props.Text{Size: 8, Top: 6}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Qtd.", 1, align.Center),
		h("Descrição", 6, align.Left),
		h("Valor unit.", 2, align.Right),
		h("Total", 3, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

func tableDetailRows(items []entity.LineItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, li := range items {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(li.Quantity.String(), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(6).Add(text.New(li.Description, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(FormatBRL(li.UnitPrice), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(3).Add(text.New(FormatBRL(li.Total()), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func totalsRow(inv *entity.Invoice) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	base := inv.ServiceAmount.Sub(inv.DeductionAmount)
	withheld := "Não"
	if inv.ISSWithheld {
		withheld = "Sim"
	}

	return row.New(30).Add(
		col.New(3),
		col.New(3).Add(
			label("Valor dos serviços:"),
			label("Deduções:"),
			label("Base de cálculo:"),
			label(fmt.Sprintf("ISS (%s%%):", inv.ISSRate.StringFixed(2))),
			label("ISS retido:"),
		),
		col.New(3).Add(
			value(FormatBRL(inv.ServiceAmount)),
			value(FormatBRL(inv.DeductionAmount)),
			value(FormatBRL(base)),
			value(FormatBRL(inv.ISSAmount())),
			value(withheld),
		),
		col.New(3),
	)
}

func footerRows(inv *entity.Invoice) []core.Row {
	status := fmt.Sprintf("Situação: %s", inv.Status)
	if inv.Number != "" {
		status += "   |   NFS-e nº " + inv.Number
	}
	if inv.VerificationCode != "" {
		status += "   |   Código de verificação: " + inv.VerificationCode
	}
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New(status, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
	}
	if inv.VerificationCode != "" {
		rows = append(rows, row.New(35).Add(
			col.New(3).Add(code.NewQr(strings.Join([]string{fiscal.OnlyDigits(inv.Issuer.CNPJ), inv.Number, inv.VerificationCode}, "|"),
				props.Rect{Percent: 95, Center: true})),
			col.New(9),
		))
	}
	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New("Documento sem valor fiscal. A NFS-e oficial é emitida pela prefeitura ou pelo provedor de emissão.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2}),
	)))
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

// FormatBRL "1234.5" → "R$ 1.234,50".
func FormatBRL(v decimal.Decimal) string {
	s := v.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + string(buf) + "," + frac
}

// FormatDocument aplica la máscara de CPF (000.000.000-00) o CNPJ (00.000.000/0000-00).
func FormatDocument(doc string) string {
	d := fiscal.OnlyDigits(doc)
	switch len(d) {
	case 11:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	case 14:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
	default:
		return nonEmpty(doc, "—")
	}
}

// FormatAddress una línea: "Rua X, 10 - Centro - São Luís/MA".
func FormatAddress(a entity.Address) string {
	var parts []string
	street := strings.TrimSpace(a.Street)
	if n := strings.TrimSpace(a.Number); n != "" && street != "" {
		street += ", " + n
	}
	if street != "" {
		parts = append(parts, street)
	}
	if d := strings.TrimSpace(a.District); d != "" {
		parts = append(parts, d)
	}
	city := strings.TrimSpace(a.CityName)
	uf := strings.TrimSpace(a.UF)
	if uf == "" {
		uf = fiscal.UFSigla(fiscal.ComposeIBGE(a.StateCode, a.CityCode))
	}
	if city != "" && uf != "" {
		city += "/" + uf
	}
	if city != "" {
		parts = append(parts, city)
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, " - ")
}
