package issdigital

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	domnfse "github.com/jhoicas/nfse-api/internal/domain/nfse"
	"github.com/jhoicas/nfse-api/pkg/fiscal"
)

// ── Namespaces ────────────────────────────────────────────────────────────────

const (
	NamespaceLote     = "http://sistemas.semfaz.saoluis.ma.gov.br/WsNFe2/lote"
	NamespaceTipos    = "http://sistemas.semfaz.saoluis.ma.gov.br/WsNFe2/tp"
	SchemaLocationXSD = "http://sistemas.semfaz.saoluis.ma.gov.br/WsNFe2/xsd/ReqEnvioLoteRPS.xsd"
	namespaceXSI      = "http://www.w3.org/2001/XMLSchema-instance"
)

// Valores por defecto del layout de São Luís.
const (
	DefaultCodCidade      = "0921" // SIAFI
	DefaultSerieRPS       = "NF"
	DefaultTipoRPS        = "RPS"
	DefaultSeriePrestacao = "99"
	DefaultCidadeDesc     = "SAO LUIS"
	defaultIMTomador      = "0000000"
)

// Situación del RPS.
const (
	SituacaoNormal    = "N"
	SituacaoCancelada = "C"
)

// brt hora oficial de São Luís (UTC-3, sin horario de verano).
var brt = time.FixedZone("BRT", -3*60*60)

// Issuer datos fijos del remitente, ya normalizados.
type Issuer struct {
	InscricaoMunicipal string // 11 dígitos
	CNPJ               string // 14 dígitos
	RazaoSocial        string // máx. 120, sin acentos
	CodCidade          string
	CidadeIBGE         string // IBGE del municipio del prestador, para detectar tomador local
	TokenEnvio         string
}

// NewIssuer normaliza los datos del prestador como los exige el webservice.
func NewIssuer(im, cnpj, razao, codCidade, token, cidadeIBGE string) Issuer {
	if d := fiscal.OnlyDigits(im); d != "" {
		im = fiscal.ZFill(d, 11)
	}
	cod := fiscal.OnlyDigits(codCidade)
	if cod == "" {
		cod = DefaultCodCidade
	}
	return Issuer{
		InscricaoMunicipal: im,
		CNPJ:               fiscal.ZFill(fiscal.OnlyDigits(cnpj), 14),
		RazaoSocial:        fiscal.Limit(fiscal.CleanField(razao), 120),
		CodCidade:          cod,
		CidadeIBGE:         fiscal.OnlyDigits(cidadeIBGE),
		TokenEnvio:         strings.TrimSpace(token),
	}
}

// ── Escritor de campos ordenados ──────────────────────────────────────────────

// Field una etiqueta con su valor ya formateado. El orden de los Field es el del XSD.
type Field struct {
	Tag   string
	Value string
}

// xmlWriter compone XML sin indentación: el webservice rechaza espacios entre etiquetas.
type xmlWriter struct {
	b strings.Builder
}

func (w *xmlWriter) open(tag string, attrs ...string) {
	w.b.WriteString("<" + tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		w.b.WriteString(" " + attrs[i] + `="`)
		_ = xml.EscapeText(&w.b, []byte(attrs[i+1]))
		w.b.WriteString(`"`)
	}
	w.b.WriteString(">")
}

func (w *xmlWriter) close(tag string) { w.b.WriteString("</" + tag + ">") }

func (w *xmlWriter) fields(fs ...Field) {
	for _, f := range fs {
		w.open(f.Tag)
		_ = xml.EscapeText(&w.b, []byte(f.Value))
		w.close(f.Tag)
	}
}

func (w *xmlWriter) bytes() []byte { return []byte(w.b.String()) }

func text(v string, max int) string { return fiscal.Limit(fiscal.CleanField(v), max) }

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ── Builder ───────────────────────────────────────────────────────────────────

// RPSInput una nota a incluir en el lote.
type RPSInput struct {
	Invoice         *entity.Invoice
	Situacao        string // N o C
	MotCancelamento string
}

// Builder arma los mensajes XML de ISS Digital.
type Builder struct {
	issuer Issuer
	now    func() time.Time
}

// NewBuilder construye el builder. now nil usa time.Now.
func NewBuilder(issuer Issuer, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{issuer: issuer, now: now}
}

// emission fecha del RPS: la de la autorización si existe (cancelación), si no ahora.
func (b *Builder) emission(inv *entity.Invoice) time.Time {
	if inv.IssuedAt != nil {
		return inv.IssuedAt.In(brt)
	}
	return b.now().In(brt)
}

// LotXML ReqEnvioLoteRPS completo con el <Lote Id="lote:{lotID}">, sin declaración XML.
func (b *Builder) LotXML(lotID string, items []RPSInput) ([]byte, error) {
	if len(items) == 0 {
		return nil, domain.NewValidationError("rps", "el lote necesita al menos un RPS")
	}
	total, deducoes := decimal.Zero, decimal.Zero
	for _, it := range items {
		total = total.Add(it.Invoice.ServiceAmount)
		deducoes = deducoes.Add(it.Invoice.DeductionAmount)
	}
	first := b.emission(items[0].Invoice).Format("2006-01-02")
	last := b.emission(items[len(items)-1].Invoice).Format("2006-01-02")

	var w xmlWriter
	w.open("ReqEnvioLoteRPS",
		"xmlns", NamespaceLote,
		"xmlns:tipos", NamespaceTipos,
		"xmlns:xsi", namespaceXSI,
		"xsi:schemaLocation", NamespaceLote+" "+SchemaLocationXSD,
	)
	w.open("Cabecalho")
	w.fields(
		Field{"CodCidade", b.issuer.CodCidade},
		Field{"CPFCNPJRemetente", b.issuer.CNPJ},
		Field{"RazaoSocialRemetente", b.issuer.RazaoSocial},
		Field{"transacao", "true"},
		Field{"dtInicio", first},
		Field{"dtFim", last},
		Field{"QtdRPS", fmt.Sprintf("%d", len(items))},
		Field{"ValorTotalServicos", fiscal.Amount(total)},
		Field{"ValorTotalDeducoes", fiscal.Amount(deducoes)},
		Field{"Versao", "1"},
		Field{"MetodoEnvio", "WS"},
	)
	w.close("Cabecalho")

	w.open("Lote", "Id", "lote:"+lotID)
	for _, it := range items {
		if err := b.writeRPS(&w, it); err != nil {
			return nil, err
		}
	}
	w.close("Lote")
	w.close("ReqEnvioLoteRPS")
	return w.bytes(), nil
}

// RPSFields campos del RPS en el orden del XSD (sin Itens).
func (b *Builder) RPSFields(in RPSInput) ([]Field, error) {
	inv := in.Invoice
	if inv.RPS.Number <= 0 {
		return nil, domain.NewValidationError("rps.number", "número de RPS obligatorio")
	}
	numero := fiscal.ZFill(fmt.Sprintf("%d", inv.RPS.Number), 12)
	if len(numero) > 12 {
		return nil, domain.NewValidationError("rps.number", "el número de RPS excede 12 dígitos")
	}
	serie := text(orDefault(inv.RPS.Series, DefaultSerieRPS), 5)
	tipo := text(orDefault(inv.RPS.Type, DefaultTipoRPS), 20)
	situacao := orDefault(in.Situacao, SituacaoNormal)
	emission := b.emission(inv)

	codServico := fiscal.OnlyDigits(inv.ServiceCode)
	if codServico == "" {
		return nil, domain.NewValidationError("service_code", "código de servicio obligatorio")
	}
	if len(codServico) < 4 {
		codServico = fiscal.ZFill(codServico, 4)
	} else {
		codServico = fiscal.Limit(codServico, 5)
	}
	atividade := fiscal.Limit(fiscal.ZFill(fiscal.OnlyDigits(inv.CNAE), 9), 9)
	tributacao := text(orDefault(inv.Taxation, "T"), 1)
	operacao := text(orDefault(inv.Operation, "A"), 1)
	recolhimento := inv.CollectionType()

	docTomador := fiscal.ZFill(fiscal.OnlyDigits(inv.Payer.Document), 14)
	imTomador := fiscal.OnlyDigits(inv.Payer.MunicipalRegistration)
	if imTomador == "" {
		imTomador = defaultIMTomador
	}

	assinatura, err := domnfse.RPSHash(domnfse.RPSHashParams{
		InscricaoMunicipal: b.issuer.InscricaoMunicipal,
		Serie:              serie,
		Numero:             numero,
		DataEmissao:        emission,
		Tributacao:         tributacao,
		Situacao:           situacao,
		TipoRecolhimento:   recolhimento,
		ValorServico:       inv.ServiceAmount,
		ValorDeducao:       inv.DeductionAmount,
		CodigoAtividade:    atividade,
		DocumentoTomador:   docTomador,
	})
	if err != nil {
		return nil, domain.NewValidationError("rps", err.Error())
	}

	aliquota := inv.ISSRate
	if aliquota.IsZero() {
		aliquota = decimal.NewFromInt(5)
	}
	dddPrest, telPrest := fiscal.SplitPhone(inv.Issuer.Phone)
	dddTom, telTom := fiscal.SplitPhone(inv.Payer.Phone)
	addr := inv.Payer.Address

	fs := []Field{
		{"Assinatura", assinatura},
		{"InscricaoMunicipalPrestador", b.issuer.InscricaoMunicipal},
		{"RazaoSocialPrestador", b.issuer.RazaoSocial},
		{"TipoRPS", tipo},
		{"SerieRPS", serie},
		{"NumeroRPS", numero},
		{"DataEmissaoRPS", emission.Format("2006-01-02T15:04:05")},
		{"SituacaoRPS", situacao},
		{"SeriePrestacao", DefaultSeriePrestacao},
		{"InscricaoMunicipalTomador", imTomador},
		{"CPFCNPJTomador", docTomador},
		{"RazaoSocialTomador", text(inv.Payer.Name, 120)},
		{"TipoLogradouroTomador", "Rua"},
		{"LogradouroTomador", text(addr.Street, 50)},
		{"NumeroEnderecoTomador", text(addr.Number, 9)},
		{"ComplementoEnderecoTomador", text(addr.Complement, 30)},
		{"TipoBairroTomador", "Bairro"},
		{"BairroTomador", text(addr.District, 50)},
		{"CidadeTomador", b.cityCode(addr.CityCode)},
		{"CidadeTomadorDescricao", text(orDefault(addr.CityName, DefaultCidadeDesc), 50)},
		{"CEPTomador", fiscal.Limit(fiscal.ZFill(fiscal.OnlyDigits(addr.ZipCode), 8), 8)},
		{"EmailTomador", text(orDefault(inv.Payer.Email, "-"), 60)},
		{"CodigoAtividade", atividade},
		{"CodigoServico", codServico},
		{"AliquotaAtividade", fiscal.Amount4(aliquota)},
		{"TipoRecolhimento", recolhimento},
		{"MunicipioPrestacao", b.cityCode(inv.ServiceCityCode)},
		{"MunicipioPrestacaoDescricao", text(orDefault(inv.ServiceCityName, DefaultCidadeDesc), 30)},
		{"Operacao", operacao},
		{"Tributacao", tributacao},
		{"ValorPIS", "0.00"},
		{"ValorCOFINS", "0.00"},
		{"ValorINSS", "0.00"},
		{"ValorIR", "0.00"},
		{"ValorCSLL", "0.00"},
		{"AliquotaPIS", "0.0000"},
		{"AliquotaCOFINS", "0.0000"},
		{"AliquotaINSS", "0.0000"},
		{"AliquotaIR", "0.0000"},
		{"AliquotaCSLL", "0.0000"},
		{"DescricaoRPS", text(orDefault(inv.ServiceDescription, "Servico prestado"), 1500)},
		{"DDDPrestador", fiscal.ZFill(dddPrest, 3)},
		{"TelefonePrestador", fiscal.Limit(telPrest, 8)},
		{"DDDTomador", fiscal.ZFill(dddTom, 3)},
		{"TelefoneTomador", fiscal.Limit(telTom, 8)},
	}
	if m := text(in.MotCancelamento, 80); m != "" {
		fs = append(fs, Field{"MotCancelamento", m})
	}
	return fs, nil
}

// cityCode el webservice usa el código SIAFI propio para el municipio del prestador;
// para otros municipios se envía el código informado.
func (b *Builder) cityCode(ibge string) string {
	d := fiscal.OnlyDigits(ibge)
	if d == "" || d == b.issuer.CidadeIBGE {
		return b.issuer.CodCidade
	}
	return d
}

func (b *Builder) writeRPS(w *xmlWriter, in RPSInput) error {
	fs, err := b.RPSFields(in)
	if err != nil {
		return err
	}
	w.open("RPS", "Id", fs[5].Value)
	w.fields(fs...)

	w.open("Itens")
	for _, it := range itemFields(in.Invoice) {
		w.open("Item")
		w.fields(it...)
		w.close("Item")
	}
	w.close("Itens")
	w.close("RPS")
	return nil
}

// itemFields líneas del RPS; sin líneas se informa un único ítem con el total del servicio.
func itemFields(inv *entity.Invoice) [][]Field {
	if len(inv.LineItems) == 0 {
		return [][]Field{{
			{"DiscriminacaoServico", text(orDefault(inv.ServiceDescription, "SERVICO"), 80)},
			{"Quantidade", "1.0000"},
			{"ValorUnitario", fiscal.Amount4(inv.ServiceAmount)},
			{"ValorTotal", fiscal.Amount(inv.ServiceAmount)},
			{"Tributavel", "S"},
		}}
	}
	out := make([][]Field, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		trib := "N"
		if li.Taxable {
			trib = "S"
		}
		out = append(out, []Field{
			{"DiscriminacaoServico", text(li.Description, 80)},
			{"Quantidade", fiscal.Amount4(li.Quantity)},
			{"ValorUnitario", fiscal.Amount4(li.UnitPrice)},
			{"ValorTotal", fiscal.Amount(li.Total())},
			{"Tributavel", trib},
		})
	}
	return out
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (b *Builder) tokenField() []Field {
	if b.issuer.TokenEnvio == "" {
		return nil
	}
	return []Field{{"TokenEnvio", b.issuer.TokenEnvio}}
}

// ConsultaLoteXML ReqConsultaLote (no se firma).
func (b *Builder) ConsultaLoteXML(numeroLote string) []byte {
	var w xmlWriter
	w.open("ReqConsultaLote")
	w.open("Cabecalho")
	w.fields(b.tokenField()...)
	w.fields(
		Field{"CodCidade", b.issuer.CodCidade},
		Field{"CPFCNPJRemetente", b.issuer.CNPJ},
		Field{"Versao", "1"},
		Field{"NumeroLote", numeroLote},
	)
	w.close("Cabecalho")
	w.close("ReqConsultaLote")
	return w.bytes()
}

// ConsultaNotasXML consulta por período; el Cabecalho lleva Id="Consulta:notas" para la firma.
func (b *Builder) ConsultaNotasXML(from, to time.Time, notaInicial int64) []byte {
	var w xmlWriter
	w.open("Cabecalho", "Id", "Consulta:notas")
	w.fields(b.tokenField()...)
	w.fields(
		Field{"CodCidade", b.issuer.CodCidade},
		Field{"CPFCNPJRemetente", b.issuer.CNPJ},
		Field{"InscricaoMunicipalPrestador", b.issuer.InscricaoMunicipal},
		Field{"dtInicio", from.In(brt).Format("2006-01-02")},
		Field{"dtFim", to.In(brt).Format("2006-01-02")},
		Field{"NotaInicial", fmt.Sprintf("%d", notaInicial)},
		Field{"Versao", "1"},
	)
	w.close("Cabecalho")
	return w.bytes()
}

// ConsultaRPSXML consulta de la NFS-e generada por un RPS; firma sobre Id="lote:consulta".
func (b *Builder) ConsultaRPSXML(numeroRPS int64) []byte {
	var w xmlWriter
	w.open("Lote", "Id", "lote:consulta")
	w.open("Cabecalho")
	w.fields(b.tokenField()...)
	w.fields(
		Field{"CodCidade", b.issuer.CodCidade},
		Field{"CPFCNPJRemetente", b.issuer.CNPJ},
		Field{"Transacao", "true"},
		Field{"Versao", "1"},
	)
	w.close("Cabecalho")
	w.open("RPS")
	w.fields(
		Field{"InscricaoMunicipalPrestador", b.issuer.InscricaoMunicipal},
		Field{"NumeroRPS", fiscal.ZFill(fmt.Sprintf("%d", numeroRPS), 12)},
		Field{"SeriePrestacao", DefaultSeriePrestacao},
	)
	w.close("RPS")
	w.close("Lote")
	return w.bytes()
}
