package focusnfe

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	domnfse "github.com/jhoicas/nfse-api/internal/domain/nfse"
	"github.com/jhoicas/nfse-api/pkg/fiscal"
)

// Códigos del esquema Nacional.
const (
	opcaoSimplesNaoOptante = 1
	opcaoSimplesMEEPP      = 3

	tributacaoOperacaoTributavel = 1

	retencaoNaoRetido       = 1
	retencaoRetidoTomador   = 2
	defaultDescricaoServico = "SERVICOS PRESTADOS"
)

var brt = time.FixedZone("BRT", -3*60*60)

// Payload cuerpo plano de POST /v2/nfsen. El orden de los campos fija el orden de serialización.
type Payload struct {
	DataEmissao                 string `json:"data_emissao"`
	DataCompetencia             string `json:"data_competencia"`
	CodigoMunicipioEmissora     string `json:"codigo_municipio_emissora"`
	CNPJPrestador               string `json:"cnpj_prestador"`
	InscricaoMunicipalPrestador string `json:"inscricao_municipal_prestador,omitempty"`
	CodigoOpcaoSimplesNacional  int    `json:"codigo_opcao_simples_nacional"`
	RegimeEspecialTributacao    *int   `json:"regime_especial_tributacao,omitempty"`

	CNPJTomador               string `json:"cnpj_tomador,omitempty"`
	CPFTomador                string `json:"cpf_tomador,omitempty"`
	RazaoSocialTomador        string `json:"razao_social_tomador"`
	EmailTomador              string `json:"email_tomador,omitempty"`
	TelefoneTomador           string `json:"telefone_tomador,omitempty"`
	InscricaoMunicipalTomador string `json:"inscricao_municipal_tomador,omitempty"`
	CodigoMunicipioTomador    string `json:"codigo_municipio_tomador"`
	CEPTomador                string `json:"cep_tomador,omitempty"`
	LogradouroTomador         string `json:"logradouro_tomador"`
	NumeroTomador             string `json:"numero_tomador"`
	ComplementoTomador        string `json:"complemento_tomador,omitempty"`
	BairroTomador             string `json:"bairro_tomador,omitempty"`

	CodigoMunicipioPrestacao     string      `json:"codigo_municipio_prestacao"`
	CodigoTributacaoNacionalISS  string      `json:"codigo_tributacao_nacional_iss"`
	CodigoCNAE                   string      `json:"codigo_cnae,omitempty"`
	CodigoTributacaoMunicipalISS string      `json:"codigo_tributacao_municipal_iss,omitempty"`
	DescricaoServico             string      `json:"descricao_servico"`
	ValorServico                 json.Number `json:"valor_servico"`
	TributacaoISS                int         `json:"tributacao_iss"`
	TipoRetencaoISS              int         `json:"tipo_retencao_iss"`
	PercentualAliquotaISS        json.Number `json:"percentual_aliquota_iss,omitempty"`
	PercentualTributosFederais   json.Number `json:"percentual_total_tributos_federais"`
	PercentualTributosEstaduais  json.Number `json:"percentual_total_tributos_estaduais"`
	PercentualTributosMunicipais json.Number `json:"percentual_total_tributos_municipais"`

	Itens []Item `json:"itens,omitempty"`
}

// Item línea de detalle (obligatoria en algunos municipios, ej. São Luís).
type Item struct {
	Discriminacao string      `json:"discriminacao"`
	Quantidade    json.Number `json:"quantidade"`
	ValorUnitario json.Number `json:"valor_unitario"`
	ValorTotal    json.Number `json:"valor_total"`
	Tributavel    bool        `json:"tributavel"`
}

func amount(v decimal.Decimal) json.Number { return json.Number(fiscal.Amount(v)) }
func amount4(v decimal.Decimal) json.Number { return json.Number(fiscal.Amount4(v)) }

// BuildPayload arma el payload plano. Es puro: la misma nota y el mismo now producen los mismos bytes.
func BuildPayload(inv *entity.Invoice, now time.Time) (*Payload, error) {
	codNacional, err := domnfse.DeriveTaxClassificationCode(inv.ServiceCode)
	if err != nil {
		return nil, err
	}
	emission := now.In(brt)
	if inv.IssuedAt != nil {
		emission = inv.IssuedAt.In(brt)
	}

	emissora := fiscal.ComposeIBGE(inv.Issuer.Address.StateCode, inv.Issuer.Address.CityCode)
	prestacao := emissora
	if c := fiscal.OnlyDigits(inv.ServiceCityCode); c != "" {
		prestacao = fiscal.ComposeIBGE(inv.Issuer.Address.StateCode, c)
	}

	p := &Payload{
		DataEmissao:                 emission.Format(time.RFC3339),
		DataCompetencia:             emission.Format("2006-01-02"),
		CodigoMunicipioEmissora:     emissora,
		CNPJPrestador:               fiscal.OnlyDigits(inv.Issuer.CNPJ),
		InscricaoMunicipalPrestador: fiscal.OnlyDigits(inv.Issuer.MunicipalRegistration),
		CodigoOpcaoSimplesNacional:  opcaoSimplesNaoOptante,

		RazaoSocialTomador:        strings.TrimSpace(inv.Payer.Name),
		EmailTomador:              strings.TrimSpace(inv.Payer.Email),
		InscricaoMunicipalTomador: fiscal.OnlyDigits(inv.Payer.MunicipalRegistration),
		CodigoMunicipioTomador:    fiscal.ComposeIBGE(inv.Payer.Address.StateCode, inv.Payer.Address.CityCode),
		CEPTomador:                fiscal.OnlyDigits(inv.Payer.Address.ZipCode),
		LogradouroTomador:         strings.TrimSpace(inv.Payer.Address.Street),
		NumeroTomador:             strings.TrimSpace(inv.Payer.Address.Number),
		ComplementoTomador:        strings.TrimSpace(inv.Payer.Address.Complement),
		BairroTomador:             strings.TrimSpace(inv.Payer.Address.District),

		CodigoMunicipioPrestacao:     prestacao,
		CodigoTributacaoNacionalISS:  codNacional,
		CodigoCNAE:                   fiscal.OnlyDigits(inv.CNAE),
		CodigoTributacaoMunicipalISS: domnfse.MunicipalTaxCode(inv.CNAE),
		DescricaoServico:             fiscal.Sanitize(inv.ServiceDescription),
		ValorServico:                 amount(inv.ServiceAmount),
		TributacaoISS:                tributacaoOperacaoTributavel,
		TipoRetencaoISS:              retencaoNaoRetido,
		PercentualTributosFederais:   "0.00",
		PercentualTributosEstaduais:  "0.00",
		PercentualTributosMunicipais: "0.00",
	}
	if inv.Issuer.SimplesNacional() {
		p.CodigoOpcaoSimplesNacional = opcaoSimplesMEEPP
	}
	if r := strings.TrimSpace(inv.Issuer.SpecialTaxRegime); r != "" {
		n, err := strconv.Atoi(r)
		if err != nil {
			return nil, domain.NewValidationError("issuer.special_tax_regime", "regime especial de tributação debe ser numérico")
		}
		p.RegimeEspecialTributacao = &n
	}

	doc := fiscal.OnlyDigits(inv.Payer.Document)
	switch fiscal.ClassifyDocument(doc) {
	case fiscal.DocumentCNPJ:
		p.CNPJTomador = doc
	case fiscal.DocumentCPF:
		p.CPFTomador = doc
	default:
		return nil, domain.NewValidationError("payer.document", "el documento del tomador debe tener 11 (CPF) o 14 (CNPJ) dígitos")
	}
	if tel := fiscal.OnlyDigits(inv.Payer.Phone); len(tel) >= 10 {
		p.TelefoneTomador = tel
	}
	if inv.ISSWithheld {
		p.TipoRetencaoISS = retencaoRetidoTomador
	}
	if inv.ISSRate.IsPositive() {
		p.PercentualAliquotaISS = amount(inv.ISSRate)
	}
	if p.DescricaoServico == "" {
		p.DescricaoServico = defaultDescricaoServico
	}

	for _, li := range inv.LineItems {
		desc := fiscal.Sanitize(li.Description)
		if desc == "" {
			desc = p.DescricaoServico
		}
		p.Itens = append(p.Itens, Item{
			Discriminacao: desc,
			Quantidade:    amount4(li.Quantity),
			ValorUnitario: amount(li.UnitPrice),
			ValorTotal:    amount(li.Total()),
			Tributavel:    li.Taxable,
		})
	}
	return p, nil
}

// Marshal serializa el payload.
func (p *Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
