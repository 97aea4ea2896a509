package plugnotas

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	domnfse "github.com/jhoicas/nfse-api/internal/domain/nfse"
	"github.com/jhoicas/nfse-api/pkg/fiscal"
)

// Document un elemento del arreglo de POST /nfse.
type Document struct {
	IDIntegracao    string          `json:"idIntegracao"`
	Prestador       Prestador       `json:"prestador"`
	Tomador         Tomador         `json:"tomador"`
	Descricao       string          `json:"descricao,omitempty"`
	Servico         []Servico       `json:"servico"`
	CidadePrestacao CidadePrestacao `json:"cidadePrestacao"`
	EnviarEmail     bool            `json:"enviarEmail"`
}

type Prestador struct {
	CPFCNPJ string `json:"cpfCnpj"`
}

type Tomador struct {
	CPFCNPJ            string   `json:"cpfCnpj"`
	RazaoSocial        string   `json:"razaoSocial"`
	Email              string   `json:"email,omitempty"`
	InscricaoMunicipal string   `json:"inscricaoMunicipal,omitempty"`
	Endereco           Endereco `json:"endereco"`
}

type Endereco struct {
	Bairro          string `json:"bairro,omitempty"`
	CEP             string `json:"cep,omitempty"`
	Estado          string `json:"estado,omitempty"`
	Logradouro      string `json:"logradouro,omitempty"`
	Numero          string `json:"numero,omitempty"`
	Complemento     string `json:"complemento,omitempty"`
	DescricaoCidade string `json:"descricaoCidade,omitempty"`
	CodigoCidade    string `json:"codigoCidade"`
}

type Servico struct {
	Codigo                    string `json:"codigo"`
	CodigoTributacao          string `json:"codigoTributacao,omitempty"`
	Discriminacao             string `json:"discriminacao"`
	CNAE                      string `json:"cnae,omitempty"`
	CodigoCidadeIncidencia    string `json:"codigoCidadeIncidencia"`
	DescricaoCidadeIncidencia string `json:"descricaoCidadeIncidencia,omitempty"`
	ISS                       ISS    `json:"iss"`
	Valor                     Valor  `json:"valor"`
}

type ISS struct {
	Aliquota json.Number `json:"aliquota"`
	Retido   bool        `json:"retido"`
}

type Valor struct {
	Servico json.Number `json:"servico"`
}

type CidadePrestacao struct {
	Codigo    string `json:"codigo"`
	Descricao string `json:"descricao,omitempty"`
	Estado    string `json:"estado,omitempty"`
}

// BuildPayload arma el arreglo con un único documento.
func BuildPayload(inv *entity.Invoice) ([]Document, error) {
	codNacional := fiscal.OnlyDigits(inv.TaxClassificationCode)
	if codNacional == "" {
		var err error
		if codNacional, err = domnfse.DeriveTaxClassificationCode(inv.ServiceCode); err != nil {
			return nil, err
		}
	}
	addr := inv.Payer.Address
	codTomador := fiscal.ComposeIBGE(addr.StateCode, addr.CityCode)
	if len(codTomador) != 7 {
		return nil, domain.NewValidationError("payer.address.city_code", "código IBGE del tomador debe resultar en 7 dígitos")
	}

	issuerAddr := inv.Issuer.Address
	codPrestacao := fiscal.ComposeIBGE(issuerAddr.StateCode, issuerAddr.CityCode)
	descPrestacao := issuerAddr.CityName
	if c := fiscal.OnlyDigits(inv.ServiceCityCode); c != "" {
		codPrestacao = fiscal.ComposeIBGE(issuerAddr.StateCode, c)
		descPrestacao = inv.ServiceCityName
	}
	if len(codPrestacao) != 7 {
		return nil, domain.NewValidationError("service_city_code", "código IBGE del municipio de prestación debe resultar en 7 dígitos")
	}

	aliquota := inv.ISSRate
	if !aliquota.IsPositive() {
		aliquota = decimal.NewFromInt(5)
	}
	discriminacao := fiscal.Sanitize(inv.ServiceDescription)

	doc := Document{
		IDIntegracao: inv.Reference,
		Prestador:    Prestador{CPFCNPJ: fiscal.OnlyDigits(inv.Issuer.CNPJ)},
		Tomador: Tomador{
			CPFCNPJ:            fiscal.OnlyDigits(inv.Payer.Document),
			RazaoSocial:        strings.TrimSpace(inv.Payer.Name),
			Email:              strings.TrimSpace(inv.Payer.Email),
			InscricaoMunicipal: fiscal.OnlyDigits(inv.Payer.MunicipalRegistration),
			Endereco: Endereco{
				Bairro:          strings.TrimSpace(addr.District),
				CEP:             fiscal.OnlyDigits(addr.ZipCode),
				Estado:          uf(addr.UF, codTomador),
				Logradouro:      strings.TrimSpace(addr.Street),
				Numero:          strings.TrimSpace(addr.Number),
				Complemento:     strings.TrimSpace(addr.Complement),
				DescricaoCidade: strings.TrimSpace(addr.CityName),
				CodigoCidade:    codTomador,
			},
		},
		Descricao: discriminacao,
		Servico: []Servico{{
			Codigo:                    fiscal.FormatItemListaServico(inv.ServiceCode),
			CodigoTributacao:          codNacional,
			Discriminacao:             discriminacao,
			CNAE:                      fiscal.OnlyDigits(inv.CNAE),
			CodigoCidadeIncidencia:    codPrestacao,
			DescricaoCidadeIncidencia: strings.TrimSpace(descPrestacao),
			ISS:                       ISS{Aliquota: json.Number(fiscal.Amount(aliquota)), Retido: inv.ISSWithheld},
			Valor:                     Valor{Servico: json.Number(fiscal.Amount(inv.ServiceAmount))},
		}},
		CidadePrestacao: CidadePrestacao{
			Codigo:    codPrestacao,
			Descricao: strings.TrimSpace(descPrestacao),
			Estado:    uf(issuerAddr.UF, codPrestacao),
		},
		EnviarEmail: inv.SendEmail,
	}
	return []Document{doc}, nil
}

// Marshal serializa el arreglo de documentos.
func Marshal(docs []Document) ([]byte, error) {
	return json.Marshal(docs)
}

func uf(sigla, ibge string) string {
	if s := strings.ToUpper(strings.TrimSpace(sigla)); s != "" {
		return s
	}
	return fiscal.UFSigla(ibge)
}
