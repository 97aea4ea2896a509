package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider proveedor de emisión configurado para la nota.
type Provider string

const (
	ProviderFocusNFe   Provider = "focusnfe"
	ProviderPlugNotas  Provider = "plugnotas"
	ProviderISSDigital Provider = "iss_digital_slz"
)

// Valid indica si el proveedor es uno de los soportados.
func (p Provider) Valid() bool {
	switch p {
	case ProviderFocusNFe, ProviderPlugNotas, ProviderISSDigital:
		return true
	}
	return false
}

// RequiresPayerAddress Focus y ISS Digital exigen logradouro y número del tomador.
func (p Provider) RequiresPayerAddress() bool {
	return p == ProviderFocusNFe || p == ProviderISSDigital
}

// Status estado canónico de la nota, común a todos los proveedores.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusProcessing    Status = "processing" // transmitida, esperando al proveedor
	StatusAuthorized    Status = "authorized"
	StatusError         Status = "error"
	StatusCancelPending Status = "cancel_pending"
	StatusCancelled     Status = "cancelled"
)

// Address dirección con códigos IBGE.
type Address struct {
	Street     string
	Number     string
	Complement string
	District   string
	ZipCode    string
	UF         string // sigla, ej. "MA"
	StateCode  string // código IBGE de la UF, ej. "21"
	CityCode   string // código IBGE del municipio (5 o 7 dígitos)
	CityName   string
}

// Issuer prestador del servicio.
type Issuer struct {
	CNPJ                  string
	MunicipalRegistration string
	LegalName             string
	TaxRegime             string // "1" = Simples Nacional
	SpecialTaxRegime      string // regime_especial_tributacao (opcional)
	Phone                 string
	Email                 string
	Address               Address
}

// SimplesNacional indica si el prestador tributa por Simples Nacional.
func (i Issuer) SimplesNacional() bool { return i.TaxRegime == "1" }

// Payer tomador del servicio.
type Payer struct {
	Document              string // CPF (11) o CNPJ (14)
	Name                  string
	Email                 string
	Phone                 string
	MunicipalRegistration string
	Address               Address
}

// RPS datos del recibo provisional (ISS Digital).
type RPS struct {
	Type   string // "RPS"
	Series string // "NF"
	Number int64
}

// Invoice nota fiscal de servicio (NFS-e), raíz del agregado.
type Invoice struct {
	ID                    string
	Provider              Provider
	Reference             string // clave de idempotencia ante el proveedor; inmutable tras crearse
	ProviderDocumentID    string // id del documento en PlugNotas / número de lote en ISS Digital
	Number                string // número de NFS-e asignado tras la autorización
	VerificationCode      string
	Status                Status
	ProviderStatus        string // último estado nativo recibido
	StatusMessage         string
	ServiceAmount         decimal.Decimal
	DeductionAmount       decimal.Decimal
	ISSRate               decimal.Decimal // porcentaje, ej. 5.00
	ISSWithheld           bool
	ServiceCode           string // ítem LC 116 ("08.01")
	TaxClassificationCode string // derivado, 6 dígitos
	CNAE                  string
	Taxation              string // ISS Digital: T, E, ... (por defecto T)
	Operation             string // ISS Digital: A, B, ... (por defecto A)
	ServiceDescription    string
	ServiceCityCode       string // municipio de prestación (IBGE); vacío = municipio del prestador
	ServiceCityName       string
	SendEmail             bool
	Issuer                Issuer
	Payer                 Payer
	RPS                   RPS
	LineItems             []LineItem
	IssuedAt              *time.Time
	PDFKey                string
	XMLKey                string
	CancelReason          string
	ResponseLog           []ResponseLogEntry
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CollectionType tipo de recolhimento para ISS Digital: R = retenido por el tomador, A = a recaudar.
func (i *Invoice) CollectionType() string {
	if i.ISSWithheld {
		return "R"
	}
	return "A"
}

// ISSAmount valor del ISS = servicio × alícuota / 100.
func (i *Invoice) ISSAmount() decimal.Decimal {
	return i.ServiceAmount.Mul(i.ISSRate).Div(decimal.NewFromInt(100)).Round(2)
}

// HasArtifacts indica si ya se guardaron PDF y XML.
func (i *Invoice) HasArtifacts() bool {
	return i.PDFKey != "" && i.XMLKey != ""
}
