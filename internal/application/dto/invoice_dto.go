package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// AddressDTO dirección con códigos IBGE.
type AddressDTO struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	ZipCode    string `json:"zip_code,omitempty"`
	UF         string `json:"uf,omitempty"`
	StateCode  string `json:"state_code,omitempty"`
	CityCode   string `json:"city_code"`
	CityName   string `json:"city_name,omitempty"`
}

// IssuerDTO prestador.
type IssuerDTO struct {
	CNPJ                  string     `json:"cnpj"`
	MunicipalRegistration string     `json:"municipal_registration,omitempty"`
	LegalName             string     `json:"legal_name,omitempty"`
	TaxRegime             string     `json:"tax_regime,omitempty"`
	SpecialTaxRegime      string     `json:"special_tax_regime,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	Email                 string     `json:"email,omitempty"`
	Address               AddressDTO `json:"address"`
}

// PayerDTO tomador.
type PayerDTO struct {
	Document              string     `json:"document"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	MunicipalRegistration string     `json:"municipal_registration,omitempty"`
	Address               AddressDTO `json:"address"`
}

// RPSDTO recibo provisional (ISS Digital). Number 0 = asignar de la secuencia.
type RPSDTO struct {
	Type   string `json:"type,omitempty"`
	Series string `json:"series,omitempty"`
	Number int64  `json:"number,omitempty"`
}

// LineItemDTO línea de detalle.
type LineItemDTO struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Taxable     *bool           `json:"taxable,omitempty"`
}

// CreateInvoiceRequest cuerpo de POST /api/invoices.
type CreateInvoiceRequest struct {
	Provider           string          `json:"provider"`
	Reference          string          `json:"reference,omitempty"`
	ServiceAmount      decimal.Decimal `json:"service_amount"`
	DeductionAmount    decimal.Decimal `json:"deduction_amount"`
	ISSRate            decimal.Decimal `json:"iss_rate"`
	ISSWithheld        bool            `json:"iss_withheld"`
	ServiceCode        string          `json:"service_code"`
	CNAE               string          `json:"cnae,omitempty"`
	Taxation           string          `json:"taxation,omitempty"`
	Operation          string          `json:"operation,omitempty"`
	ServiceDescription string          `json:"service_description"`
	ServiceCityCode    string          `json:"service_city_code,omitempty"`
	ServiceCityName    string          `json:"service_city_name,omitempty"`
	SendEmail          bool            `json:"send_email"`
	Issuer             IssuerDTO       `json:"issuer"`
	Payer              PayerDTO        `json:"payer"`
	RPS                RPSDTO          `json:"rps"`
	LineItems          []LineItemDTO   `json:"line_items,omitempty"`
}

// ReplaceItemsRequest cuerpo de PUT .../items.
type ReplaceItemsRequest struct {
	Items []LineItemDTO `json:"items"`
}

// CancelRequest cuerpo de POST .../cancel.
type CancelRequest struct {
	Justification string `json:"justification"`
}

// ResendEmailRequest cuerpo de POST .../email.
type ResendEmailRequest struct {
	Emails []string `json:"emails"`
}

// ResponseLogDTO entrada de la bitácora.
type ResponseLogDTO struct {
	Operation      string    `json:"operation"`
	Outcome        string    `json:"outcome"`
	HTTPStatus     int       `json:"http_status,omitempty"`
	ProviderStatus string    `json:"provider_status,omitempty"`
	Message        string    `json:"message,omitempty"`
	Body           string    `json:"body,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// InvoiceResponse representación de la nota.
type InvoiceResponse struct {
	ID                    string           `json:"id"`
	Provider              string           `json:"provider"`
	Reference             string           `json:"reference"`
	Status                string           `json:"status"`
	ProviderStatus        string           `json:"provider_status,omitempty"`
	StatusMessage         string           `json:"status_message,omitempty"`
	ProviderDocumentID    string           `json:"provider_document_id,omitempty"`
	Number                string           `json:"number,omitempty"`
	VerificationCode      string           `json:"verification_code,omitempty"`
	IssuedAt              *time.Time       `json:"issued_at,omitempty"`
	ServiceAmount         decimal.Decimal  `json:"service_amount"`
	DeductionAmount       decimal.Decimal  `json:"deduction_amount"`
	ISSRate               decimal.Decimal  `json:"iss_rate"`
	ISSAmount             decimal.Decimal  `json:"iss_amount"`
	ISSWithheld           bool             `json:"iss_withheld"`
	ServiceCode           string           `json:"service_code"`
	TaxClassificationCode string           `json:"tax_classification_code,omitempty"`
	CNAE                  string           `json:"cnae,omitempty"`
	ServiceDescription    string           `json:"service_description"`
	Issuer                IssuerDTO        `json:"issuer"`
	Payer                 PayerDTO         `json:"payer"`
	RPS                   RPSDTO           `json:"rps"`
	LineItems             []LineItemDTO    `json:"line_items"`
	HasPDF                bool             `json:"has_pdf"`
	HasXML                bool             `json:"has_xml"`
	CancelReason          string           `json:"cancel_reason,omitempty"`
	ResponseLog           []ResponseLogDTO `json:"response_log,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// ── Conversión ────────────────────────────────────────────────────────────────

// ToEntity arma la nota en borrador a partir del request.
func (r CreateInvoiceRequest) ToEntity() *entity.Invoice {
	return &entity.Invoice{
		Provider:           entity.Provider(r.Provider),
		Reference:          r.Reference,
		ServiceAmount:      r.ServiceAmount,
		DeductionAmount:    r.DeductionAmount,
		ISSRate:            r.ISSRate,
		ISSWithheld:        r.ISSWithheld,
		ServiceCode:        r.ServiceCode,
		CNAE:               r.CNAE,
		Taxation:           r.Taxation,
		Operation:          r.Operation,
		ServiceDescription: r.ServiceDescription,
		ServiceCityCode:    r.ServiceCityCode,
		ServiceCityName:    r.ServiceCityName,
		SendEmail:          r.SendEmail,
		Issuer: entity.Issuer{
			CNPJ:                  r.Issuer.CNPJ,
			MunicipalRegistration: r.Issuer.MunicipalRegistration,
			LegalName:             r.Issuer.LegalName,
			TaxRegime:             r.Issuer.TaxRegime,
			SpecialTaxRegime:      r.Issuer.SpecialTaxRegime,
			Phone:                 r.Issuer.Phone,
			Email:                 r.Issuer.Email,
			Address:               entity.Address(r.Issuer.Address),
		},
		Payer: entity.Payer{
			Document:              r.Payer.Document,
			Name:                  r.Payer.Name,
			Email:                 r.Payer.Email,
			Phone:                 r.Payer.Phone,
			MunicipalRegistration: r.Payer.MunicipalRegistration,
			Address:               entity.Address(r.Payer.Address),
		},
		RPS:       entity.RPS(r.RPS),
		LineItems: LineItemsToEntity(r.LineItems),
	}
}

// LineItemsToEntity Taxable ausente = true.
func LineItemsToEntity(in []LineItemDTO) []entity.LineItem {
	out := make([]entity.LineItem, 0, len(in))
	for _, li := range in {
		taxable := true
		if li.Taxable != nil {
			taxable = *li.Taxable
		}
		out = append(out, entity.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Taxable:     taxable,
		})
	}
	return out
}

// FromInvoice construye la respuesta.
func FromInvoice(inv *entity.Invoice) InvoiceResponse {
	items := make([]LineItemDTO, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		taxable := li.Taxable
		items = append(items, LineItemDTO{Description: li.Description, Quantity: li.Quantity, UnitPrice: li.UnitPrice, Taxable: &taxable})
	}
	logs := make([]ResponseLogDTO, 0, len(inv.ResponseLog))
	for _, e := range inv.ResponseLog {
		logs = append(logs, ResponseLogDTO{
			Operation: e.Operation, Outcome: e.Outcome, HTTPStatus: e.HTTPStatus,
			ProviderStatus: e.ProviderStatus, Message: e.Message, Body: e.Body, CreatedAt: e.CreatedAt,
		})
	}
	return InvoiceResponse{
		ID:                    inv.ID,
		Provider:              string(inv.Provider),
		Reference:             inv.Reference,
		Status:                string(inv.Status),
		ProviderStatus:        inv.ProviderStatus,
		StatusMessage:         inv.StatusMessage,
		ProviderDocumentID:    inv.ProviderDocumentID,
		Number:                inv.Number,
		VerificationCode:      inv.VerificationCode,
		IssuedAt:              inv.IssuedAt,
		ServiceAmount:         inv.ServiceAmount,
		DeductionAmount:       inv.DeductionAmount,
		ISSRate:               inv.ISSRate,
		ISSAmount:             inv.ISSAmount(),
		ISSWithheld:           inv.ISSWithheld,
		ServiceCode:           inv.ServiceCode,
		TaxClassificationCode: inv.TaxClassificationCode,
		CNAE:                  inv.CNAE,
		ServiceDescription:    inv.ServiceDescription,
		Issuer: IssuerDTO{
			CNPJ: inv.Issuer.CNPJ, MunicipalRegistration: inv.Issuer.MunicipalRegistration,
			LegalName: inv.Issuer.LegalName, TaxRegime: inv.Issuer.TaxRegime,
			SpecialTaxRegime: inv.Issuer.SpecialTaxRegime, Phone: inv.Issuer.Phone,
			Email: inv.Issuer.Email, Address: AddressDTO(inv.Issuer.Address),
		},
		Payer: PayerDTO{
			Document: inv.Payer.Document, Name: inv.Payer.Name, Email: inv.Payer.Email,
			Phone: inv.Payer.Phone, MunicipalRegistration: inv.Payer.MunicipalRegistration,
			Address: AddressDTO(inv.Payer.Address),
		},
		RPS:          RPSDTO(inv.RPS),
		LineItems:    items,
		HasPDF:       inv.PDFKey != "",
		HasXML:       inv.XMLKey != "",
		CancelReason: inv.CancelReason,
		ResponseLog:  logs,
		CreatedAt:    inv.CreatedAt,
		UpdatedAt:    inv.UpdatedAt,
	}
}
