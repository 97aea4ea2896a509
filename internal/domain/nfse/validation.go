// Package nfse contiene las reglas puras de la NFS-e: validación previa al envío,
// derivación de códigos, hash del RPS, tablas de estados y transiciones.
package nfse

import (
	"strings"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/pkg/fiscal"
)

// Validate verifica los invariantes entre campos antes de cualquier llamada de red.
// Devuelve *domain.ValidationError con el primer campo inválido y la lista completa en el mensaje.
func Validate(inv *entity.Invoice) error {
	if inv == nil {
		return domain.NewValidationError("invoice", "nota vacía")
	}
	var v violations

	if !inv.Provider.Valid() {
		v.add("provider", "proveedor no soportado: "+string(inv.Provider))
	}
	if strings.TrimSpace(inv.Reference) == "" {
		v.add("reference", "referencia obligatoria")
	}
	if len(fiscal.OnlyDigits(inv.Issuer.CNPJ)) != 14 {
		v.add("issuer.cnpj", "el CNPJ del prestador debe tener 14 dígitos")
	}
	if fiscal.ClassifyDocument(inv.Payer.Document) == fiscal.DocumentUnknown {
		v.add("payer.document", "el documento del tomador debe tener 11 (CPF) o 14 (CNPJ) dígitos")
	}
	if fiscal.OnlyDigits(inv.Issuer.Address.CityCode) == "" {
		v.add("issuer.address.city_code", "código IBGE del municipio del prestador obligatorio")
	}
	if fiscal.OnlyDigits(inv.Payer.Address.CityCode) == "" {
		v.add("payer.address.city_code", "código IBGE del municipio del tomador obligatorio")
	}
	if inv.Provider.RequiresPayerAddress() {
		if fiscal.IsBlank(inv.Payer.Address.Street) {
			v.add("payer.address.street", "logradouro del tomador obligatorio")
		}
		if fiscal.IsBlank(inv.Payer.Address.Number) {
			v.add("payer.address.number", "número de la dirección del tomador obligatorio")
		}
	}
	if inv.Provider == entity.ProviderISSDigital && fiscal.OnlyDigits(inv.Issuer.MunicipalRegistration) == "" {
		v.add("issuer.municipal_registration", "inscripción municipal del prestador obligatoria")
	}
	if fiscal.IsBlank(inv.ServiceCode) {
		v.add("service_code", "código de servicio (LC 116) obligatorio")
	}
	if !inv.ServiceAmount.IsPositive() {
		v.add("service_amount", "el valor del servicio debe ser mayor a cero")
	}
	if inv.DeductionAmount.IsNegative() || inv.DeductionAmount.GreaterThan(inv.ServiceAmount) {
		v.add("deduction_amount", "la deducción debe estar entre cero y el valor del servicio")
	}
	for _, li := range inv.LineItems {
		if !li.Quantity.IsPositive() || li.UnitPrice.IsNegative() {
			v.add("line_items", "cantidad y precio unitario inválidos en "+li.Description)
			break
		}
	}
	return v.err()
}

// ValidateLineItems reglas mínimas de las líneas al reemplazarlas en borrador.
func ValidateLineItems(items []entity.LineItem) error {
	for _, li := range items {
		if fiscal.IsBlank(li.Description) {
			return domain.NewValidationError("line_items.description", "descripción obligatoria")
		}
		if !li.Quantity.IsPositive() {
			return domain.NewValidationError("line_items.quantity", "la cantidad debe ser mayor a cero")
		}
		if li.UnitPrice.IsNegative() {
			return domain.NewValidationError("line_items.unit_price", "el precio unitario no puede ser negativo")
		}
	}
	return nil
}

type violations struct {
	first string
	msgs  []string
}

func (v *violations) add(field, msg string) {
	if v.first == "" {
		v.first = field
	}
	v.msgs = append(v.msgs, field+": "+msg)
}

func (v *violations) err() error {
	if len(v.msgs) == 0 {
		return nil
	}
	return &domain.ValidationError{Field: v.first, Message: strings.Join(v.msgs, "; ")}
}
