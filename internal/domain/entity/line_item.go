package entity

import "github.com/shopspring/decimal"

// LineItem línea de detalle del servicio. Solo se crea o elimina en borrador.
type LineItem struct {
	ID          string
	InvoiceID   string
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Taxable     bool
}

// Total cantidad × precio unitario, redondeado a 2 decimales.
func (l LineItem) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}
