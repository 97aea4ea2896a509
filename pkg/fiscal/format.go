// Package fiscal reúne las reglas de formato que exigen los proveedores de NFS-e:
// campos de ancho fijo, relleno con ceros, montos y códigos IBGE.
package fiscal

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// OnlyDigits elimina todo lo que no sea dígito ASCII.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ZFill rellena con ceros a la izquierda hasta width. No trunca.
func ZFill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// LJust rellena con espacios a la derecha hasta width. No trunca.
func LJust(s string, width int) string {
	return LJustWith(s, width, ' ')
}

// LJustWith rellena a la derecha con el carácter indicado.
func LJustWith(s string, width int, pad rune) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(string(pad), width-n)
}

// Limit corta s a un máximo de n runas.
func Limit(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FixedDigits devuelve los dígitos de s con exactamente width posiciones (ceros a la izquierda).
// Falla si los dígitos exceden el ancho: un campo truncado desplaza el hash del RPS.
func FixedDigits(s string, width int) (string, error) {
	d := OnlyDigits(s)
	if len(d) > width {
		return "", fmt.Errorf("fiscal: %q excede %d dígitos", s, width)
	}
	return ZFill(d, width), nil
}

// Cents convierte el monto a centavos enteros (redondeo a 2 decimales).
func Cents(v decimal.Decimal) int64 {
	return v.Round(2).Shift(2).IntPart()
}

// CentsFixed devuelve los centavos con width posiciones.
func CentsFixed(v decimal.Decimal, width int) (string, error) {
	c := Cents(v)
	if c < 0 {
		return "", fmt.Errorf("fiscal: valor negativo %s", v.String())
	}
	return FixedDigits(fmt.Sprintf("%d", c), width)
}

// Amount formatea montos con 2 decimales ("100.00").
func Amount(v decimal.Decimal) string {
	return v.Round(2).StringFixed(2)
}

// Amount4 formatea cantidades y alícuotas con 4 decimales ("5.0000").
func Amount4(v decimal.Decimal) string {
	return v.Round(4).StringFixed(4)
}

// IsBlank indica si la cadena solo contiene espacios.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
