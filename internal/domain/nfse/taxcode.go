package nfse

import (
	"strings"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/pkg/fiscal"
)

// DeriveTaxClassificationCode genera el código de tributación nacional de 6 dígitos
// a partir del ítem LC 116: "08.01" -> "080100", "8.01" -> "080100", "08.01.02" -> "080102".
// Sin puntos, "0801" y "080102" se leen en pares de dígitos.
func DeriveTaxClassificationCode(serviceCode string) (string, error) {
	code := strings.TrimSpace(serviceCode)
	if code == "" {
		return "", domain.NewValidationError("service_code", "código de servicio obligatorio para derivar la tributación nacional")
	}

	var segments []string
	if strings.Contains(code, ".") {
		segments = strings.Split(code, ".")
	} else {
		d := fiscal.OnlyDigits(code)
		if len(d)%2 != 0 && len(d) > 2 {
			d = "0" + d
		}
		for i := 0; i < len(d); i += 2 {
			end := i + 2
			if end > len(d) {
				end = len(d)
			}
			segments = append(segments, d[i:end])
		}
	}
	if len(segments) > 3 {
		segments = segments[:3]
	}

	var b strings.Builder
	for _, seg := range segments {
		d := fiscal.OnlyDigits(seg)
		if d == "" || len(d) > 2 {
			return "", domain.NewValidationError("service_code", "segmento inválido en "+serviceCode)
		}
		b.WriteString(fiscal.ZFill(d, 2))
	}
	for i := len(segments); i < 3; i++ {
		b.WriteString("00")
	}
	return b.String(), nil
}

// MunicipalTaxCode código de tributación municipal: dígitos del CNAE completados con "0" a la derecha hasta 9.
func MunicipalTaxCode(cnae string) string {
	d := fiscal.OnlyDigits(cnae)
	if d == "" {
		return ""
	}
	return fiscal.Limit(fiscal.LJustWith(d, 9, '0'), 9)
}
