package fiscal

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sanitize reemplaza caracteres de control (C0, DEL y C1) por espacio y colapsa
// espacios repetidos. Se aplica a la descripción del servicio antes de cualquier transmisión.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// ASCIIFold quita acentos (NFKD sin marcas) y cualquier runa no ASCII restante.
func ASCIIFold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, out)
}

// CleanField prepara un campo alfanumérico para el XML de ISS Digital:
// sin CR/LF/TAB ni controles, recortado y en ASCII.
func CleanField(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(ASCIIFold(s))
}
