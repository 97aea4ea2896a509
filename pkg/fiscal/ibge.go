package fiscal

import "strings"

// ComposeIBGE devuelve el código IBGE de 7 dígitos del municipio.
// Si city ya trae 7 dígitos se usa tal cual; si no, UF (2) + municipio (5).
func ComposeIBGE(state, city string) string {
	c := OnlyDigits(city)
	if len(c) == 7 {
		return c
	}
	s := OnlyDigits(state)
	if c == "" || s == "" {
		return c
	}
	return ZFill(s, 2) + ZFill(c, 5)
}

// StateFromIBGE extrae el código de UF (2 primeros dígitos) de un código de 7 dígitos.
func StateFromIBGE(code string) string {
	d := OnlyDigits(code)
	if len(d) < 2 {
		return ""
	}
	return d[:2]
}

var ufByIBGE = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP", "17": "TO",
	"21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB", "26": "PE", "27": "AL",
	"28": "SE", "29": "BA", "31": "MG", "32": "ES", "33": "RJ", "35": "SP", "41": "PR",
	"42": "SC", "43": "RS", "50": "MS", "51": "MT", "52": "GO", "53": "DF",
}

// UFSigla devuelve la sigla de la UF ("MA") a partir del código IBGE de la UF o del municipio.
func UFSigla(code string) string {
	return ufByIBGE[StateFromIBGE(code)]
}

// FormatItemListaServico convierte "0801" en "08.01"; los valores con punto pasan igual.
func FormatItemListaServico(code string) string {
	code = strings.TrimSpace(code)
	if strings.Contains(code, ".") {
		return code
	}
	d := OnlyDigits(code)
	if len(d) == 4 {
		return d[:2] + "." + d[2:]
	}
	return code
}
