package fiscal

// DocumentKind tipo de documento fiscal del tomador.
type DocumentKind int

const (
	DocumentUnknown DocumentKind = iota
	DocumentCPF
	DocumentCNPJ
)

// ClassifyDocument clasifica el documento por cantidad de dígitos (11 = CPF, 14 = CNPJ).
func ClassifyDocument(doc string) DocumentKind {
	switch len(OnlyDigits(doc)) {
	case 11:
		return DocumentCPF
	case 14:
		return DocumentCNPJ
	default:
		return DocumentUnknown
	}
}

func (k DocumentKind) String() string {
	switch k {
	case DocumentCPF:
		return "cpf"
	case DocumentCNPJ:
		return "cnpj"
	default:
		return "desconhecido"
	}
}

// SplitPhone separa DDD y número de un teléfono libre ("(98) 3232-1000").
// El DDD queda vacío cuando no hay dígitos suficientes.
func SplitPhone(phone string) (ddd, number string) {
	d := OnlyDigits(phone)
	if len(d) > 11 && d[:2] == "55" {
		d = d[2:]
	}
	if len(d) < 10 {
		return "", d
	}
	return d[:2], d[2:]
}
