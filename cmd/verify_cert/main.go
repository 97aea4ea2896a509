// verify_cert diagnostica el certificado A1 usado para firmar los lotes de ISS Digital.
//
// Uso: go run ./cmd/verify_cert [ruta.p12] [contraseña]
// Sin argumentos usa ISS_CERT_PATH e ISS_CERT_PASSWORD.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/nfse-api/internal/infrastructure/issdigital/signer"
	"github.com/jhoicas/nfse-api/pkg/config"
)

const sampleXML = `<Lote Id="lote:diagnostico"><Cabecalho><Versao>1</Versao></Cabecalho></Lote>`

func main() {
	certPath, certPass := "", ""
	if len(os.Args) > 1 {
		certPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		certPass = os.Args[2]
	}
	if certPath == "" {
		cfg, err := config.Load()
		if err != nil {
			fail("configuración", err)
		}
		certPath, certPass = cfg.ISSDigital.CertPath, cfg.ISSDigital.CertPassword
	}
	if certPath == "" {
		fail("configuración", fmt.Errorf("indique la ruta del certificado o ISS_CERT_PATH"))
	}

	fmt.Println("DIAGNÓSTICO DE CERTIFICADO ISS DIGITAL")
	fmt.Println("--------------------------------------")
	fmt.Printf("Archivo: %s\n", certPath)

	cert, err := signer.Load(certPath, certPass)
	if err != nil {
		fail("archivo o contraseña", err)
	}
	info, err := signer.Describe(cert)
	if err != nil {
		fail("certificado", err)
	}
	fmt.Printf("Titular:  %s\n", info.Subject)
	fmt.Printf("Emisor:   %s\n", info.Issuer)
	fmt.Printf("Serie:    %s\n", info.Serial)
	fmt.Printf("Vigencia: %s a %s\n", info.NotBefore.Format(time.DateOnly), info.NotAfter.Format(time.DateOnly))
	fmt.Printf("Días para vencer: %d\n", int(time.Until(info.NotAfter).Hours()/24))
	if info.Expired(time.Now()) {
		fail("vigencia", fmt.Errorf("certificado fuera de vigencia"))
	}

	xs, err := signer.New(cert)
	if err != nil {
		fail("llave privada", err)
	}
	if _, err := xs.Sign([]byte(sampleXML), "lote:diagnostico"); err != nil {
		fail("firma de prueba", err)
	}
	fmt.Println("\nOK: el certificado carga y firma correctamente.")
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "\nERROR (%s): %v\n", step, err)
	os.Exit(1)
}
