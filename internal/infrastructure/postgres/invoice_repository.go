package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
// Prestador y tomador se guardan como JSONB.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `id, provider, reference, COALESCE(provider_document_id, ''), COALESCE(number, ''),
	COALESCE(verification_code, ''), status, provider_status, status_message,
	service_amount, deduction_amount, iss_rate, iss_withheld,
	service_code, tax_classification_code, cnae, taxation, operation, service_description,
	service_city_code, service_city_name, send_email, issuer, payer,
	rps_type, rps_series, rps_number, issued_at,
	COALESCE(pdf_key, ''), COALESCE(xml_key, ''), COALESCE(cancel_reason, ''), created_at, updated_at`

// Create persiste cabecera y líneas. ErrDuplicate si (provider, reference) ya existe.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	issuer, payer, err := encodeParties(inv)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO nfse_invoices (id, provider, reference, provider_document_id, number, verification_code,
			status, provider_status, status_message, service_amount, deduction_amount, iss_rate, iss_withheld,
			service_code, tax_classification_code, cnae, taxation, operation, service_description,
			service_city_code, service_city_name, send_email, issuer, payer,
			rps_type, rps_series, rps_number, issued_at, pdf_key, xml_key, cancel_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)`
	_, err = r.q.Exec(ctx, query,
		inv.ID, string(inv.Provider), inv.Reference, nullIfEmpty(inv.ProviderDocumentID), nullIfEmpty(inv.Number), nullIfEmpty(inv.VerificationCode),
		string(inv.Status), inv.ProviderStatus, inv.StatusMessage, inv.ServiceAmount, inv.DeductionAmount, inv.ISSRate, inv.ISSWithheld,
		inv.ServiceCode, inv.TaxClassificationCode, inv.CNAE, inv.Taxation, inv.Operation, inv.ServiceDescription,
		inv.ServiceCityCode, inv.ServiceCityName, inv.SendEmail, issuer, payer,
		inv.RPS.Type, inv.RPS.Series, inv.RPS.Number, inv.IssuedAt, nullIfEmpty(inv.PDFKey), nullIfEmpty(inv.XMLKey), nullIfEmpty(inv.CancelReason),
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: referencia %s/%s", domain.ErrDuplicate, inv.Provider, inv.Reference)
		}
		return fmt.Errorf("insert nfse_invoices: %w", err)
	}
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		li.InvoiceID = inv.ID
		if li.Position == 0 {
			li.Position = i + 1
		}
		if err := r.insertLineItem(ctx, li); err != nil {
			return err
		}
	}
	return nil
}

// Update persiste el estado, los datos del proveedor y los campos editables en borrador.
func (r *InvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	issuer, payer, err := encodeParties(inv)
	if err != nil {
		return err
	}
	query := `
		UPDATE nfse_invoices
		SET provider_document_id    = $2,
		    number                  = $3,
		    verification_code       = $4,
		    status                  = $5,
		    provider_status         = $6,
		    status_message          = $7,
		    service_amount          = $8,
		    deduction_amount        = $9,
		    iss_rate                = $10,
		    iss_withheld            = $11,
		    service_code            = $12,
		    tax_classification_code = $13,
		    cnae                    = $14,
		    service_description     = $15,
		    service_city_code       = $16,
		    service_city_name       = $17,
		    send_email              = $18,
		    issuer                  = $19,
		    payer                   = $20,
		    rps_number              = $21,
		    issued_at               = $22,
		    pdf_key                 = $23,
		    xml_key                 = $24,
		    cancel_reason           = $25,
		    updated_at              = $26
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		inv.ID, nullIfEmpty(inv.ProviderDocumentID), nullIfEmpty(inv.Number), nullIfEmpty(inv.VerificationCode),
		string(inv.Status), inv.ProviderStatus, inv.StatusMessage,
		inv.ServiceAmount, inv.DeductionAmount, inv.ISSRate, inv.ISSWithheld,
		inv.ServiceCode, inv.TaxClassificationCode, inv.CNAE, inv.ServiceDescription,
		inv.ServiceCityCode, inv.ServiceCityName, inv.SendEmail, issuer, payer,
		inv.RPS.Number, inv.IssuedAt, nullIfEmpty(inv.PDFKey), nullIfEmpty(inv.XMLKey), nullIfEmpty(inv.CancelReason),
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update nfse_invoices: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID devuelve la nota con sus líneas, o nil si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	row := r.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM nfse_invoices WHERE id = $1`, id)
	return r.getOne(ctx, row)
}

// GetByReference busca por (provider, reference), o nil si no existe.
func (r *InvoiceRepo) GetByReference(ctx context.Context, provider entity.Provider, reference string) (*entity.Invoice, error) {
	row := r.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM nfse_invoices WHERE provider = $1 AND reference = $2`,
		string(provider), reference)
	return r.getOne(ctx, row)
}

func (r *InvoiceRepo) getOne(ctx context.Context, row pgx.Row) (*entity.Invoice, error) {
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get nfse_invoices: %w", err)
	}
	if inv.LineItems, err = r.listLineItems(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListByStatus notas en alguno de los estados, las menos recientes primero. Sin líneas.
func (r *InvoiceRepo) ListByStatus(ctx context.Context, statuses []entity.Status, limit int) ([]*entity.Invoice, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+invoiceColumns+` FROM nfse_invoices WHERE status = ANY($1) ORDER BY updated_at ASC LIMIT $2`,
		names, limit)
	if err != nil {
		return nil, fmt.Errorf("list nfse_invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan nfse_invoices: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// ReplaceLineItems borra y vuelve a insertar las líneas de la nota.
func (r *InvoiceRepo) ReplaceLineItems(ctx context.Context, invoiceID string, items []entity.LineItem) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM nfse_line_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete nfse_line_items: %w", err)
	}
	for i := range items {
		li := items[i]
		li.ID = ""
		li.InvoiceID = invoiceID
		li.Position = i + 1
		if err := r.insertLineItem(ctx, &li); err != nil {
			return err
		}
	}
	return nil
}

// Delete elimina la nota; líneas y bitácora caen por ON DELETE CASCADE.
func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM nfse_invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete nfse_invoices: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendLog agrega una entrada a la bitácora.
func (r *InvoiceRepo) AppendLog(ctx context.Context, e *entity.ResponseLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO nfse_response_log (id, invoice_id, operation, outcome, http_status, provider_status, message, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.InvoiceID, e.Operation, e.Outcome, e.HTTPStatus, e.ProviderStatus, e.Message, e.Body, e.CreatedAt)
	if err != nil {
		if isFKViolation(err) {
			return fmt.Errorf("%w: nota %s", domain.ErrNotFound, e.InvoiceID)
		}
		return fmt.Errorf("insert nfse_response_log: %w", err)
	}
	return nil
}

// ListLog bitácora en orden cronológico.
func (r *InvoiceRepo) ListLog(ctx context.Context, invoiceID string) ([]entity.ResponseLogEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, operation, outcome, http_status, provider_status, message, body, created_at
		FROM nfse_response_log WHERE invoice_id = $1 ORDER BY created_at ASC, id ASC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list nfse_response_log: %w", err)
	}
	defer rows.Close()
	var list []entity.ResponseLogEntry
	for rows.Next() {
		var e entity.ResponseLogEntry
		if err := rows.Scan(&e.ID, &e.InvoiceID, &e.Operation, &e.Outcome, &e.HTTPStatus,
			&e.ProviderStatus, &e.Message, &e.Body, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan nfse_response_log: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// NextRPSNumber siguiente valor de la secuencia del RPS.
func (r *InvoiceRepo) NextRPSNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT nextval('nfse_rps_numero_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("nextval nfse_rps_numero_seq: %w", err)
	}
	return n, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (r *InvoiceRepo) insertLineItem(ctx context.Context, li *entity.LineItem) error {
	if li.ID == "" {
		li.ID = uuid.New().String()
	}
	query := `
		INSERT INTO nfse_line_items (id, invoice_id, position, description, quantity, unit_price, taxable)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query, li.ID, li.InvoiceID, li.Position, li.Description, li.Quantity, li.UnitPrice, li.Taxable)
	if err != nil {
		return fmt.Errorf("insert nfse_line_items: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) listLineItems(ctx context.Context, invoiceID string) ([]entity.LineItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, position, description, quantity, unit_price, taxable
		FROM nfse_line_items WHERE invoice_id = $1 ORDER BY position ASC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list nfse_line_items: %w", err)
	}
	defer rows.Close()
	var list []entity.LineItem
	for rows.Next() {
		var li entity.LineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.Position, &li.Description, &li.Quantity, &li.UnitPrice, &li.Taxable); err != nil {
			return nil, fmt.Errorf("scan nfse_line_items: %w", err)
		}
		list = append(list, li)
	}
	return list, rows.Err()
}

func scanInvoice(row pgxScanner) (*entity.Invoice, error) {
	var (
		inv              entity.Invoice
		provider, status string
		issuer, payer    []byte
	)
	err := row.Scan(
		&inv.ID, &provider, &inv.Reference, &inv.ProviderDocumentID, &inv.Number,
		&inv.VerificationCode, &status, &inv.ProviderStatus, &inv.StatusMessage,
		&inv.ServiceAmount, &inv.DeductionAmount, &inv.ISSRate, &inv.ISSWithheld,
		&inv.ServiceCode, &inv.TaxClassificationCode, &inv.CNAE, &inv.Taxation, &inv.Operation, &inv.ServiceDescription,
		&inv.ServiceCityCode, &inv.ServiceCityName, &inv.SendEmail, &issuer, &payer,
		&inv.RPS.Type, &inv.RPS.Series, &inv.RPS.Number, &inv.IssuedAt,
		&inv.PDFKey, &inv.XMLKey, &inv.CancelReason, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Provider = entity.Provider(provider)
	inv.Status = entity.Status(status)
	if err := decodeParties(&inv, issuer, payer); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ── JSONB de prestador y tomador ──────────────────────────────────────────────

type addressDoc struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	ZipCode    string `json:"zip_code,omitempty"`
	UF         string `json:"uf,omitempty"`
	StateCode  string `json:"state_code,omitempty"`
	CityCode   string `json:"city_code,omitempty"`
	CityName   string `json:"city_name,omitempty"`
}

type issuerDoc struct {
	CNPJ                  string     `json:"cnpj"`
	MunicipalRegistration string     `json:"municipal_registration,omitempty"`
	LegalName             string     `json:"legal_name,omitempty"`
	TaxRegime             string     `json:"tax_regime,omitempty"`
	SpecialTaxRegime      string     `json:"special_tax_regime,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	Email                 string     `json:"email,omitempty"`
	Address               addressDoc `json:"address"`
}

type payerDoc struct {
	Document              string     `json:"document"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	MunicipalRegistration string     `json:"municipal_registration,omitempty"`
	Address               addressDoc `json:"address"`
}

func encodeParties(inv *entity.Invoice) (issuer, payer []byte, err error) {
	i := inv.Issuer
	issuer, err = json.Marshal(issuerDoc{
		CNPJ: i.CNPJ, MunicipalRegistration: i.MunicipalRegistration, LegalName: i.LegalName,
		TaxRegime: i.TaxRegime, SpecialTaxRegime: i.SpecialTaxRegime, Phone: i.Phone, Email: i.Email,
		Address: addressDoc(i.Address),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode issuer: %w", err)
	}
	p := inv.Payer
	payer, err = json.Marshal(payerDoc{
		Document: p.Document, Name: p.Name, Email: p.Email, Phone: p.Phone,
		MunicipalRegistration: p.MunicipalRegistration, Address: addressDoc(p.Address),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode payer: %w", err)
	}
	return issuer, payer, nil
}

func decodeParties(inv *entity.Invoice, issuer, payer []byte) error {
	var i issuerDoc
	if len(issuer) > 0 {
		if err := json.Unmarshal(issuer, &i); err != nil {
			return fmt.Errorf("decode issuer: %w", err)
		}
	}
	var p payerDoc
	if len(payer) > 0 {
		if err := json.Unmarshal(payer, &p); err != nil {
			return fmt.Errorf("decode payer: %w", err)
		}
	}
	inv.Issuer = entity.Issuer{
		CNPJ: i.CNPJ, MunicipalRegistration: i.MunicipalRegistration, LegalName: i.LegalName,
		TaxRegime: i.TaxRegime, SpecialTaxRegime: i.SpecialTaxRegime, Phone: i.Phone, Email: i.Email,
		Address: entity.Address(i.Address),
	}
	inv.Payer = entity.Payer{
		Document: p.Document, Name: p.Name, Email: p.Email, Phone: p.Phone,
		MunicipalRegistration: p.MunicipalRegistration, Address: entity.Address(p.Address),
	}
	return nil
}
