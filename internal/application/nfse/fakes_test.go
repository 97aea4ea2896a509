package nfse_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
)

// ── Repositorio en memoria ────────────────────────────────────────────────────

type memRepo struct {
	mu       sync.Mutex
	invoices map[string]entity.Invoice
	logs     []entity.ResponseLogEntry
	rpsSeq   int64
}

func newMemRepo() *memRepo {
	return &memRepo{invoices: make(map[string]entity.Invoice)}
}

func clone(inv entity.Invoice) *entity.Invoice {
	inv.LineItems = append([]entity.LineItem(nil), inv.LineItems...)
	inv.ResponseLog = nil
	return &inv
}

func (r *memRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.invoices {
		if v.Provider == inv.Provider && v.Reference == inv.Reference {
			return domain.ErrDuplicate
		}
	}
	r.invoices[inv.ID] = *clone(*inv)
	return nil
}

func (r *memRepo) Update(_ context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; !ok {
		return domain.ErrNotFound
	}
	r.invoices[inv.ID] = *clone(*inv)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	return clone(v), nil
}

func (r *memRepo) GetByReference(_ context.Context, p entity.Provider, ref string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.invoices {
		if v.Provider == p && v.Reference == ref {
			return clone(v), nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListByStatus(_ context.Context, statuses []entity.Status, limit int) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, v := range r.invoices {
		for _, s := range statuses {
			if v.Status == s {
				out = append(out, clone(v))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) ReplaceLineItems(_ context.Context, id string, items []entity.LineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.invoices[id]
	v.LineItems = append([]entity.LineItem(nil), items...)
	r.invoices[id] = v
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.invoices, id)
	return nil
}

func (r *memRepo) AppendLog(_ context.Context, e *entity.ResponseLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *e)
	return nil
}

func (r *memRepo) ListLog(_ context.Context, id string) ([]entity.ResponseLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ResponseLogEntry
	for _, e := range r.logs {
		if e.InvoiceID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) NextRPSNumber(context.Context) (int64, error) {
	return atomic.AddInt64(&r.rpsSeq, 1), nil
}

func (r *memRepo) logCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

func (r *memRepo) lastLog() entity.ResponseLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs[len(r.logs)-1]
}

// memTx ejecuta fn sobre el mismo repositorio (sin rollback real).
type memTx struct{ repo *memRepo }

func (t memTx) RunInvoice(_ context.Context, fn func(repository.InvoiceRepository) error) error {
	return fn(t.repo)
}

// ── Gateway de prueba ─────────────────────────────────────────────────────────

type fakeGateway struct {
	provider  entity.Provider
	preflight error
	send      func(inv *entity.Invoice) (*nfse.ProviderResult, error)
	query     func(inv *entity.Invoice) (*nfse.ProviderResult, error)
	cancel    func(inv *entity.Invoice, reason string) (*nfse.ProviderResult, error)

	sends   atomic.Int32
	queries atomic.Int32
	cancels atomic.Int32
}

func (g *fakeGateway) Provider() entity.Provider      { return g.provider }
func (g *fakeGateway) Preflight(*entity.Invoice) error { return g.preflight }

func (g *fakeGateway) Send(_ context.Context, inv *entity.Invoice) (*nfse.ProviderResult, error) {
	g.sends.Add(1)
	return g.send(inv)
}

func (g *fakeGateway) Query(_ context.Context, inv *entity.Invoice) (*nfse.ProviderResult, error) {
	g.queries.Add(1)
	return g.query(inv)
}

func (g *fakeGateway) Cancel(_ context.Context, inv *entity.Invoice, reason string) (*nfse.ProviderResult, error) {
	if g.cancel == nil {
		return nil, domain.ErrCancelUnsupported
	}
	g.cancels.Add(1)
	return g.cancel(inv, reason)
}

func (g *fakeGateway) ArtifactCandidates(inv *entity.Invoice, _ *nfse.ProviderResult) (pdf, xml []nfse.ArtifactCandidate) {
	return []nfse.ArtifactCandidate{{URL: "https://artefactos/" + inv.Reference + ".pdf"}},
		[]nfse.ArtifactCandidate{{URL: "https://artefactos/" + inv.Reference + ".xml"}}
}

func result(native string) func(*entity.Invoice) (*nfse.ProviderResult, error) {
	return func(*entity.Invoice) (*nfse.ProviderResult, error) {
		return &nfse.ProviderResult{NativeStatus: native, HTTPStatus: 200, Raw: `{"status":"` + native + `"}`}, nil
	}
}

// ── Artefactos ────────────────────────────────────────────────────────────────

type fakeFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, kind nfse.ArtifactKind, _ []nfse.ArtifactCandidate) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if kind == nfse.ArtifactPDF {
		return []byte("%PDF-1.4 prueba"), nil
	}
	return []byte("<nfse/>"), nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Put(_ context.Context, key, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	if !ok {
		return nil, domain.ErrArtifactUnavailable
	}
	return d, nil
}

// ── Armado ────────────────────────────────────────────────────────────────────

type harness struct {
	repo    *memRepo
	gw      *fakeGateway
	fetcher *fakeFetcher
	store   *memStore
	svc     *nfse.Service
}

func newHarness(gw *fakeGateway) *harness {
	h := &harness{repo: newMemRepo(), gw: gw, fetcher: &fakeFetcher{}, store: newMemStore()}
	fixed := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	h.svc = nfse.NewService(nfse.Deps{
		Repo:     h.repo,
		Tx:       memTx{repo: h.repo},
		Registry: nfse.NewRegistry(gw),
		Fetcher:  h.fetcher,
		Store:    h.store,
		Now:      func() time.Time { return fixed },
	})
	return h
}

func buildDraft(p entity.Provider, ref string) *entity.Invoice {
	return &entity.Invoice{
		Provider:      p,
		Reference:     ref,
		ServiceAmount: decimal.RequireFromString("100.00"),
		ISSRate:       decimal.NewFromInt(5),
		ServiceCode:   "08.01",
		Issuer: entity.Issuer{
			CNPJ:                  "12345678000195",
			MunicipalRegistration: "123456",
			LegalName:             "Escola Exemplo Ltda",
			Address:               entity.Address{StateCode: "21", CityCode: "2111300", UF: "MA"},
		},
		Payer: entity.Payer{
			Document: "12345678909",
			Name:     "Maria da Silva",
			Address:  entity.Address{Street: "Rua Grande", Number: "100", CityCode: "2111300", UF: "MA"},
		},
	}
}

// seed crea la nota y la deja en el estado indicado.
func (h *harness) seed(ref string, status entity.Status) *entity.Invoice {
	inv, err := h.svc.Create(context.Background(), buildDraft(h.gw.provider, ref))
	if err != nil {
		panic(err)
	}
	if status != entity.StatusDraft {
		inv.Status = status
		inv.ProviderDocumentID = "DOC-" + ref
		if err := h.repo.Update(context.Background(), inv); err != nil {
			panic(err)
		}
	}
	return inv
}
