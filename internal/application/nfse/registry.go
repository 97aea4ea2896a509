package nfse

import (
	"fmt"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// Registry selecciona el gateway según el proveedor de la nota.
type Registry struct {
	gateways map[entity.Provider]ProviderGateway
}

// NewRegistry registra los gateways dados; ignora los nil (proveedor no configurado).
func NewRegistry(gateways ...ProviderGateway) *Registry {
	r := &Registry{gateways: make(map[entity.Provider]ProviderGateway, len(gateways))}
	for _, g := range gateways {
		if g != nil {
			r.gateways[g.Provider()] = g
		}
	}
	return r
}

// Get devuelve el gateway o domain.ErrUnknownProvider.
func (r *Registry) Get(p entity.Provider) (ProviderGateway, error) {
	g, ok := r.gateways[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, p)
	}
	return g, nil
}

// Providers lista los proveedores habilitados.
func (r *Registry) Providers() []entity.Provider {
	out := make([]entity.Provider, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	return out
}
