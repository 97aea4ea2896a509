package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
)

var _ appnfse.ArtifactStore = (*ArtifactStore)(nil)

// ArtifactStore guarda PDF/XML en la tabla nfse_artifacts cuando no hay object storage.
type ArtifactStore struct {
	q Querier
}

// NewArtifactStore construye el adaptador.
func NewArtifactStore(q Querier) *ArtifactStore {
	return &ArtifactStore{q: q}
}

// Put inserta o reemplaza el artefacto.
func (s *ArtifactStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO nfse_artifacts (key, content_type, data, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET content_type = EXCLUDED.content_type, data = EXCLUDED.data`,
		key, contentType, data)
	if err != nil {
		return fmt.Errorf("upsert nfse_artifacts: %w", err)
	}
	return nil
}

// Get domain.ErrNotFound si no existe.
func (s *ArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.q.QueryRow(ctx, `SELECT data FROM nfse_artifacts WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get nfse_artifacts: %w", err)
	}
	return data, nil
}
