// Package bootstrap arma el grafo de dependencias compartido por la API y las herramientas CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/infrastructure/artifact"
	"github.com/jhoicas/nfse-api/internal/infrastructure/focusnfe"
	"github.com/jhoicas/nfse-api/internal/infrastructure/issdigital"
	"github.com/jhoicas/nfse-api/internal/infrastructure/issdigital/signer"
	"github.com/jhoicas/nfse-api/internal/infrastructure/plugnotas"
	"github.com/jhoicas/nfse-api/internal/infrastructure/postgres"
	"github.com/jhoicas/nfse-api/internal/infrastructure/redislock"
	"github.com/jhoicas/nfse-api/internal/infrastructure/storage"
	"github.com/jhoicas/nfse-api/pkg/config"
	"github.com/jhoicas/nfse-api/pkg/logger"
)

// lockWait espera máxima por el lock distribuido antes de ErrOperationInProgress.
const lockWait = 5 * time.Second

// Components servicios listos para usar.
type Components struct {
	Service  *appnfse.Service
	Registry *appnfse.Registry
	Repo     *postgres.InvoiceRepo
	ISS      *issdigital.Gateway

	redis *redis.Client
}

// Close libera las conexiones abiertas por Build (el pool lo cierra quien lo creó).
func (c *Components) Close() {
	if c.redis != nil {
		_ = c.redis.Close()
	}
}

// Build construye gateways, almacenamiento, locks y el servicio de NFS-e.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, pool *pgxpool.Pool) (*Components, error) {
	now := time.Now
	c := &Components{Repo: postgres.NewInvoiceRepository(pool)}

	// Gateways: todos quedan registrados; la falta de credenciales la reporta Preflight.
	focusGW := focusnfe.NewGateway(focusnfe.NewClient(focusnfe.ClientConfig{
		Token:        cfg.Focus.Token,
		Homologation: cfg.Focus.Homologation,
		BaseURL:      cfg.Focus.BaseURL,
		Timeout:      cfg.Focus.Timeout,
	}), log.Component("focusnfe"), now)

	plugGW := plugnotas.NewGateway(plugnotas.NewClient(plugnotas.ClientConfig{
		APIKey:  cfg.PlugNotas.APIKey,
		Sandbox: cfg.PlugNotas.Sandbox,
		BaseURL: cfg.PlugNotas.BaseURL,
		Timeout: cfg.PlugNotas.Timeout,
	}), log.Component("plugnotas"))

	issGW, err := buildISS(cfg.ISSDigital, log, now)
	if err != nil {
		return nil, err
	}
	c.ISS = issGW
	c.Registry = appnfse.NewRegistry(focusGW, plugGW, issGW)

	// Artefactos: MinIO si está configurado, si no la tabla nfse_artifacts.
	var store appnfse.ArtifactStore = postgres.NewArtifactStore(pool)
	if cfg.Storage.Enabled() {
		minioStore, err := storage.NewMinioStore(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("minio bucket: %w", err)
		}
		store = minioStore
		log.Info().Str("bucket", cfg.Storage.Bucket).Msg("artefactos en MinIO")
	}

	// Locks: mutex local siempre; Redis encadenado cuando hay varias réplicas.
	locker := appnfse.ChainLocker{appnfse.NewKeyedMutex()}
	if cfg.Redis.Enabled() {
		rdb, err := redislock.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.redis = rdb
		locker = append(locker, redislock.New(rdb, cfg.Redis.LockTTL, lockWait, log.Component("redislock")))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("lock distribuido en Redis")
	}

	c.Service = appnfse.NewService(appnfse.Deps{
		Repo:     c.Repo,
		Tx:       postgres.NewTxRunner(pool),
		Registry: c.Registry,
		Locker:   locker,
		Fetcher:  artifact.NewHTTPFetcher(cfg.Storage.Timeout, log.Component("artifact")),
		Store:    store,
		Logger:   log.Component("nfse"),
		Now:      now,
	})
	return c, nil
}

// buildISS carga el certificado A1 si hay ruta; sin ruta el XML viaja sin firma (solo homologación).
func buildISS(cfg config.ISSDigitalConfig, log *logger.Logger, now func() time.Time) (*issdigital.Gateway, error) {
	var sig issdigital.Signer
	if cfg.CertPath != "" {
		cert, err := signer.Load(cfg.CertPath, cfg.CertPassword)
		if err != nil {
			return nil, fmt.Errorf("certificado ISS: %w", err)
		}
		if info, err := signer.Describe(cert); err == nil {
			ev := log.Info()
			if info.Expired(now()) {
				ev = log.Warn()
			}
			ev.Str("subject", info.Subject).Time("not_after", info.NotAfter).Msg("certificado ISS Digital cargado")
		}
		xs, err := signer.New(cert)
		if err != nil {
			return nil, err
		}
		sig = xs
	}

	lots, err := snowflake.NewNode(int64(cfg.NodeID))
	if err != nil {
		return nil, fmt.Errorf("generador de lotes: %w", err)
	}
	return issdigital.NewGateway(issdigital.Config{
		Issuer: issdigital.NewIssuer(cfg.InscricaoMunicipal, cfg.CNPJ, cfg.RazaoSocial,
			cfg.CodCidade, cfg.TokenEnvio, cfg.CidadeIBGE),
		Homologation: cfg.Homologation,
		Endpoint:     cfg.EndpointURL,
		Timeout:      cfg.Timeout,
	}, sig, lots, log.Component("iss_digital"), now)
}
