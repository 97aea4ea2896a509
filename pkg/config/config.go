package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxProviderTimeout es el tope de espera por llamada a un proveedor fiscal.
const MaxProviderTimeout = 60 * time.Second

// MaxISSNodeID mayor id de nodo snowflake (10 bits) para los números de lote.
const MaxISSNodeID = 1023

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App        AppConfig
	DB         DBConfig
	JWT        JWTConfig
	Auth       AuthConfig
	HTTP       HTTPConfig
	Focus      FocusConfig
	PlugNotas  PlugNotasConfig
	ISSDigital ISSDigitalConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	Webhook    WebhookConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL    string
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// AuthConfig primer admin, creado al arrancar si la tabla de operadores no tiene ninguno.
type AuthConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminTenant   string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FocusConfig credenciales de Focus NFSe (API Nacional).
type FocusConfig struct {
	Token        string
	Homologation bool
	BaseURL      string // vacío = URL oficial según ambiente
	Timeout      time.Duration
}

// PlugNotasConfig credenciales de PlugNotas.
type PlugNotasConfig struct {
	APIKey  string
	Sandbox bool
	BaseURL string
	Timeout time.Duration
}

// ISSDigitalConfig datos del prestador y certificado para el webservice de São Luís.
type ISSDigitalConfig struct {
	InscricaoMunicipal string
	CNPJ               string
	RazaoSocial        string
	CodCidade          string // código SIAFI del municipio
	CidadeIBGE         string
	TokenEnvio         string
	CertPath           string // .p12/.pfx (vacío = sin firma, solo homologación)
	CertPassword       string
	Homologation       bool
	EndpointURL        string
	Timeout            time.Duration
	NodeID             int // nodo snowflake de los números de lote, único por réplica
}

// StorageConfig almacenamiento de artefactos (MinIO / S3 compatible).
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Timeout   time.Duration // descarga de PDF/XML desde las URLs del proveedor
}

// Enabled indica si hay prestador configurado para ISS Digital.
func (c ISSDigitalConfig) Enabled() bool { return c.InscricaoMunicipal != "" && c.CNPJ != "" }

// Enabled indica si el almacenamiento de objetos está configurado.
func (c StorageConfig) Enabled() bool { return c.Endpoint != "" }

// RedisConfig bloqueo distribuido por referencia.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Enabled indica si hay Redis configurado.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// SchedulerConfig conciliación periódica de notas pendientes.
type SchedulerConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// WebhookConfig secretos compartidos de los webhooks de proveedores.
type WebhookConfig struct {
	FocusSecret     string
	PlugNotasSecret string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, FOCUS_TOKEN, etc.
func Load() (*Config, error) {
	// .env local en desarrollo; en contenedores no existe y se ignora.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "nfse-api"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL:    getString(v, "DATABASE_URL", ""),
			Host:           getString(v, "DB_HOST", "localhost"),
			Port:           getInt(v, "DB_PORT", 5432),
			User:           getString(v, "DB_USER", "postgres"),
			Password:       getString(v, "DB_PASSWORD", ""),
			DBName:         getString(v, "DB_NAME", "nfse"),
			SSLMode:        getString(v, "DB_SSLMODE", "disable"),
			MigrationsPath: getString(v, "DB_MIGRATIONS_PATH", "internal/infrastructure/postgres/migrations"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "nfse-api"),
		},
		Auth: AuthConfig{
			AdminEmail:    getString(v, "ADMIN_EMAIL", ""),
			AdminPassword: getString(v, "ADMIN_PASSWORD", ""),
			AdminTenant:   getString(v, "ADMIN_TENANT_ID", "default"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Focus: FocusConfig{
			Token:        getString(v, "FOCUS_TOKEN", ""),
			Homologation: getBool(v, "FOCUS_HOMOLOGATION", true),
			BaseURL:      getString(v, "FOCUS_BASE_URL", ""),
			Timeout:      ClampTimeout(getDuration(v, "FOCUS_TIMEOUT", 30*time.Second)),
		},
		PlugNotas: PlugNotasConfig{
			APIKey:  getString(v, "PLUGNOTAS_API_KEY", ""),
			Sandbox: getBool(v, "PLUGNOTAS_SANDBOX", true),
			BaseURL: getString(v, "PLUGNOTAS_BASE_URL", ""),
			Timeout: ClampTimeout(getDuration(v, "PLUGNOTAS_TIMEOUT", 30*time.Second)),
		},
		ISSDigital: ISSDigitalConfig{
			InscricaoMunicipal: getString(v, "ISS_INSCRICAO_MUNICIPAL", ""),
			CNPJ:               getString(v, "ISS_CNPJ", ""),
			RazaoSocial:        getString(v, "ISS_RAZAO_SOCIAL", ""),
			CodCidade:          getString(v, "ISS_COD_CIDADE", "0921"),
			CidadeIBGE:         getString(v, "ISS_CIDADE_IBGE", "2111300"),
			TokenEnvio:         getString(v, "ISS_TOKEN_ENVIO", ""),
			CertPath:           getString(v, "ISS_CERT_PATH", ""),
			CertPassword:       getString(v, "ISS_CERT_PASSWORD", ""),
			Homologation:       getBool(v, "ISS_HOMOLOGATION", true),
			EndpointURL:        getString(v, "ISS_ENDPOINT_URL", ""),
			Timeout:            ClampTimeout(getDuration(v, "ISS_TIMEOUT", 60*time.Second)),
			NodeID:             getInt(v, "ISS_NODE_ID", 1),
		},
		Storage: StorageConfig{
			Endpoint:  getString(v, "MINIO_ENDPOINT", ""),
			AccessKey: getString(v, "MINIO_ACCESS_KEY", ""),
			SecretKey: getString(v, "MINIO_SECRET_KEY", ""),
			Bucket:    getString(v, "MINIO_BUCKET", "nfse-artifacts"),
			UseSSL:    getBool(v, "MINIO_USE_SSL", false),
			Timeout:   ClampTimeout(getDuration(v, "ARTIFACT_TIMEOUT", 30*time.Second)),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
			LockTTL:  getDuration(v, "REDIS_LOCK_TTL", 2*time.Minute),
		},
		Scheduler: SchedulerConfig{
			Enabled:   getBool(v, "RECONCILE_ENABLED", true),
			Interval:  getDuration(v, "RECONCILE_INTERVAL", 5*time.Minute),
			BatchSize: getInt(v, "RECONCILE_BATCH_SIZE", 50),
		},
		Webhook: WebhookConfig{
			FocusSecret:     getString(v, "FOCUS_WEBHOOK_SECRET", ""),
			PlugNotasSecret: getString(v, "PLUGNOTAS_WEBHOOK_SECRET", ""),
		},
	}

	if n := cfg.ISSDigital.NodeID; n < 0 || n > MaxISSNodeID {
		return nil, fmt.Errorf("config: ISS_NODE_ID=%d fuera de rango (0-%d)", n, MaxISSNodeID)
	}
	return cfg, nil
}

// ClampTimeout fuerza un timeout positivo y nunca mayor a MaxProviderTimeout.
func ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > MaxProviderTimeout {
		return MaxProviderTimeout
	}
	return d
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}

// getDuration acepta "30s", "2m" o un entero (segundos).
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
