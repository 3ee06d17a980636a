package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shelf-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %s, got %s", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != defaultShutdownTimeout {
		t.Errorf("unexpected shutdown timeout %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Firestore.ProjectID != "shelf-dev" {
		t.Errorf("expected firestore project to fall back to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Persistence.Driver != DriverFirestore {
		t.Errorf("expected firestore driver, got %s", cfg.Persistence.Driver)
	}
	if cfg.Events.Driver != EventsNone {
		t.Errorf("expected events disabled by default, got %s", cfg.Events.Driver)
	}
	if len(cfg.Events.KafkaBrokers) != 0 {
		t.Errorf("expected no kafka brokers, got %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Checkout.LockTTL != 30*time.Second {
		t.Errorf("unexpected checkout lock ttl %s", cfg.Checkout.LockTTL)
	}
	if cfg.Catalog.BreakerMaxFailures != 5 || cfg.Catalog.BreakerOpenTimeout != 30*time.Second {
		t.Errorf("unexpected breaker settings %+v", cfg.Catalog)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" || cfg.Idempotency.TTL != 24*time.Hour {
		t.Errorf("unexpected idempotency settings %+v", cfg.Idempotency)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("unexpected metrics settings %+v", cfg.Metrics)
	}
	if cfg.Auth.RoleClaim != "role" || cfg.Auth.VerifyTimeout != 5*time.Second {
		t.Errorf("unexpected auth settings %+v", cfg.Auth)
	}
	if cfg.Firestore.TxAttempts != 5 || cfg.Firestore.TxTimeout != 15*time.Second || cfg.Firestore.DialTimeout != 10*time.Second {
		t.Errorf("unexpected firestore settings %+v", cfg.Firestore)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("expected redis disabled by default, got %s", cfg.Redis.Addr)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                  "9090",
		"API_SERVER_IDLE_TIMEOUT":          "2m",
		"API_ENVIRONMENT":                  "PROD",
		"API_FIREBASE_PROJECT_ID":          "shelf-prod",
		"API_PERSISTENCE_DRIVER":           "Mongo",
		"API_MONGO_URI":                    "secret://mongo/uri",
		"API_MONGO_DATABASE":               "market",
		"API_REDIS_ADDR":                   "redis:6379",
		"API_REDIS_PASSWORD":               "secret://redis/password",
		"API_REDIS_DB":                     "2",
		"API_EVENTS_DRIVER":                "kafka",
		"API_EVENTS_TOPIC":                 "orders",
		"API_EVENTS_KAFKA_BROKERS":         "k1:9092, k2:9092 ,",
		"API_CHECKOUT_LOCK_TTL":            "45s",
		"API_CATALOG_BREAKER_MAX_FAILURES": "3",
		"API_IDEMPOTENCY_HEADER":           "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":              "48h",
		"API_METRICS_ENABLED":              "off",
		"API_AUTH_ROLE_CLAIM":              "market_role",
		"API_FIRESTORE_TX_ATTEMPTS":        "8",
	}

	secrets := map[string]string{
		"secret://mongo/uri":      "mongodb://db:27017",
		"secret://redis/password": "hunter2",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Server.Environment != "prod" {
		t.Errorf("expected lower-cased environment, got %s", cfg.Server.Environment)
	}
	if cfg.Persistence.Driver != DriverMongo {
		t.Errorf("expected mongo driver, got %s", cfg.Persistence.Driver)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("expected resolved mongo uri, got %s", cfg.Mongo.URI)
	}
	if cfg.Mongo.Database != "market" {
		t.Errorf("unexpected mongo database %s", cfg.Mongo.Database)
	}
	if cfg.Redis.Password != "hunter2" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis settings %+v", cfg.Redis)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected kafka brokers %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Events.Topic != "orders" {
		t.Errorf("unexpected events topic %s", cfg.Events.Topic)
	}
	if cfg.Checkout.LockTTL != 45*time.Second {
		t.Errorf("unexpected lock ttl %s", cfg.Checkout.LockTTL)
	}
	if cfg.Catalog.BreakerMaxFailures != 3 {
		t.Errorf("unexpected breaker failures %d", cfg.Catalog.BreakerMaxFailures)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" {
		t.Errorf("unexpected idempotency header %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency ttl %s", cfg.Idempotency.TTL)
	}
	if cfg.Metrics.Enabled {
		t.Errorf("expected metrics disabled")
	}
	if cfg.Firestore.TxAttempts != 8 {
		t.Errorf("unexpected firestore tx attempts %d", cfg.Firestore.TxAttempts)
	}
	if cfg.Auth.RoleClaim != "market_role" {
		t.Errorf("unexpected role claim %s", cfg.Auth.RoleClaim)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local overrides\nAPI_SERVER_PORT=7070\nexport API_FIREBASE_PROJECT_ID=\"shelf-dot\"\nAPI_PERSISTENCE_DRIVER=memory\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "shelf-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Persistence.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %s", cfg.Persistence.Driver)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadDriverDependentValidation(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{
			name:  "mongo without uri",
			env:   map[string]string{"API_PERSISTENCE_DRIVER": "mongo"},
			field: "Mongo.URI",
		},
		{
			name:  "unknown persistence driver",
			env:   map[string]string{"API_PERSISTENCE_DRIVER": "sqlite"},
			field: "Persistence.Driver",
		},
		{
			name:  "kafka without brokers",
			env:   map[string]string{"API_EVENTS_DRIVER": "kafka"},
			field: "Events.KafkaBrokers",
		},
		{
			name:  "unknown events driver",
			env:   map[string]string{"API_EVENTS_DRIVER": "sns"},
			field: "Events.Driver",
		},
		{
			name:  "non positive lock ttl",
			env:   map[string]string{"API_CHECKOUT_LOCK_TTL": "-1s"},
			field: "Checkout.LockTTL",
		},
		{
			name:  "relative metrics path",
			env:   map[string]string{"API_METRICS_PATH": "metrics"},
			field: "Metrics.Path",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := map[string]string{"API_FIREBASE_PROJECT_ID": "shelf-dev"}
			for k, v := range tc.env {
				env[k] = v
			}
			_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, field := range validation.Fields() {
				if field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field %s in %v", tc.field, validation.Fields())
			}
		})
	}
}

func TestLoadMemoryDriverSkipsStoreSettings(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shelf-dev",
		"API_PERSISTENCE_DRIVER":  "memory",
		"API_MONGO_DATABASE":      "",
	}
	if _, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile("")); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shelf-dev",
		"API_REDIS_PASSWORD":      "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Errorf("expected resolver not configured cause, got %v", secretErr.Err)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
		"API_SECRET_VERSION_PINS": "secret://mongo/uri=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["API_SECRET_VERSION_PINS"]; got != "secret://mongo/uri=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shelf-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Redis.Password", "Redis.Password"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Redis.Password")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shelf-dev",
	}

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Redis.Password" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Redis.Password"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shelf-dev",
		"API_PERSISTENCE_DRIVER":  "mongo",
		"API_MONGO_URI":           "sm://mongo/uri",
	}

	secrets := map[string]string{
		"secret://mongo/uri": "mongodb://legacy:27017",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Mongo.URI != "mongodb://legacy:27017" {
		t.Fatalf("expected legacy secret, got %s", cfg.Mongo.URI)
	}
}
