package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "POSTGRES_DSN", "MONGO_URI", "APP_PORT", "REDIS_DB", "MAX_IMAGE_MB"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != StoreDriverMemory {
		t.Fatalf("expected memory driver, got %q", cfg.Store.Driver)
	}
	if cfg.App.Addr() != "0.0.0.0:8000" {
		t.Fatalf("unexpected addr %q", cfg.App.Addr())
	}
	if cfg.ObjectStore.MaxImageBytes() != 5<<20 {
		t.Fatalf("unexpected image limit %d", cfg.ObjectStore.MaxImageBytes())
	}
}

func TestLoadInfersDriverFromDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != StoreDriverMongo {
		t.Fatalf("expected mongo driver, got %q", cfg.Store.Driver)
	}
}

func TestLoadRejectsDriverWithoutDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for postgres driver without DSN")
	}
	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("REDIS_DB", "zero")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid REDIS_DB")
	}
}

func TestObjectStoreEnabled(t *testing.T) {
	o := ObjectStoreConfig{Endpoint: "localhost:9000", AccessKey: "k"}
	if o.Enabled() {
		t.Fatalf("expected disabled without secret")
	}
	o.SecretKey = "s"
	if !o.Enabled() {
		t.Fatalf("expected enabled")
	}
}
