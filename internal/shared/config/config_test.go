package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConf(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_读取文件并补默认值(t *testing.T) {
	path := writeConf(t, `
save:
  root: /tmp/saves
  slot: player_1
  backend: bolt
bolt:
  timeout: 250ms
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Save.Root != "/tmp/saves" || cfg.Save.Slot != "player_1" || cfg.Save.Backend != BackendBolt {
		t.Fatalf("unexpected save config: %+v", cfg.Save)
	}
	if cfg.Save.Extension != "json" || cfg.Save.ManifestName != "_Locations" || cfg.Save.Parallelism != 4 {
		t.Fatalf("期望默认值被补齐: %+v", cfg.Save)
	}
	if cfg.Bolt.Timeout != 250*time.Millisecond {
		t.Fatalf("期望 duration 通过 hook 解析, got=%v", cfg.Bolt.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level=%q", cfg.Log.Level)
	}
}

func TestLoad_环境变量覆盖文件(t *testing.T) {
	path := writeConf(t, "save:\n  slot: from_file\n")
	t.Setenv("SAVEKEEPER_SLOT", "from_env")
	t.Setenv("SAVEKEEPER_PARALLELISM", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Save.Slot != "from_env" || cfg.Save.Parallelism != 2 {
		t.Fatalf("期望环境变量优先, got=%+v", cfg.Save)
	}
}

func TestLoad_非法后端被拒绝(t *testing.T) {
	path := writeConf(t, "save:\n  backend: redis\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("期望不支持的 backend 返回错误")
	}
}

func TestLoad_指定文件不存在(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("期望文件不存在时报错")
	}
}
