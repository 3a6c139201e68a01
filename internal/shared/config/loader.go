package config

import (
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("save.root", "./data")
	v.SetDefault("save.slot", "_Default")
	v.SetDefault("save.backend", BackendFile)
	v.SetDefault("save.extension", "json")
	v.SetDefault("save.temp_extension", "temp")
	v.SetDefault("save.manifest_name", "_Locations")
	v.SetDefault("save.parallelism", 4)
	v.SetDefault("bolt.path", "./data/save.db")
	v.SetDefault("bolt.timeout", "1s")
	v.SetDefault("sqlite.path", "./data/save.sqlite")
	v.SetDefault("mongodb.database", "savekeeper")
	v.SetDefault("mongodb.collection", "save_objects")
	v.SetDefault("mongodb.connect_timeout", "3s")
	v.SetDefault("mysql.charset", "utf8mb4")
	v.SetDefault("httpserver.host", "127.0.0.1")
	v.SetDefault("httpserver.port", 8420)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 64)
	return v
}

func load(configPath string) (Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}
	return decode(v)
}

// decode 统一走 mapstructure hook（"1s" -> time.Duration），再叠加环境变量。
func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("viper unmarshal config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watcher 持有热加载后的最新配置。
type Watcher struct {
	mu      sync.RWMutex
	current Config
}

// Current 返回最近一次成功解析的配置。
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Watch 读取配置并监听文件变更；变更后解析失败时保留旧配置并通过 onErr 通知。
func Watch(cfgName string, onChange func(Config), onErr func(error)) (*Watcher, error) {
	path, err := Resolve(cfgName)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("watch requires a config file, none found for %q", cfgName)
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	w := &Watcher{current: cfg}
	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(v)
		if err != nil {
			if onErr != nil {
				onErr(fmt.Errorf("reload %s (%s): %w", e.Name, e.Op, err))
			}
			return
		}
		w.mu.Lock()
		w.current = next
		w.mu.Unlock()
		if onChange != nil {
			onChange(next)
		}
	})
	v.WatchConfig()
	return w, nil
}
