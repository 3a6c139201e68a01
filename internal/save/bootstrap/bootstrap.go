// Package bootstrap 按配置装配存储后端与 service.Manager。
package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"SaveKeeper/internal/save/infra/persistence/boltdb"
	"SaveKeeper/internal/save/infra/persistence/file"
	"SaveKeeper/internal/save/infra/persistence/memory"
	"SaveKeeper/internal/save/infra/persistence/mongodb"
	"SaveKeeper/internal/save/infra/persistence/mysql"
	"SaveKeeper/internal/save/infra/persistence/sqlite"
	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/port"
	"SaveKeeper/internal/save/saveerr"
	"SaveKeeper/internal/save/service"
	"SaveKeeper/internal/shared/config"
	"SaveKeeper/internal/shared/infrastructure/db"
	"SaveKeeper/internal/shared/infrastructure/mongo"
	"SaveKeeper/modules/kit/logx"
)

// Layout 从配置构造文件布局。
func Layout(cfg config.SaveConfig) (partition.Layout, error) {
	l := partition.Layout{
		Extension:     cfg.Extension,
		TempExtension: cfg.TempExtension,
		ManifestName:  cfg.ManifestName,
	}
	if l == (partition.Layout{}) {
		l = partition.DefaultLayout()
	}
	if err := l.Validate(); err != nil {
		return partition.Layout{}, err
	}
	return l, nil
}

// OpenBackend 打开 cfg.Save.Backend 指定的存储后端，调用方负责 Close。
func OpenBackend(ctx context.Context, cfg config.Config, l logx.Logger) (port.Backend, error) {
	if l == nil {
		l = logx.Nop()
	}
	var (
		b   port.Backend
		err error
	)
	switch cfg.Save.Backend {
	case config.BackendFile, "":
		b, err = file.New(cfg.Save.Root)
	case config.BackendMemory:
		b = memory.New()
	case config.BackendBolt:
		b, err = boltdb.Open(cfg.Bolt.Path, cfg.Bolt.Timeout)
	case config.BackendSQLite:
		b, err = sqlite.Open(cfg.SQLite.Path)
	case config.BackendMongoDB:
		client, cerr := mongo.Open(ctx, cfg.MongoDB, l)
		if cerr != nil {
			return nil, cerr
		}
		b = mongodb.New(client, cfg.MongoDB.Database, cfg.MongoDB.Collection)
	case config.BackendMySQL:
		gdb, oerr := db.Open(cfg.MySQL, l)
		if oerr != nil {
			return nil, oerr
		}
		b, err = mysql.New(gdb)
	default:
		return nil, saveerr.Config(saveerr.ReasonBackendUnknown, "unknown backend "+cfg.Save.Backend).
			WithData("backend", cfg.Save.Backend)
	}
	if err != nil {
		return nil, err
	}
	l.WithContext(ctx).Info("save backend opened", zap.String("backend", cfg.Save.Backend))
	return b, nil
}

// NewManager 打开后端并构造 Manager；返回的 closer 关闭后端。
func NewManager(ctx context.Context, cfg config.Config, l logx.Logger, mutate ...func(*service.Options)) (*service.Manager, func() error, error) {
	layout, err := Layout(cfg.Save)
	if err != nil {
		return nil, nil, err
	}
	backend, err := OpenBackend(ctx, cfg, l)
	if err != nil {
		return nil, nil, err
	}
	opts := service.Options{
		Backend:     backend,
		Layout:      layout,
		Slot:        cfg.Save.Slot,
		Parallelism: cfg.Save.Parallelism,
		Logger:      l,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	m, err := service.New(opts)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	return m, backend.Close, nil
}
