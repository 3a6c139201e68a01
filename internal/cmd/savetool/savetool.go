// Package savetool 实现 savetool 命令：查看存档槽、提交/丢弃临时层、启动管理接口。
package savetool

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"SaveKeeper/internal/save/bootstrap"
	savehttp "SaveKeeper/internal/save/interfaces/http"
	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/service"
	"SaveKeeper/internal/shared/config"
	"SaveKeeper/internal/shared/logs"
	transporthttp "SaveKeeper/internal/shared/transport/http"
)

const (
	cmdSlots      = "slots"
	cmdBuckets    = "buckets"
	cmdShow       = "show"
	cmdDeleteSlot = "delete-slot"
	cmdCommit     = "commit"
	cmdFlush      = "flush"
	cmdServe      = "serve"
)

var commands = []string{cmdSlots, cmdBuckets, cmdShow, cmdDeleteSlot, cmdCommit, cmdFlush, cmdServe}

// Config 是一次 savetool 调用的参数。
type Config struct {
	ConfigPath string
	Slot       string
	Temp       bool
	Addr       string
	ReadOnly   bool
	Command    string
	Args       []string
}

// EnvLookup 按 key 查环境变量，不存在时第二个返回值为 false。
type EnvLookup func(string) (string, bool)

// ParseConfig 解析命令行；-config 缺省时取 SAVEKEEPER_CONFIG。
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.ConfigPath, "config", envOrDefault(lookup, "SAVEKEEPER_CONFIG", ""), "config file (default: search configs/conf.yml upward)")
	fs.StringVar(&cfg.Slot, "slot", "", "save slot (default: save.slot from config)")
	fs.BoolVar(&cfg.Temp, "temp", false, "operate on the temporary layer")
	fs.StringVar(&cfg.Addr, "addr", "", "listen address for serve (default: httpserver host:port)")
	fs.BoolVar(&cfg.ReadOnly, "readonly", false, "serve without mutating routes")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, fmt.Errorf("missing command (one of: %s)", strings.Join(commands, ", "))
	}
	cfg.Command, cfg.Args = rest[0], rest[1:]
	if !validCommand(cfg.Command) {
		return Config{}, fmt.Errorf("unknown command %q (one of: %s)", cfg.Command, strings.Join(commands, ", "))
	}
	if cfg.Command == cmdShow && len(cfg.Args) != 1 {
		return Config{}, errors.New("usage: show <bucket>")
	}
	return cfg, nil
}

// Run 执行一条命令，结果写到 out。
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	appCfg, err := loadConfig(cfg)
	if err != nil {
		return err
	}
	if err := logs.Init("savetool", appCfg.Log); err != nil {
		return err
	}
	defer func() { _ = logs.Sync() }()

	m, closeBackend, err := bootstrap.NewManager(ctx, appCfg, logs.Logger())
	if err != nil {
		return err
	}
	defer func() { _ = closeBackend() }()
	if cfg.Slot != "" {
		if err := m.SetSlot(cfg.Slot); err != nil {
			return err
		}
	}

	layer := partition.Permanent
	if cfg.Temp {
		layer = partition.Temporary
	}

	switch cfg.Command {
	case cmdSlots:
		slots, err := m.Slots(ctx)
		if err != nil {
			return err
		}
		for _, s := range slots {
			fmt.Fprintln(out, s)
		}
		return nil
	case cmdBuckets:
		return listBuckets(ctx, m, layer, out)
	case cmdShow:
		return showBucket(ctx, m, cfg.Args[0], layer, out)
	case cmdDeleteSlot:
		if err := m.DeleteSlot(ctx, m.Slot()); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted slot %s\n", m.Slot())
		return nil
	case cmdCommit:
		r, err := m.Commit(ctx)
		printReport(out, r)
		return err
	case cmdFlush:
		r, err := m.Flush(ctx)
		printReport(out, r)
		return err
	case cmdServe:
		return serve(ctx, cfg, appCfg, m)
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}

// loadConfig 对 serve 开启热加载：配置变更后调整日志级别。
func loadConfig(cfg Config) (config.Config, error) {
	if cfg.Command != cmdServe {
		return config.Load(cfg.ConfigPath)
	}
	path, err := config.Resolve(cfg.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if path == "" {
		return config.Load("")
	}
	w, err := config.Watch(path, func(next config.Config) {
		logs.SetLevel(next.Log.Level)
		logs.Info("config reloaded", zap.String("log_level", next.Log.Level))
	}, func(err error) {
		logs.Warn("config reload rejected, keeping previous", zap.Error(err))
	})
	if err != nil {
		return config.Config{}, err
	}
	return w.Current(), nil
}

func listBuckets(ctx context.Context, m *service.Manager, layer partition.Persistency, out io.Writer) error {
	archive := m.Archive()
	manifest, _, err := archive.ReadManifest(ctx, m.Slot(), layer)
	if err != nil {
		return err
	}
	objs, err := archive.Objects(ctx, m.Slot())
	if err != nil {
		return err
	}
	stored := partition.NewManifest()
	for _, o := range objs {
		if !o.Manifest && o.Layer() == layer {
			stored.Add(o.Bucket)
		}
	}
	for _, b := range manifest.Union(stored).Names() {
		state := "ok"
		switch {
		case !stored.Contains(b):
			state = "missing"
		case !manifest.Contains(b):
			state = "unlisted"
		}
		fmt.Fprintf(out, "%s\t%s\n", b, state)
	}
	return nil
}

func showBucket(ctx context.Context, m *service.Manager, bucket string, layer partition.Persistency, out io.Writer) error {
	raw, err := m.Archive().ReadRaw(ctx, m.Slot(), bucket, layer)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// 损坏的文件原样输出，方便排查。
		_, werr := out.Write(raw)
		return errors.Join(fmt.Errorf("bucket %s is not valid JSON: %w", bucket, err), werr)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(out)
	return err
}

func printReport(out io.Writer, r service.Report) {
	if r.NoOp {
		fmt.Fprintf(out, "%s: nothing to do (slot %s)\n", r.Action, r.Slot)
		return
	}
	fmt.Fprintf(out, "%s: slot %s, pass %s, %s\n", r.Action, r.Slot, r.PassID, r.Elapsed.Round(time.Millisecond))
	for _, b := range r.Buckets {
		if b.Err != nil {
			fmt.Fprintf(out, "  %s\t%s\t%v\n", b.Bucket, b.Status, b.Err)
			continue
		}
		fmt.Fprintf(out, "  %s\t%s\n", b.Bucket, b.Status)
	}
}

func serve(ctx context.Context, cfg Config, appCfg config.Config, m *service.Manager) error {
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", appCfg.HTTPServer.Host, appCfg.HTTPServer.Port)
	}
	srv := transporthttp.NewHttpServer(addr, nil, logs.Logger())
	srv.Register(savehttp.NewHandler(m, cfg.ReadOnly))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server start failed: %w", err)
			return
		}
		errCh <- nil
	}()
	logs.Info("admin server listening", zap.String("addr", addr), zap.Bool("readonly", cfg.ReadOnly))

	select {
	case <-ctx.Done():
		logs.Info("收到退出信号，准备优雅退出")
	case err := <-errCh:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func validCommand(name string) bool {
	for _, c := range commands {
		if c == name {
			return true
		}
	}
	return false
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
