package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultConfigRelPath = "configs/conf.yml"

// 后端名称。
const (
	BackendFile    = "file"
	BackendMemory  = "memory"
	BackendBolt    = "bolt"
	BackendSQLite  = "sqlite"
	BackendMongoDB = "mongodb"
	BackendMySQL   = "mysql"
)

// Load 读取配置：
// 1) 传入 cfgName（相对/绝对路径）则优先使用；
// 2) 否则从当前目录开始向上查找 `configs/conf.yml`；
// 3) 都找不到时只使用默认值 + 环境变量（savetool 可以零配置运行）。
func Load(cfgName string) (Config, error) {
	path, err := Resolve(cfgName)
	if err != nil {
		return Config{}, err
	}
	return load(path)
}

// Resolve 返回实际使用的配置文件路径；空串表示没有配置文件。
func Resolve(cfgName string) (string, error) {
	curDir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if cfgName != "" {
		path := cfgName
		if !filepath.IsAbs(path) {
			path = filepath.Join(curDir, cfgName)
		}
		if !fileExist(path) {
			return "", fmt.Errorf("config file not exist, configPath=%v", path)
		}
		return path, nil
	}
	return findConfigUpward(curDir), nil
}

// Validate 检查跨字段约束，在任何存储被打开之前调用。
func (c Config) Validate() error {
	switch c.Save.Backend {
	case BackendFile, BackendMemory, BackendBolt, BackendSQLite, BackendMongoDB, BackendMySQL:
	default:
		return fmt.Errorf("save.backend %q is not supported", c.Save.Backend)
	}
	if c.Save.Backend == BackendFile && strings.TrimSpace(c.Save.Root) == "" {
		return fmt.Errorf("save.root is required for the file backend")
	}
	if c.Save.Backend == BackendMongoDB && c.MongoDB.URI == "" {
		return fmt.Errorf("mongodb.uri is required for the mongodb backend")
	}
	if c.Save.Parallelism <= 0 {
		return fmt.Errorf("save.parallelism must be positive, got %d", c.Save.Parallelism)
	}
	if c.Save.Extension == c.Save.TempExtension {
		return fmt.Errorf("save.extension and save.temp_extension must differ")
	}
	return nil
}

func findConfigUpward(startDir string) string {
	dir := startDir
	for {
		candidate := filepath.Join(dir, defaultConfigRelPath)
		if fileExist(candidate) {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func fileExist(fileName string) bool {
	_, err := os.Stat(fileName)
	return err == nil
}
