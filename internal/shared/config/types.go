package config

import "time"

// Config 是 savetool / 嵌入方共用的配置根。
type Config struct {
	Save       SaveConfig       `yaml:"save" mapstructure:"save"`
	Bolt       BoltConfig       `yaml:"bolt" mapstructure:"bolt"`
	SQLite     SQLiteConfig     `yaml:"sqlite" mapstructure:"sqlite"`
	MongoDB    MongoDBConfig    `yaml:"mongodb" mapstructure:"mongodb"`
	MySQL      MySQLConfig      `yaml:"mysql" mapstructure:"mysql"`
	HTTPServer HTTPServerConfig `yaml:"httpserver" mapstructure:"httpserver"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

type SaveConfig struct {
	Root          string   `yaml:"root" mapstructure:"root" env:"SAVEKEEPER_ROOT"`
	Slot          string   `yaml:"slot" mapstructure:"slot" env:"SAVEKEEPER_SLOT"`
	Backend       string   `yaml:"backend" mapstructure:"backend" env:"SAVEKEEPER_BACKEND"` // file/memory/bolt/sqlite/mongodb/mysql
	Extension     string   `yaml:"extension" mapstructure:"extension"`
	TempExtension string   `yaml:"temp_extension" mapstructure:"temp_extension"`
	ManifestName  string   `yaml:"manifest_name" mapstructure:"manifest_name"`
	Parallelism   int      `yaml:"parallelism" mapstructure:"parallelism" env:"SAVEKEEPER_PARALLELISM"`
}

type BoltConfig struct {
	Path    string        `yaml:"path" mapstructure:"path" env:"SAVEKEEPER_BOLT_PATH"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path" env:"SAVEKEEPER_SQLITE_PATH"`
}

type MongoDBConfig struct {
	URI            string        `yaml:"uri" mapstructure:"uri" env:"SAVEKEEPER_MONGODB_URI"`
	Database       string        `yaml:"database" mapstructure:"database"`
	Collection     string        `yaml:"collection" mapstructure:"collection"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

type MySQLConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password" env:"SAVEKEEPER_MYSQL_PASSWORD"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	Charset  string `yaml:"charset" mapstructure:"charset"`
	MaxIdle  int    `yaml:"max_idle" mapstructure:"max_idle"`
	MaxConn  int    `yaml:"max_conn" mapstructure:"max_conn"`
	ShowSQL  bool   `yaml:"show_sql" mapstructure:"show_sql"`
}

type HTTPServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port" env:"SAVEKEEPER_HTTP_PORT"`
}

type LogConfig struct {
	FileDir    string `yaml:"file_dir" mapstructure:"file_dir"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"` // days
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
	Level      string `yaml:"level" mapstructure:"level" env:"SAVEKEEPER_LOG_LEVEL"` // debug/info/warn/error...
	Dev        bool   `yaml:"dev" mapstructure:"dev"`
}
