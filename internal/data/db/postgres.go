package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresName     string
	PostgresSSLMode  string

	// SQLitePath is a file path or ":memory:".
	SQLitePath string

	MaxOpenConns int
	SlowQuery    time.Duration
}

func (c Config) postgresDSN() string {
	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresName,
		sslMode,
	)
}

// SQLiteDSN enables foreign keys so ON DELETE CASCADE is enforced.
func SQLiteDSN(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

func NewService(logg *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := logg.With("service", "DBService", "driver", cfg.Driver)

	slow := cfg.SlowQuery
	if slow <= 0 {
		slow = time.Second
	}
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormCfg := &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	}

	var (
		theDB *gorm.DB
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverPostgres:
		theDB, err = gorm.Open(postgres.Open(cfg.postgresDSN()), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
	case DriverSQLite:
		theDB, err = gorm.Open(sqlite.Open(SQLiteDSN(cfg.SQLitePath)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		// SQLite serializes writers; one connection also keeps :memory: databases shared.
		if cfg.MaxOpenConns <= 0 {
			cfg.MaxOpenConns = 1
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := theDB.DB()
		if err != nil {
			return nil, fmt.Errorf("db handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	serviceLog.Info("Database connected")
	return &Service{db: theDB, driver: cfg.Driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
