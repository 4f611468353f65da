package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // часовой пояс бизнеса должен загружаться и в контейнере без zoneinfo

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/m04kA/AppointmentService/internal/domain"
	"github.com/m04kA/AppointmentService/pkg/types"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config конфигурация сервиса
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	Logs          LogsConfig          `toml:"logs"`
	Metrics       MetricsConfig       `toml:"metrics"`
	Business      BusinessConfig      `toml:"business"`
	Scheduler     SchedulerConfig     `toml:"scheduler"`
	Notifications NotificationsConfig `toml:"notifications"`
	Catalog       CatalogConfig       `toml:"catalog"`
	Redis         RedisConfig         `toml:"redis"`
	Admin         AdminConfig         `toml:"admin"`
}

type ServerConfig struct {
	HTTPPort        int `toml:"http_port"`
	ReadTimeout     int `toml:"read_timeout"`
	WriteTimeout    int `toml:"write_timeout"`
	IdleTimeout     int `toml:"idle_timeout"`
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	DBName          string `toml:"dbname"`
	SSLMode         string `toml:"sslmode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime"`
	AutoMigrate     bool   `toml:"auto_migrate"`
}

// DSN строка подключения для lib/pq (key=value, значения в кавычках)
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(c.Host), c.Port, quoteDSNValue(c.User), quoteDSNValue(c.Password),
		quoteDSNValue(c.DBName), quoteDSNValue(c.SSLMode))
}

var dsnValueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteDSNValue(v string) string {
	return "'" + dsnValueEscaper.Replace(v) + "'"
}

type LogsConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	ServiceName string `toml:"service_name"`
}

// BusinessConfig рабочий календарь: часы работы, шаг слотов, выходные
type BusinessConfig struct {
	Timezone    string   `toml:"timezone"`
	OpenTime    string   `toml:"open_time"`
	CloseTime   string   `toml:"close_time"`
	StepMinutes int      `toml:"step_minutes"`
	ClosedDays  []string `toml:"closed_days"`
}

// Location часовой пояс бизнеса (после Validate ошибок не бывает)
func (c BusinessConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ClosedWeekdays выходные дни в виде time.Weekday
func (c BusinessConfig) ClosedWeekdays() []time.Weekday {
	days := make([]time.Weekday, 0, len(c.ClosedDays))
	for _, d := range c.ClosedDays {
		if wd, ok := parseWeekday(d); ok {
			days = append(days, wd)
		}
	}
	return days
}

// BusinessHours рабочий календарь для расчёта слотов (после Validate ошибок не бывает)
func (c BusinessConfig) BusinessHours() domain.BusinessHours {
	return domain.BusinessHours{
		Open:        types.MustTimeString(c.OpenTime),
		Close:       types.MustTimeString(c.CloseTime),
		StepMinutes: c.StepMinutes,
		ClosedDays:  c.ClosedWeekdays(),
		Location:    c.Location(),
	}
}

type SchedulerConfig struct {
	Enabled            bool   `toml:"enabled"`
	ReminderAt         string `toml:"reminder_at"`
	FollowUpAt         string `toml:"follow_up_at"`
	DailySummaryAt     string `toml:"daily_summary_at"`
	NoShowIntervalMin  int    `toml:"no_show_interval_minutes"`
	NoShowGraceMinutes int    `toml:"no_show_grace_minutes"`
	LockTTLSeconds     int    `toml:"lock_ttl_seconds"`
}

type NotificationsConfig struct {
	// Provider: "sendgrid", "ses" или "stub"
	Provider       string `toml:"provider"`
	FromEmail      string `toml:"from_email"`
	FromName       string `toml:"from_name"`
	AdminEmail     string `toml:"admin_email"`
	SendGridAPIKey string `toml:"sendgrid_api_key"`
	SESRegion      string `toml:"ses_region"`
	Workers        int    `toml:"workers"`
	QueueSize      int    `toml:"queue_size"`
	SendTimeout    int    `toml:"send_timeout"`
}

type CatalogConfig struct {
	URL     string `toml:"url"`
	Timeout int    `toml:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// AdminConfig доступ к административным маршрутам.
// С пустым JWTSecret администратор определяется по заголовку X-Admin-ID
type AdminConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// Load читает TOML файл, накладывает секреты из окружения (.env подхватывается, если есть)
// и проверяет результат
func Load(path string) (*Config, error) {
	// .env опционален
	_ = godotenv.Load()

	cfg := defaults()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     15,
			WriteTimeout:    15,
			IdleTimeout:     60,
			ShutdownTimeout: 30,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logs:    LogsConfig{Level: "info"},
		Metrics: MetricsConfig{Path: "/metrics", ServiceName: "appointment-service"},
		Business: BusinessConfig{
			Timezone:    "Europe/Bucharest",
			OpenTime:    "09:00",
			CloseTime:   "18:00",
			StepMinutes: 30,
			ClosedDays:  []string{"saturday", "sunday"},
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			ReminderAt:         "10:00",
			FollowUpAt:         "11:00",
			DailySummaryAt:     "08:00",
			NoShowIntervalMin:  60,
			NoShowGraceMinutes: 120,
			LockTTLSeconds:     300,
		},
		Notifications: NotificationsConfig{
			Provider:    "stub",
			Workers:     2,
			QueueSize:   100,
			SendTimeout: 10,
		},
		Catalog: CatalogConfig{Timeout: 5},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		c.Notifications.SendGridAPIKey = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}
}

// Validate проверяет значения, без которых сервис не может работать корректно
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("%w: business.timezone %q: %v", ErrInvalidConfig, c.Business.Timezone, err)
	}

	open, err := types.NewTimeStringFromString(c.Business.OpenTime)
	if err != nil {
		return fmt.Errorf("%w: business.open_time %q", ErrInvalidConfig, c.Business.OpenTime)
	}
	closing, err := types.NewTimeStringFromString(c.Business.CloseTime)
	if err != nil {
		return fmt.Errorf("%w: business.close_time %q", ErrInvalidConfig, c.Business.CloseTime)
	}
	if !open.IsBefore(closing) {
		return fmt.Errorf("%w: business.open_time must be before close_time", ErrInvalidConfig)
	}
	if c.Business.StepMinutes <= 0 {
		return fmt.Errorf("%w: business.step_minutes must be positive", ErrInvalidConfig)
	}
	for _, d := range c.Business.ClosedDays {
		if _, ok := parseWeekday(d); !ok {
			return fmt.Errorf("%w: business.closed_days: unknown weekday %q", ErrInvalidConfig, d)
		}
	}

	if c.Scheduler.Enabled {
		for name, v := range map[string]string{
			"reminder_at":      c.Scheduler.ReminderAt,
			"follow_up_at":     c.Scheduler.FollowUpAt,
			"daily_summary_at": c.Scheduler.DailySummaryAt,
		} {
			if err := types.TimeString(v).Validate(); err != nil {
				return fmt.Errorf("%w: scheduler.%s %q", ErrInvalidConfig, name, v)
			}
		}
		if c.Scheduler.NoShowIntervalMin <= 0 || c.Scheduler.NoShowGraceMinutes < 0 {
			return fmt.Errorf("%w: scheduler no-show interval/grace", ErrInvalidConfig)
		}
	}

	switch c.Notifications.Provider {
	case "sendgrid":
		if c.Notifications.SendGridAPIKey == "" {
			return fmt.Errorf("%w: notifications.sendgrid_api_key is required for sendgrid", ErrInvalidConfig)
		}
	case "ses":
		if c.Notifications.SESRegion == "" {
			return fmt.Errorf("%w: notifications.ses_region is required for ses", ErrInvalidConfig)
		}
	case "stub":
	default:
		return fmt.Errorf("%w: unknown notifications.provider %q", ErrInvalidConfig, c.Notifications.Provider)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required when redis is enabled", ErrInvalidConfig)
	}

	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return wd, ok
}
