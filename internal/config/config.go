package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
	Progress  ProgressConfig  `mapstructure:"progress"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool   `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool   `mapstructure:"-"` // 仅迁移模式（迁移后退出）
	ConfigFile   string `mapstructure:"-"` // 实际读取的配置文件路径
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port        string
	Mode        string
	WatchConfig bool `mapstructure:"watch_config"`
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	Charset    string
	ParseTime  bool   `mapstructure:"parse_time"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ProgressConfig 学习进度引擎的可调参数（支持热更新）
type ProgressConfig struct {
	DefaultTimezone string            `mapstructure:"default_timezone"`
	DueReviewLimit  int               `mapstructure:"due_review_limit"`
	Scheduler       SchedulerConfig   `mapstructure:"scheduler"`
	Streak          StreakConfig      `mapstructure:"streak"`
	Proficiency     ProficiencyConfig `mapstructure:"proficiency"`
	XP              XPConfig          `mapstructure:"xp"`
}

type SchedulerConfig struct {
	JitterRatio     float64 `mapstructure:"jitter_ratio"`
	MaxIntervalDays int     `mapstructure:"max_interval_days"`
}

type StreakConfig struct {
	Milestones       []int `mapstructure:"milestones"`
	FreezeGrantEvery int   `mapstructure:"freeze_grant_every"`
	MaxFreezes       int   `mapstructure:"max_freezes"`
}

type TierConfig struct {
	MinAverage           float64  `mapstructure:"min_average"`
	MinExercisesPerSkill int      `mapstructure:"min_exercises_per_skill"`
	MinFloorPerSkill     float64  `mapstructure:"min_floor_per_skill"`
	RequiredSkills       []string `mapstructure:"required_skills"`
}

type ProficiencyConfig struct {
	Alpha        float64               `mapstructure:"alpha"`
	SkillWeights map[string]float64    `mapstructure:"skill_weights"`
	Tiers        map[string]TierConfig `mapstructure:"tiers"`
}

type XPConfig struct {
	ExerciseCorrect      int     `mapstructure:"exercise_correct"`
	ExerciseIncorrect    int     `mapstructure:"exercise_incorrect"`
	HighScoreBonus       int     `mapstructure:"high_score_bonus"`
	HighScoreThreshold   float64 `mapstructure:"high_score_threshold"`
	LessonCompleted      int     `mapstructure:"lesson_completed"`
	StreakMilestoneBonus int     `mapstructure:"streak_milestone_bonus"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.sqlite_path", "data/progress.db")
	v.SetDefault("redis.cache_ttl", 10*time.Minute)
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("progress.default_timezone", "UTC")
	v.SetDefault("progress.due_review_limit", 20)
	v.SetDefault("progress.scheduler.jitter_ratio", 0.1)
	v.SetDefault("progress.scheduler.max_interval_days", 365)
	v.SetDefault("progress.streak.milestones", []int{7, 30, 100, 365, 1000})
	v.SetDefault("progress.streak.freeze_grant_every", 30)
	v.SetDefault("progress.streak.max_freezes", 0)
	v.SetDefault("progress.proficiency.alpha", 0.3)
	v.SetDefault("progress.xp.exercise_correct", 10)
	v.SetDefault("progress.xp.exercise_incorrect", 2)
	v.SetDefault("progress.xp.high_score_bonus", 5)
	v.SetDefault("progress.xp.high_score_threshold", 90)
	v.SetDefault("progress.xp.lesson_completed", 20)
	v.SetDefault("progress.xp.streak_milestone_bonus", 50)
}

func LoadConfig(path string) (*Config, error) {
	// .env 只用于本地开发，缺失不报错
	_ = godotenv.Load(filepath.Join(path, "..", ".env"))

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LINGUA")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}
