package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Emulator EmulatorConfig
	Passport PassportConfig
	Kernel   KernelConfig
	Output   OutputConfig
	LogFile  string
}

type EmulatorConfig struct {
	Duration   time.Duration
	SampleRate time.Duration
	Jitter     time.Duration
	Seed       int64
	// ShakeEvery каждая n-я выборка акселерометра сильная; 0 отключает встряски
	ShakeEvery int
	// ReplayPath CSV (time_sec, eda) для воспроизведения вместо генератора
	ReplayPath string
}

type PassportConfig struct {
	SessionID string
	AccessKey string
	Subject   string
	Age       string
	Sex       string
	Node      string
}

// KernelConfig константы модели сигнала датчика
type KernelConfig struct {
	BootDuration   time.Duration
	SyncLock       time.Duration
	WindowSize     time.Duration
	AlarmInterval  time.Duration
	TerminalMax    int
	TonicTarget    float64
	KineticLimit   float64
	SpikeDelta     float64
	RecoveryAlpha  float64
	NoiseShake     float64
	NoiseCalm      float64
	ArtifactLevel  float64
	HardCeiling    float64
	BroadcastClamp float64
	Floor          float64
	FloorValue     float64
}

// DefaultKernel параметры мобильного узла
var DefaultKernel = KernelConfig{
	BootDuration:   5 * time.Second,
	SyncLock:       2 * time.Second,
	WindowSize:     5 * time.Second,
	AlarmInterval:  800 * time.Millisecond,
	TerminalMax:    60,
	TonicTarget:    0.845,
	KineticLimit:   2.15,
	SpikeDelta:     4.5,
	RecoveryAlpha:  0.88,
	NoiseShake:     0.35,
	NoiseCalm:      0.0035,
	ArtifactLevel:  2.0,
	HardCeiling:    9.9,
	BroadcastClamp: 9.95,
	Floor:          0.1,
	FloorValue:     0.102,
}

type OutputConfig struct {
	// Mode http | redis
	Mode       string
	UplinkURL  string
	RedisAddr  string
	RedisKey   string
	RecordPath string
	Timeout    time.Duration
}

func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs разбирает флаги; значения по умолчанию берутся из окружения
func LoadArgs(args []string) (*Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("subject", flag.ContinueOnError)

	duration := fs.String("duration", getEnvString("SUBJECT_DURATION", "60s"), "Длительность телеметрии")
	sampleRate := fs.String("rate", getEnvString("SUBJECT_RATE", "16ms"), "Период выборки")
	jitter := fs.String("jitter", getEnvString("SUBJECT_JITTER", "0s"), "Случайное отклонение тиков")
	seed := fs.Int64("seed", getEnvInt64("SUBJECT_SEED", time.Now().UnixNano()), "Seed генератора")
	shakeEvery := fs.Int("shake-every", getEnvInt("SUBJECT_SHAKE_EVERY", 0), "Встряска каждые n выборок")
	replay := fs.String("replay", getEnvString("SUBJECT_REPLAY", ""), "CSV для воспроизведения")

	fs.StringVar(&cfg.Passport.SessionID, "session", getEnvString("SUBJECT_SESSION_ID", "LAB-01"), "Идентификатор сессии")
	fs.StringVar(&cfg.Passport.AccessKey, "key", getEnvString("SUBJECT_ACCESS_KEY", ""), "Код рукопожатия дашборда")
	fs.StringVar(&cfg.Passport.Subject, "subject", getEnvString("SUBJECT_NAME", "GUEST_USER"), "Имя испытуемого")
	fs.StringVar(&cfg.Passport.Age, "age", getEnvString("SUBJECT_AGE", "0"), "Возраст")
	fs.StringVar(&cfg.Passport.Sex, "sex", getEnvString("SUBJECT_SEX", "MALE"), "Пол")
	fs.StringVar(&cfg.Passport.Node, "node", getEnvString("SUBJECT_NODE", "MOBILE-NODE-01"), "Узел датчика")

	fs.StringVar(&cfg.Output.Mode, "mode", getEnvString("SUBJECT_OUTPUT", "http"), "Канал: http | redis")
	fs.StringVar(&cfg.Output.UplinkURL, "uplink", getEnvString("SUBJECT_UPLINK_URL", "http://localhost:8080/telemetry.json"), "Адрес канала")
	fs.StringVar(&cfg.Output.RedisAddr, "redis", getEnvString("REDIS_ADDR", "localhost:6379"), "Адрес Redis")
	fs.StringVar(&cfg.Output.RedisKey, "redis-key", getEnvString("RELAY_KEY", "uplink:telemetry"), "Ключ пакета в Redis")
	fs.StringVar(&cfg.Output.RecordPath, "record", getEnvString("SUBJECT_RECORD", "data/subject.jsonl"), "JSONL запись выборок, пусто отключает")
	fs.StringVar(&cfg.LogFile, "log", getEnvString("LOG_FILE", ""), "Файл журнала")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	dur, err := time.ParseDuration(*duration)
	if err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}
	rate, err := time.ParseDuration(*sampleRate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate: %w", err)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %v", rate)
	}
	jit, err := time.ParseDuration(*jitter)
	if err != nil {
		return nil, fmt.Errorf("invalid jitter: %w", err)
	}

	cfg.Emulator = EmulatorConfig{
		Duration:   dur,
		SampleRate: rate,
		Jitter:     jit,
		Seed:       *seed,
		ShakeEvery: *shakeEvery,
		ReplayPath: *replay,
	}
	cfg.Kernel = DefaultKernel
	cfg.Output.Mode = strings.ToLower(cfg.Output.Mode)
	cfg.Output.Timeout = 2 * time.Second

	switch cfg.Output.Mode {
	case "http", "redis":
	default:
		return nil, fmt.Errorf("unknown output mode %q", cfg.Output.Mode)
	}

	return &cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
