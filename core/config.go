package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName                   string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		WorkDir                   string
		RollbarToken              string
		SendgridAPIKey            string
		DefaultFromEmailAddr      string
		PasswordResetTimeoutDelta time.Duration
		Currency                  string

		Server    ServerConfig
		Database  DatabaseConfig
		Storage   StorageConfig
		Assistant AssistantConfig
		Cache     CacheConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimitPerMinute        int
		RateLimitBurst            int
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver                  string // postgres | memory
		FirebaseProjectID       string
		FirebaseCredentialsFile string
		EvidenceBucket          string
	}

	AssistantConfig struct {
		Provider        string // gemini | openai | echo
		APIKey          string
		Model           string
		Temperature     float32
		MaxOutputTokens int
		Timeout         time.Duration
	}

	CacheConfig struct {
		MarksheetTTL    time.Duration
		CleanupInterval time.Duration
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmailAddr}
}

// NewConfig loads the configuration of the current ENV.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "TeachHub")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "x9@q!c4=lm$2r(teachhub)v#7^ns0k+f8zj*e1b&yw3g%u6h")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("currency", "KES")

	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverAddress", ":8000")
	conf.SetDefault("serverDebugHost", "localhost:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("rateLimitPerMinute", 20)
	conf.SetDefault("rateLimitBurst", 5)

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbName", "teachhub")
	conf.SetDefault("dbUser", "teachhub")
	conf.SetDefault("dbPassword", "teachhub")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "postgres")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("storageDriver", "postgres")
	conf.SetDefault("evidenceBucket", "")

	conf.SetDefault("assistantProvider", "echo")
	conf.SetDefault("assistantModel", "gemini-2.0-flash")
	conf.SetDefault("assistantTemperature", 0.4)
	conf.SetDefault("assistantMaxOutputTokens", 4096)
	conf.SetDefault("assistantTimeout", 60*time.Second)

	conf.SetDefault("marksheetCacheTTL", 10*time.Minute)
	conf.SetDefault("cacheCleanupInterval", 30*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:                   conf.GetString("appName"),
		Env:                       env,
		Build:                     conf.GetString("build"),
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("testMode"),
		SecretKey:                 conf.GetString("secretKey"),
		FrontendBaseURL:           conf.GetString("frontendBaseURL"),
		WorkDir:                   workDir,
		RollbarToken:              conf.GetString("rollbarToken"),
		SendgridAPIKey:            conf.GetString("sendgridApiKey"),
		DefaultFromEmailAddr:      conf.GetString("defaultFromEmail"),
		PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
		Currency:                  conf.GetString("currency"),
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			Address:                   conf.GetString("serverAddress"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			ShutdownTimeout:           conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
			RateLimitPerMinute:        conf.GetInt("rateLimitPerMinute"),
			RateLimitBurst:            conf.GetInt("rateLimitBurst"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Storage: StorageConfig{
			Driver:                  conf.GetString("storageDriver"),
			FirebaseProjectID:       conf.GetString("firebaseProjectId"),
			FirebaseCredentialsFile: conf.GetString("firebaseCredentialsFile"),
			EvidenceBucket:          conf.GetString("evidenceBucket"),
		},
		Assistant: AssistantConfig{
			Provider:        conf.GetString("assistantProvider"),
			APIKey:          conf.GetString("assistantApiKey"),
			Model:           conf.GetString("assistantModel"),
			Temperature:     float32(conf.GetFloat64("assistantTemperature")),
			MaxOutputTokens: conf.GetInt("assistantMaxOutputTokens"),
			Timeout:         conf.GetDuration("assistantTimeout"),
		},
		Cache: CacheConfig{
			MarksheetTTL:    conf.GetDuration("marksheetCacheTTL"),
			CleanupInterval: conf.GetDuration("cacheCleanupInterval"),
		},
	}
}

// NewTestConfig returns a configuration suitable for tests; nothing is read from the environment.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "TeachHub",
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		WorkDir:                   Getwd(),
		DefaultFromEmailAddr:      "noreply@localhost",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Currency:                  "KES",
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			RateLimitPerMinute:        600,
			RateLimitBurst:            100,
		},
		Storage:   StorageConfig{Driver: "memory"},
		Assistant: AssistantConfig{Provider: "echo", Model: "echo", Timeout: 5 * time.Second},
		Cache:     CacheConfig{MarksheetTTL: time.Minute, CleanupInterval: time.Minute},
	}
}
