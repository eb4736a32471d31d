package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	GradingConfig struct {
		Backend           string // openai | http | disabled
		OpenAIBaseURL     string
		OpenAIKey         string
		OpenAIModel       string
		OpenAITemperature float64
		OpenAIMaxTokens   int
		EndpointURL       string
		Timeout           time.Duration
		StaleAfter        time.Duration
		SweepInterval     time.Duration
	}

	Config struct {
		Env      string
		Build    string
		Debug    bool
		TestMode bool
		AppName  string
		WorkDir  string

		// SecretKey verifies the identity provider's HS256 tokens.
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string

		DefaultFromEmail string
		SendgridApiKey   string

		// CatalogFile is an optional YAML catalog imported at startup.
		CatalogFile string

		Server   ServerConfig
		Database DatabaseConfig
		Grading  GradingConfig
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) DefaultFrom() mail.Address {
	from, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
	}
	return *from
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", "c8f1-2b(x9lq$+v=0kz&yp3d)s#m!a7@nw5e^r6t")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Darasa <noreply@localhost>")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.user", "darasa")
	v.SetDefault("database.password", "darasa")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("grading.backend", "openai")
	v.SetDefault("grading.openaiBaseURL", "https://api.openai.com/v1")
	v.SetDefault("grading.openaiModel", "gpt-4o")
	v.SetDefault("grading.openaiTemperature", 0.7)
	v.SetDefault("grading.openaiMaxTokens", 1000)
	v.SetDefault("grading.timeout", 60*time.Second)
	v.SetDefault("grading.staleAfter", 10*time.Minute)
	v.SetDefault("grading.sweepInterval", 5*time.Minute)
}

// NewConfig reads the configuration of the current ENV (DEV by default) from the environment,
// optionally seeded by `config/.env.<env>`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("grading.backend", "disabled")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		WorkDir:          wd,
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		CatalogFile:      v.GetString("catalogFile"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Grading: GradingConfig{
			Backend:           strings.ToLower(v.GetString("grading.backend")),
			OpenAIBaseURL:     v.GetString("grading.openaiBaseURL"),
			OpenAIKey:         v.GetString("grading.openaiKey"),
			OpenAIModel:       v.GetString("grading.openaiModel"),
			OpenAITemperature: v.GetFloat64("grading.openaiTemperature"),
			OpenAIMaxTokens:   v.GetInt("grading.openaiMaxTokens"),
			EndpointURL:       v.GetString("grading.endpointURL"),
			Timeout:           v.GetDuration("grading.timeout"),
			StaleAfter:        v.GetDuration("grading.staleAfter"),
			SweepInterval:     v.GetDuration("grading.sweepInterval"),
		},
	}
}
