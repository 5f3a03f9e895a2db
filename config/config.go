package config

import (
	"fmt"
	"net/http"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
)

// Config holds the project config values, read from the environment
type Config struct {
	URL          string `env:"DB_URI" env-default:"mongodb://127.0.0.1:27017"`
	DatabaseName string `env:"DB_NAME" env-default:"placement-portal"`
	BaseURL      string `env:"BASE_URL" env-default:"http://localhost:8080"`
	Port         string `env:"PORT" env-default:"8080"`
	Environment  string `env:"ENVIRONMENT" env-default:"local"`

	TokenSecret     string `env:"APPROVAL_TOKEN_SECRET"`
	SendgridAPIKey  string `env:"SENDGRID_API_KEY"`
	MailFromAddress string `env:"MAIL_FROM_ADDRESS" env-default:"no-reply@placement-cell.app"`
	MailFromName    string `env:"MAIL_FROM_NAME" env-default:"Placement Cell"`
}

// New sets up all config related services
func New() *Config {
	conf := &Config{}
	if err := cleanenv.ReadEnv(conf); err != nil {
		zap.S().With(err).Error("failed to read environment config")
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Environment)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return conf
}

func setLogger(environment string) (*zap.Logger, error) {
	switch environment {
	case "development":
		return zap.NewDevelopment()
	case "production":
		return zap.NewProduction()
	default:
		return zap.NewExample(), nil
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}
