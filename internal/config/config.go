package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	LemonSqueezy LemonSqueezy `envPrefix:"LEMONSQUEEZY_"`
	Enrollment   Enrollment   `envPrefix:"ENROLLMENT_"`
	Access       Access       `envPrefix:"ACCESS_"`
}

type LemonSqueezy struct {
	BaseApiURL    string `env:"BASE_API_URL" envDefault:"https://api.lemonsqueezy.com/v1"`
	APIKey        string `env:"API_KEY"`
	StoreID       string `env:"STORE_ID"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	TestMode      bool   `env:"TEST_MODE" envDefault:"false"`
}

type Enrollment struct {
	BaseURL string `env:"BASE_URL"`
	APIKey  string `env:"API_KEY"`
}

// Access controls how lifecycle transitions translate into enrollment
// changes. A paused subscription keeps access unless RevokeOnPause is set.
type Access struct {
	RevokeOnPause bool `env:"REVOKE_ON_PAUSE" envDefault:"false"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
