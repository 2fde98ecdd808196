package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Secrets never have defaults inside code and must be provided via config file or the environment.
type AppConfig struct {
	AppPort            string
	BaseURL            string // public URL of the SPA, used in notification links
	JWTSecret          string
	IDHashKey          string // signs encrypted element identifiers
	IDBlockKey         string // encrypts element identifiers, 16/24/32 bytes
	AllowedOrigins     []string
	RateLimitPerMinute int

	GinMode string
	GinPath string

	DBDriver    string // mysql, postgres or sqlite
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectBase  string

	RecaptchaSecret    string
	RecaptchaMinScore  float64
	RecaptchaVerifyURL string

	OneSignalAppID   string
	OneSignalAPIKey  string
	OneSignalBaseURL string

	ResendAPIKey  string
	ResendBaseURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      bool

	MailProvider        string // resend, onesignal, smtp or empty to disable email
	MailFrom            string
	MailFromName        string
	MailBatchSize       int
	MailBatchPauseMS    int
	MailRecipientPaceMS int

	StorageRoot         string
	StoragePublicPrefix string
	DefaultCover        string
	DefaultPhoto        string

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort            string   `json:"AppPort"`
		BaseURL            string   `json:"BaseURL"`
		JWTSecret          string   `json:"JWTSecret"`
		IDHashKey          string   `json:"IDHashKey"`
		IDBlockKey         string   `json:"IDBlockKey"`
		AllowedOrigins     []string `json:"AllowedOrigins"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute"`
	} `json:"app"`
	Gin struct {
		Mode    string `json:"Mode"`
		LogPath string `json:"LogPath"`
	} `json:"gin"`
	Database struct {
		Driver      string `json:"Driver"`
		DatabaseURI string `json:"DatabaseURI"`
		DBHost      string `json:"DBHost"`
		DBPort      string `json:"DBPort"`
		DBUser      string `json:"DBUser"`
		DBPassword  string `json:"DBPassword"`
		DBName      string `json:"DBName"`
	} `json:"database"`
	Redis struct {
		RedisHost     string `json:"RedisHost"`
		RedisPort     int    `json:"RedisPort"`
		RedisDB       int    `json:"RedisDB"`
		RedisPassword string `json:"RedisPassword"`
	} `json:"redis"`
	OAuth struct {
		GoogleClientID     string `json:"GoogleClientID"`
		GoogleClientSecret string `json:"GoogleClientSecret"`
		OAuthRedirectBase  string `json:"OAuthRedirectBase"`
	} `json:"oauth"`
	Recaptcha struct {
		Secret    string  `json:"Secret"`
		MinScore  float64 `json:"MinScore"`
		VerifyURL string  `json:"VerifyURL"`
	} `json:"recaptcha"`
	OneSignal struct {
		AppID   string `json:"AppID"`
		APIKey  string `json:"APIKey"`
		BaseURL string `json:"BaseURL"`
	} `json:"onesignal"`
	Resend struct {
		APIKey  string `json:"APIKey"`
		BaseURL string `json:"BaseURL"`
	} `json:"resend"`
	SMTP struct {
		SMTPHost     string `json:"SMTPHost"`
		SMTPPort     int    `json:"SMTPPort"`
		SMTPUsername string `json:"SMTPUsername"`
		SMTPPassword string `json:"SMTPPassword"`
		SMTPTLS      bool   `json:"SMTPTLS"`
	} `json:"smtp"`
	Mail struct {
		Provider        string `json:"Provider"`
		From            string `json:"From"`
		FromName        string `json:"FromName"`
		BatchSize       int    `json:"BatchSize"`
		BatchPauseMS    int    `json:"BatchPauseMS"`
		RecipientPaceMS int    `json:"RecipientPaceMS"`
	} `json:"mail"`
	Storage struct {
		Root         string `json:"Root"`
		PublicPrefix string `json:"PublicPrefix"`
		DefaultCover string `json:"DefaultCover"`
		DefaultPhoto string `json:"DefaultPhoto"`
	} `json:"storage"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variables (.env included).
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	_ = godotenv.Load()

	var c AppConfig
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &c); err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)

	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in config or environment")
	}
	if c.IDHashKey == "" {
		log.Fatal("ID_HASH_KEY must be set in config or environment")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()
	return Load()
}

// Set replaces the active configuration. Defaults are applied to zero fields.
// Used by tests and tools that build configuration in code.
func Set(c AppConfig) {
	applyDefaults(&c)
	mu.Lock()
	cfg = c
	loaded = true
	mu.Unlock()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads the grouped JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var fc fileConfig
	if err := json.NewDecoder(f).Decode(&fc); err != nil {
		return err
	}

	out.AppPort = fc.App.AppPort
	out.BaseURL = fc.App.BaseURL
	out.JWTSecret = fc.App.JWTSecret
	out.IDHashKey = fc.App.IDHashKey
	out.IDBlockKey = fc.App.IDBlockKey
	out.AllowedOrigins = fc.App.AllowedOrigins
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute

	out.GinMode = fc.Gin.Mode
	out.GinPath = fc.Gin.LogPath

	out.DBDriver = fc.Database.Driver
	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName

	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword

	out.GoogleClientID = fc.OAuth.GoogleClientID
	out.GoogleClientSecret = fc.OAuth.GoogleClientSecret
	out.OAuthRedirectBase = fc.OAuth.OAuthRedirectBase

	out.RecaptchaSecret = fc.Recaptcha.Secret
	out.RecaptchaMinScore = fc.Recaptcha.MinScore
	out.RecaptchaVerifyURL = fc.Recaptcha.VerifyURL

	out.OneSignalAppID = fc.OneSignal.AppID
	out.OneSignalAPIKey = fc.OneSignal.APIKey
	out.OneSignalBaseURL = fc.OneSignal.BaseURL

	out.ResendAPIKey = fc.Resend.APIKey
	out.ResendBaseURL = fc.Resend.BaseURL

	out.SMTPHost = fc.SMTP.SMTPHost
	out.SMTPPort = fc.SMTP.SMTPPort
	out.SMTPUsername = fc.SMTP.SMTPUsername
	out.SMTPPassword = fc.SMTP.SMTPPassword
	out.SMTPTLS = fc.SMTP.SMTPTLS

	out.MailProvider = fc.Mail.Provider
	out.MailFrom = fc.Mail.From
	out.MailFromName = fc.Mail.FromName
	out.MailBatchSize = fc.Mail.BatchSize
	out.MailBatchPauseMS = fc.Mail.BatchPauseMS
	out.MailRecipientPaceMS = fc.Mail.RecipientPaceMS

	out.StorageRoot = fc.Storage.Root
	out.StoragePublicPrefix = fc.Storage.PublicPrefix
	out.DefaultCover = fc.Storage.DefaultCover
	out.DefaultPhoto = fc.Storage.DefaultPhoto

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		switch c.DBDriver {
		case "postgres":
			c.DBPort = "5432"
		default:
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "segbon"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = c.BaseURL
	}
	if c.RecaptchaMinScore == 0 {
		c.RecaptchaMinScore = 0.5
	}
	if c.RecaptchaVerifyURL == "" {
		c.RecaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if c.OneSignalBaseURL == "" {
		c.OneSignalBaseURL = "https://onesignal.com/api/v1"
	}
	if c.ResendBaseURL == "" {
		c.ResendBaseURL = "https://api.resend.com"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.MailFromName == "" {
		c.MailFromName = "Segbon"
	}
	if c.MailBatchSize == 0 {
		c.MailBatchSize = 50
	}
	if c.MailBatchPauseMS == 0 {
		c.MailBatchPauseMS = 1000
	}
	if c.MailRecipientPaceMS == 0 {
		c.MailRecipientPaceMS = 100
	}
	if c.StorageRoot == "" {
		c.StorageRoot = "storage"
	}
	if c.StoragePublicPrefix == "" {
		c.StoragePublicPrefix = "/storage"
	}
	if c.DefaultCover == "" {
		c.DefaultCover = "/static/img/default-cover.png"
	}
	if c.DefaultPhoto == "" {
		c.DefaultPhoto = "/static/img/default-photo.png"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	str := map[string]*string{
		"APP_PORT":              &c.AppPort,
		"BASE_URL":              &c.BaseURL,
		"JWT_SECRET":            &c.JWTSecret,
		"ID_HASH_KEY":           &c.IDHashKey,
		"ID_BLOCK_KEY":          &c.IDBlockKey,
		"GIN_MODE":              &c.GinMode,
		"GIN_PATH":              &c.GinPath,
		"DB_DRIVER":             &c.DBDriver,
		"DATABASE_URI":          &c.DatabaseURI,
		"DB_HOST":               &c.DBHost,
		"DB_PORT":               &c.DBPort,
		"DB_USER":               &c.DBUser,
		"DB_PASSWORD":           &c.DBPassword,
		"DB_NAME":               &c.DBName,
		"REDIS_HOST":            &c.RedisHost,
		"REDIS_PASSWORD":        &c.RedisPassword,
		"GOOGLE_CLIENT_ID":      &c.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":  &c.GoogleClientSecret,
		"OAUTH_REDIRECT_BASE":   &c.OAuthRedirectBase,
		"RECAPTCHA_SECRET":      &c.RecaptchaSecret,
		"ONESIGNAL_APP_ID":      &c.OneSignalAppID,
		"ONESIGNAL_API_KEY":     &c.OneSignalAPIKey,
		"RESEND_API_KEY":        &c.ResendAPIKey,
		"SMTP_HOST":             &c.SMTPHost,
		"SMTP_USERNAME":         &c.SMTPUsername,
		"SMTP_PASSWORD":         &c.SMTPPassword,
		"MAIL_PROVIDER":         &c.MailProvider,
		"MAIL_FROM":             &c.MailFrom,
		"MAIL_FROM_NAME":        &c.MailFromName,
		"STORAGE_ROOT":          &c.StorageRoot,
		"STORAGE_PUBLIC_PREFIX": &c.StoragePublicPrefix,
		"LOG_LEVEL":             &c.LogLevel,
		"LOG_PATH":              &c.LogPath,
	}
	for key, dst := range str {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RATE_LIMIT_PER_MINUTE":  &c.RateLimitPerMinute,
		"REDIS_PORT":             &c.RedisPort,
		"REDIS_DB":               &c.RedisDB,
		"SMTP_PORT":              &c.SMTPPort,
		"MAIL_BATCH_SIZE":        &c.MailBatchSize,
		"MAIL_BATCH_PAUSE_MS":    &c.MailBatchPauseMS,
		"MAIL_RECIPIENT_PACE_MS": &c.MailRecipientPaceMS,
	}
	for key, dst := range ints {
		if v := getEnv(key, ""); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		c.AllowedOrigins = origins
	}
	if v := getEnv("RECAPTCHA_MIN_SCORE", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RecaptchaMinScore = f
		}
	}
	if v := getEnv("SMTP_TLS", ""); v != "" {
		c.SMTPTLS = v == "1" || strings.EqualFold(v, "true")
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "1" || strings.EqualFold(v, "true")
	}
}
