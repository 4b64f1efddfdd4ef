package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port    string
	DBDSN   string
	LogFile string

	// StoreBackend is "sqlite" or "firestore".
	StoreBackend             string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	FirebaseProjectID        string

	RedisAddr  string
	SessionTTL time.Duration

	AMQPURL      string
	AMQPExchange string

	// PaymentGateway is "stub" or "mpesa".
	PaymentGateway      string
	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortCode      string
	MpesaPasskey        string
	MpesaCallbackURL    string

	CheckoutSubmission string
	CustomerDedupe     bool
	StrictResolution   bool

	HomeCity    string
	HomeState   string
	HomeCountry string
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(getenvDefault(key, strconv.FormatBool(def)))
	if err != nil {
		log.Printf("[config] %s is not a boolean, using %v", key, def)
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getenvDefault(key, def.String()))
	if err != nil || d <= 0 {
		log.Printf("[config] %s is not a positive duration, using %s", key, def)
		return def
	}
	return d
}

func Load() Config {
	cfg := Config{
		Port:    getenvDefault("PORT", "8080"),
		DBDSN:   getenvDefault("DB_DSN", "kinara.db"), // sqlite file in project root
		LogFile: getenvDefault("LOG_FILE", "./kinara.log"),

		StoreBackend:             strings.ToLower(getenvDefault("STORE_BACKEND", "sqlite")),
		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", ""),
		FirestoreCredentialsFile: getenvDefault("FIRESTORE_CREDENTIALS_FILE", ""),

		RedisAddr:  getenvDefault("REDIS_ADDR", ""),
		SessionTTL: getenvDuration("SESSION_TTL", 24*time.Hour),

		AMQPURL:      getenvDefault("AMQP_URL", ""),
		AMQPExchange: getenvDefault("AMQP_EXCHANGE", "kinara.events"),

		PaymentGateway:      strings.ToLower(getenvDefault("PAYMENT_GATEWAY", "stub")),
		MpesaBaseURL:        getenvDefault("MPESA_BASE_URL", ""),
		MpesaConsumerKey:    getenvDefault("MPESA_CONSUMER_KEY", ""),
		MpesaConsumerSecret: getenvDefault("MPESA_CONSUMER_SECRET", ""),
		MpesaShortCode:      getenvDefault("MPESA_SHORTCODE", ""),
		MpesaPasskey:        getenvDefault("MPESA_PASSKEY", ""),
		MpesaCallbackURL:    getenvDefault("MPESA_CALLBACK_URL", ""),

		CheckoutSubmission: getenvDefault("CHECKOUT_SUBMISSION", "compensate"),
		CustomerDedupe:     getenvBool("CUSTOMER_DEDUPE", false),
		StrictResolution:   getenvBool("STRICT_RESOLUTION", false),

		HomeCity:    getenvDefault("HOME_CITY", "Nairobi"),
		HomeState:   getenvDefault("HOME_STATE", "Nairobi"),
		HomeCountry: getenvDefault("HOME_COUNTRY", "Kenya"),
	}
	cfg.FirebaseProjectID = getenvDefault("FIREBASE_PROJECT_ID", cfg.FirestoreProjectID)

	// secrets are reported as set/unset only
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s STORE_BACKEND=%s FIRESTORE_PROJECT_ID=%s FIREBASE_PROJECT_ID=%s",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.StoreBackend, cfg.FirestoreProjectID, cfg.FirebaseProjectID)
	log.Printf("[config] REDIS_ADDR=%s SESSION_TTL=%s AMQP_URL set=%v AMQP_EXCHANGE=%s",
		cfg.RedisAddr, cfg.SessionTTL, cfg.AMQPURL != "", cfg.AMQPExchange)
	log.Printf("[config] PAYMENT_GATEWAY=%s MPESA_SHORTCODE=%s MPESA_CONSUMER_KEY set=%v CHECKOUT_SUBMISSION=%s CUSTOMER_DEDUPE=%v STRICT_RESOLUTION=%v HOME=%s/%s/%s",
		cfg.PaymentGateway, cfg.MpesaShortCode, cfg.MpesaConsumerKey != "", cfg.CheckoutSubmission,
		cfg.CustomerDedupe, cfg.StrictResolution, cfg.HomeCity, cfg.HomeState, cfg.HomeCountry)
	return cfg
}
