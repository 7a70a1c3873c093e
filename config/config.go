package config

import "time"

type Config struct {
	Web      Web
	DB       DB
	Cors     Cors
	Session  Session
	Auth     Auth
	Checkout Checkout
	Payment  Payment
	Razorpay Razorpay
	Stripe   Stripe
	Paypal   Paypal
	Storage  Storage
	Rate     Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:20s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	Driver       string `conf:"default:postgres"`
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:selfcrafted"`
	MaxIdleConns int    `conf:"default:3"`
	MaxOpenConns int    `conf:"default:2"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

type Cors struct {
	Origin string
}

type Session struct {
	Lifetime     time.Duration `conf:"default:24h"`
	SecureCookie bool          `conf:"default:false"`
}

type Auth struct {
	QuoteDailyLimit int `conf:"default:3"`
}

type Checkout struct {
	DeliveryFee int    `conf:"default:49"`
	Currency    string `conf:"default:INR"`
}

type Payment struct {
	Provider string `conf:"default:razorpay"`
}

type Razorpay struct {
	KeyID     string
	KeySecret string `conf:"mask"`
	URL       string `conf:"default:https://api.razorpay.com"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	PublicKey     string
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api-m.sandbox.paypal.com"`
}

type Storage struct {
	Bucket        string        `conf:"default:models"`
	SignedURLTTL  time.Duration `conf:"default:10m"`
	MaxUploadSize int64         `conf:"default:52428800"`
}

type Rate struct {
	Burst  int     `conf:"default:20"`
	RPS    float64 `conf:"default:2"`
	Expiry int     `conf:"default:10"`
}
