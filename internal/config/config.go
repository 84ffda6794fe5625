package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	JWTIssuer       string
	JWTSecret       string
	JWTTTL          time.Duration
	InternalToken   string
	WebSocketOrigin string
	Mode            string

	// QuoteURL points at the external price source. Empty switches the
	// pending-fill scanner to the in-process static source, which is the
	// development setup.
	QuoteURL     string
	ScanInterval time.Duration

	// SweepTime is the local wall-clock time ("15:30") at which the daily
	// reconciliation sweep fires, in SweepTZ.
	SweepTime string
	SweepTZ   string

	AllowNegativeBalance bool
	OpeningPoints        string
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		c.WebSocketOrigin = "*"
	}
	c.Mode = strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	if c.Mode == "" {
		c.Mode = "development"
	}
	if c.Mode != "development" && c.Mode != "production" {
		return c, errors.New("invalid APP_MODE: use development or production")
	}
	c.QuoteURL = strings.TrimRight(os.Getenv("QUOTE_URL"), "/")
	if c.Mode == "production" && c.QuoteURL == "" {
		missing = append(missing, "QUOTE_URL")
	}
	scanInterval := os.Getenv("SCAN_INTERVAL")
	if scanInterval == "" {
		c.ScanInterval = 10 * time.Second
	} else {
		d, err := time.ParseDuration(scanInterval)
		if err != nil {
			return c, err
		}
		c.ScanInterval = d
	}
	c.SweepTime = os.Getenv("SWEEP_TIME")
	if c.SweepTime == "" {
		c.SweepTime = "15:30"
	}
	if _, err := time.Parse("15:04", c.SweepTime); err != nil {
		return c, errors.New("invalid SWEEP_TIME: use HH:MM")
	}
	c.SweepTZ = os.Getenv("SWEEP_TZ")
	if c.SweepTZ == "" {
		c.SweepTZ = "Asia/Seoul"
	}
	allowNegative := os.Getenv("ALLOW_NEGATIVE_BALANCE")
	if allowNegative == "" {
		c.AllowNegativeBalance = true
	} else {
		b, err := strconv.ParseBool(allowNegative)
		if err != nil {
			return c, err
		}
		c.AllowNegativeBalance = b
	}
	c.OpeningPoints = os.Getenv("OPENING_POINTS")
	if c.OpeningPoints == "" {
		c.OpeningPoints = "1000000"
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
