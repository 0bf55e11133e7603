package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := Config{User: "auth", Pass: "pw", Host: "db", Port: "3306", Name: "authsvc"}
	assert.Equal(t,
		"auth:pw@tcp(db:3306)/authsvc?charset=utf8mb4&parseTime=true&loc=UTC",
		cfg.dsn())
}

func TestDSNWithoutPassword(t *testing.T) {
	cfg := Config{User: "auth", Host: "localhost", Port: "3306", Name: "authsvc"}
	assert.Equal(t,
		"auth@tcp(localhost:3306)/authsvc?charset=utf8mb4&parseTime=true&loc=UTC",
		cfg.dsn())
}

func TestPoolDefaults(t *testing.T) {
	got := Config{}.withDefaults()
	assert.Equal(t, defaultMaxOpenConns, got.MaxOpenConns)
	assert.Equal(t, defaultMaxIdleConns, got.MaxIdleConns)
	assert.Equal(t, defaultConnMaxLifetime, got.ConnMaxLifetime)

	// Configured values win over the defaults.
	got = Config{MaxOpenConns: 5, MaxIdleConns: 2, ConnMaxLifetime: time.Minute}.withDefaults()
	assert.Equal(t, 5, got.MaxOpenConns)
	assert.Equal(t, 2, got.MaxIdleConns)
	assert.Equal(t, time.Minute, got.ConnMaxLifetime)
}
