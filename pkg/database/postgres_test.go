package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spicer-enrichment/registrar-api/pkg/config"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "registrar", Password: "s3cret", Name: "enrichment"}
	assert.Equal(t, "host=db port=5432 user=registrar password=s3cret dbname=enrichment sslmode=disable", DSN(cfg))

	cfg.Password = `it's a pass\word`
	cfg.SSLMode = "require"
	assert.Equal(t, `host=db port=5432 user=registrar password='it\'s a pass\\word' dbname=enrichment sslmode=require`, DSN(cfg))

	cfg.Password = ""
	assert.NotContains(t, DSN(cfg), "password=")
}
