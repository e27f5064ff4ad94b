package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", c.Database.Driver)
	assert.Equal(t, 10, c.Security.EncryptRounds)
	assert.Equal(t, []string{"888"}, c.Security.UnoSeeds)
	assert.Equal(t, 32, c.Tree.MaxDepth)
	assert.Equal(t, time.Hour, c.Database.ConnMaxLifetime)
	assert.Equal(t, int64(1), c.Server.NodeID)
	assert.Equal(t, 300, c.RateLimit.MaxRequests)
	assert.Equal(t, 5*time.Minute, c.RateLimit.BlockDuration)
	assert.False(t, c.IsProduction())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "admin")
	t.Setenv("SECURITY_UNO_SEEDS", "6489,12")
	t.Setenv("GO_APP_ENV", "Production")

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "root:secret@tcp(db:3306)/admin?charset=utf8mb4&parseTime=True&loc=UTC", c.Database.DSN())
	assert.Equal(t, []string{"6489", "12"}, c.Security.UnoSeeds)
	assert.True(t, c.IsProduction())
}

func TestDatabaseOptions_PostgresDSN(t *testing.T) {
	d := DatabaseOptions{Host: "h", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", d.DSN())
}
