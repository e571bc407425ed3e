package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sanskarm7/JobCATGmail/config"
	"github.com/sanskarm7/JobCATGmail/core/service/ingest"
)

func TestSyncConfigAppliesPolicy(t *testing.T) {
	def := ingest.DefaultConfig()
	assert.Equal(t, def.DefaultLookbackDays, syncConfig(nil).DefaultLookbackDays)

	p := &config.Policy{LookbackDays: 30, KeywordMatchThreshold: 0.8, ClassifyConcurrency: 2}
	p.Prefilter.ATSDomains = []string{"jobs.example.com"}

	got := syncConfig(p)
	assert.Equal(t, 30, got.DefaultLookbackDays)
	assert.Equal(t, def.MaxMessages, got.MaxMessages)
	assert.Equal(t, 2, got.Concurrency)
	assert.Equal(t, 0.8, got.Policy.KeywordMatchThreshold)
	assert.Equal(t, def.Policy.CompanyMatchThreshold, got.Policy.CompanyMatchThreshold)
	assert.Equal(t, []string{"jobs.example.com"}, got.Prefilter.ExtraATSDomains)
}

func TestNewCipherWithoutKey(t *testing.T) {
	c, err := newCipher(&config.Config{})
	assert.NoError(t, err)

	sealed, err := c.Encrypt("token")
	assert.NoError(t, err)
	plain, err := c.Decrypt(sealed)
	assert.NoError(t, err)
	assert.Equal(t, "token", plain)
}
