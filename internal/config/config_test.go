package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const operator = "0x00000000000000000000000000000000000000a1"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPERATOR_ADDRESS", operator)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(DefaultChainID), cfg.Chain.ID)
	assert.Equal(t, common.HexToAddress(operator), cfg.Chain.OperatorAddress())
	assert.Equal(t, "1000000000000000", cfg.Chain.Price().String())
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "signature", cfg.Auth.Type)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "domaguardian.events", cfg.Kafka.Topic)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPERATOR_ADDRESS", operator)
	t.Setenv("CHAIN_ID", "5")
	t.Setenv("FEATURE_PRICE_WEI", "42")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(5), cfg.Chain.ID)
	assert.Equal(t, "42", cfg.Chain.Price().String())
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing operator", env: map[string]string{}},
		{name: "zero operator", env: map[string]string{"OPERATOR_ADDRESS": "0x0000000000000000000000000000000000000000"}},
		{name: "bad price", env: map[string]string{"OPERATOR_ADDRESS": operator, "FEATURE_PRICE_WEI": "abc"}},
		{name: "zero price", env: map[string]string{"OPERATOR_ADDRESS": operator, "FEATURE_PRICE_WEI": "0"}},
		{name: "bad auth", env: map[string]string{"OPERATOR_ADDRESS": operator, "AUTH_TYPE": "api-key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPERATOR_ADDRESS", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
