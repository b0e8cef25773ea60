package postgres

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadSeedBundledFile(t *testing.T) {
	s, err := ReadSeed(filepath.Join("..", "..", "..", "data", "seeds", "distribution.json"))
	require.NoError(t, err)

	assert.Len(t, s.Stores, 4)
	assert.Len(t, s.Distributors, 2)
	assert.Equal(t, []int64{1, 2, 3}, s.Distributors[0].Stores)
	assert.NotEmpty(t, s.Orders)
}

func TestReadSeedRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown store in assignment": `{"stores":[{"id":1}],"distributors":[{"id":7,"stores":[2]}]}`,
		"order without status":        `{"stores":[{"id":1}],"orders":[{"id":1,"store_id":1,"delivery_date":"2026-03-02"}]}`,
		"bad delivery date":           `{"stores":[{"id":1}],"orders":[{"id":1,"store_id":1,"status":"confirmed","delivery_date":"03/02/2026"}]}`,
		"store out of range":          `{"stores":[{"id":1,"location":{"lat":91,"lon":0}}]}`,
		"zero distributor id":         `{"distributors":[{"id":0}]}`,
		"not json":                    `[`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadSeed(writeSeed(t, body))
			assert.Error(t, err)
		})
	}
}

func TestReadSeedMissingFile(t *testing.T) {
	_, err := ReadSeed(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
