package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuiltinRegistry(t *testing.T) {
	registry, err := NewRegistry("")
	assert.NoError(t, err)

	assert.Len(t, registry.List(), 4)
	assert.Equal(t, "us-east", registry.Fallback())

	assert.True(t, registry.Valid("us-east"))
	assert.True(t, registry.Valid("ap-southeast"))
	assert.False(t, registry.Valid("mars-north"))
}

func TestLookup(t *testing.T) {
	registry, err := NewRegistry("")
	assert.NoError(t, err)

	assert.Equal(t, "eu-west", registry.Lookup("DE"))
	assert.Equal(t, "ap-southeast", registry.Lookup("SG"))
	assert.Equal(t, "us-east", registry.Lookup("ZZ"), "未识别位置码应兜底")
	assert.Equal(t, "us-east", registry.Lookup(""), "空位置码应兜底")
}

func TestLoadTableFromFile(t *testing.T) {
	content := `
fallback: eu-west
regions:
  - name: eu-west
    location: Dublin
    endpoint: https://eu-west.example.dev
  - name: eu-central
    location: Frankfurt
    endpoint: https://eu-central.example.dev
lookup:
  DE: eu-central
`
	path := filepath.Join(t.TempDir(), "regions.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))

	registry, err := NewRegistry(path)
	assert.NoError(t, err)

	assert.Len(t, registry.List(), 2)
	assert.Equal(t, "eu-west", registry.Fallback())
	assert.Equal(t, "eu-central", registry.Lookup("DE"))
	assert.Equal(t, "eu-west", registry.Lookup("US"))
}

func TestLoadTableErrors(t *testing.T) {
	t.Run("文件不存在", func(t *testing.T) {
		_, err := NewRegistry("/nonexistent/regions.yaml")
		assert.Error(t, err)
	})

	t.Run("兜底地域缺失", func(t *testing.T) {
		content := `
fallback: missing
regions:
  - name: eu-west
    location: Dublin
    endpoint: https://eu-west.example.dev
`
		path := filepath.Join(t.TempDir(), "regions.yaml")
		assert.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := NewRegistry(path)
		assert.Error(t, err)
	})
}
