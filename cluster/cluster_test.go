package cluster

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	cmd := NewCommand("/tmp/bench", "--rank", "1", "--name", "it's a test", "")
	cmd.Env = []string{"DEBUG=1"}
	assert.Equal(t, `DEBUG=1 /tmp/bench --rank 1 --name 'it'\''s a test' ''`, cmd.String())
}

func TestPrefixWriter(t *testing.T) {
	var out bytes.Buffer
	w := newPrefixWriter("[a] ", &out)

	n, err := w.Write([]byte("one\ntw"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "[a] one\n", out.String())

	w.Write([]byte("o\nthree"))
	assert.Equal(t, "[a] one\n[a] two\n", out.String())

	w.Flush()
	assert.Equal(t, "[a] one\n[a] two\n[a] three\n", out.String())
	w.Flush()
	assert.Equal(t, "[a] one\n[a] two\n[a] three\n", out.String())
}

func TestImageTableLookup(t *testing.T) {
	image, err := DefaultImages.Lookup("ubuntu", "us-west-2")
	require.NoError(t, err)
	assert.Equal(t, "ami-e580c79d", image)

	image, err = DefaultImages.Lookup("amazon", "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "ami-ca4464b5", image)

	_, err = DefaultImages.Lookup("gentoo", "us-east-1")
	require.IsType(t, &ConfigError{}, err)
	assert.Equal(t, "linux_type", err.(*ConfigError).Field)

	_, err = DefaultImages.Lookup("ubuntu", "eu-west-1")
	require.IsType(t, &ConfigError{}, err)
	assert.Equal(t, "region", err.(*ConfigError).Field)
}

func TestImageTableMerge(t *testing.T) {
	merged := DefaultImages.Merge(ImageTable{
		"ubuntu": {"eu-west-1": "ami-custom"},
		"debian": {"us-east-1": "ami-debian"},
	})
	assert.Equal(t, []string{"amazon", "debian", "ubuntu"}, merged.Families())
	assert.Equal(t, "ami-custom", merged["ubuntu"]["eu-west-1"])
	assert.Equal(t, "ami-6d720012", merged["ubuntu"]["us-east-1"])

	_, ok := DefaultImages["ubuntu"]["eu-west-1"]
	assert.False(t, ok, "merge must not modify the receiver")
}
