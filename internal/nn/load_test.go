package nn

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNetworkFile(t *testing.T, dir, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	buf := make([]byte, headerSize)
	copy(buf, fileHeaderMagic)
	buf = append(buf, body...)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func zeroNetworkBody() []byte {
	size := int(unsafe.Sizeof(PolicyNetwork{})) + int(unsafe.Sizeof(ValueNetwork{}))
	return make([]byte, size)
}

func TestLoadValidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeNetworkFile(t, dir, "net.bin", zeroNetworkBody())

	nets, err := Load(path)
	require.NoError(t, err)
	defer nets.Close()

	assert.NotNil(t, nets.Policy)
	assert.NotNil(t, nets.Value)
}

func TestLoadRejectsWrongSize(t *testing.T) {
	dir := t.TempDir()
	body := zeroNetworkBody()
	path := writeNetworkFile(t, dir, "short.bin", body[:len(body)-8])

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	buf := make([]byte, headerSize)
	copy(buf, "NOTCORVID")
	buf = append(buf, zeroNetworkBody()...)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	assert.Error(t, err)
}

func TestCloseSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := writeNetworkFile(t, dir, "net.bin", zeroNetworkBody())

	nets, err := Load(path)
	require.NoError(t, err)
	assert.NoError(t, nets.Close())
}
