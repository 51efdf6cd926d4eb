package flashdev

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFile_PadsWithErasedBytes(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	d, err := OpenFile(fs, "/flash.bin", testGeometry)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	info, err := fs.Stat("/flash.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(testGeometry.Capacity), info.Size())

	buf := make([]byte, testGeometry.Capacity)
	require.NoError(t, d.Read(buf, 0))
	for i, b := range buf {
		require.Equal(t, byte(Erased), b, "byte %d", i)
	}
}

func TestOpenFile_KeepsExistingContents(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/flash.bin", []byte{0x01, 0x02}, 0o644))

	d, err := OpenFile(fs, "/flash.bin", testGeometry)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	buf := make([]byte, 3)
	require.NoError(t, d.Read(buf, 0))
	assert.Equal(t, []byte{0x01, 0x02, Erased}, buf)
}

func TestFile_ProgramEraseRead(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	d, err := OpenFile(fs, "/flash.bin", testGeometry)
	require.NoError(t, err)

	require.NoError(t, d.Program([]byte{0x7B, 0x00}, 62))
	require.NoError(t, d.Program([]byte{0x0F}, 62))

	buf := make([]byte, 2)
	require.NoError(t, d.Read(buf, 62))
	assert.Equal(t, []byte{0x0B, 0x00}, buf)

	require.NoError(t, d.EraseSector(3))
	require.NoError(t, d.Read(buf, 62))
	assert.Equal(t, []byte{Erased, Erased}, buf)

	require.NoError(t, d.Sync())
	require.NoError(t, d.Close())

	raw, err := afero.ReadFile(fs, "/flash.bin")
	require.NoError(t, err)
	assert.Len(t, raw, testGeometry.Capacity)
}

func TestFile_RangeError(t *testing.T) {
	t.Parallel()

	d, err := OpenFile(afero.NewMemMapFs(), "/flash.bin", testGeometry)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	var rangeErr *RangeError
	require.ErrorAs(t, d.Program([]byte{1}, 64), &rangeErr)
	require.ErrorAs(t, d.EraseSector(9), &rangeErr)
}

func TestOpenFile_InvalidGeometry(t *testing.T) {
	t.Parallel()

	_, err := OpenFile(afero.NewMemMapFs(), "/flash.bin", Geometry{SectorSize: 3, Capacity: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid geometry")
}
