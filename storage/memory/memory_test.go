package memory

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/storage"
)

func TestImage(t *testing.T) {
	img := NewImage()
	assert.Equal(t, 0, img.Len())

	a := bytes.Repeat([]byte{1}, block.Size)
	require.NoError(t, img.WriteBlock(a))
	require.NoError(t, img.WriteBlock(block.Filler()))
	assert.Equal(t, 2, img.Len())

	a[0] = 9
	assert.Equal(t, byte(1), img.Block(0)[0], "WriteBlock must copy its input")

	got := img.Block(0)
	got[1] = 9
	assert.Equal(t, byte(1), img.Block(0)[1], "Block must return a copy")

	assert.Len(t, img.Bytes(), 2*block.Size)
	assert.True(t, block.IsFiller(img.Bytes()[block.Size:]))

	var buf bytes.Buffer
	n, err := img.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2*block.Size), n)
	assert.Equal(t, img.Bytes(), buf.Bytes())

	err = img.WriteBlock(make([]byte, 10))
	assert.ErrorIs(t, err, storage.ErrBlockSize)
	assert.Equal(t, 2, img.Len())
}

func TestCopy(t *testing.T) {
	src := NewImage()
	for i := 0; i < 3; i++ {
		require.NoError(t, src.WriteBlock(bytes.Repeat([]byte{byte(i)}, block.Size)))
	}
	dst := NewImage()
	require.NoError(t, storage.Copy(dst, src))
	assert.Equal(t, src.Bytes(), dst.Bytes())
}
