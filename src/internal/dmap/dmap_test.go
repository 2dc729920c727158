package dmap

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeScalar(t *testing.T) {
	b, err := Encode(Num("mstt", 200))
	require.NoError(t, err)

	// code || length || 4 byte big-endian body
	assert.Equal(t, []byte{'m', 's', 't', 't', 0, 0, 0, 4, 0, 0, 0, 200}, b)
}

func TestEncodeString(t *testing.T) {
	b, err := Encode(Str("minm", "Test"))
	require.NoError(t, err)

	assert.Equal(t, []byte{'m', 'i', 'n', 'm', 0, 0, 0, 4, 'T', 'e', 's', 't'}, b)
}

func TestEncodeWidthFromRegistry(t *testing.T) {
	// muty is a uint8 code: its body must be 1 byte even though the node
	// stores the value in a uint64
	b, err := Encode(Num("muty", 1))
	require.NoError(t, err)
	assert.Equal(t, []byte{'m', 'u', 't', 'y', 0, 0, 0, 1, 1}, b)

	// mper is a uint64 code
	b, err = Encode(Num("mper", 0x0102030405060708))
	require.NoError(t, err)
	assert.Len(t, b, 16)
	assert.Equal(t, uint64(0x0102030405060708), binary.BigEndian.Uint64(b[8:]))
}

func TestEncodeVersion(t *testing.T) {
	b, err := Encode(Version("mpro", 2, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte{'m', 'p', 'r', 'o', 0, 0, 0, 4, 0, 2, 0, 0}, b)
}

func TestEncodeUnknownCode(t *testing.T) {
	_, err := Encode(Num("zzzz", 1))
	assert.Error(t, err)
}

func TestContainerLength(t *testing.T) {
	c := Ctr("mlog",
		Num("mstt", 200),
		Num("mlid", 12345),
	)
	b, err := Encode(c)
	require.NoError(t, err)

	// container body length is the sum of the encoded child lengths
	l := binary.BigEndian.Uint32(b[4:8])
	assert.Equal(t, len(b)-8, int(l))

	var kids int
	for _, kid := range c.Kids {
		kl, err := EncodedLen(kid)
		require.NoError(t, err)
		kids += kl
	}
	assert.Equal(t, kids, int(l))
}

func TestRoundTrip(t *testing.T) {
	tree := Ctr("msrv",
		Num("mstt", 200),
		Version("mpro", 2, 0),
		Version("apro", 3, 0),
		Str("minm", "Test"),
		Num("mslr", 0),
		Num("msau", 0),
		Num("mstm", 1800),
		Num("msdc", 1),
		Ctr("mlcl",
			Ctr("mlit", Num("miid", 1), Str("minm", "one")),
			Ctr("mlit", Num("miid", 2), Str("minm", "two")),
		),
	)

	b, err := Encode(tree)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, tree, got)
}

func TestDecodeRejectsBadContainerLength(t *testing.T) {
	b, err := Encode(Ctr("mlcl", Ctr("mlit", Num("miid", 7))))
	require.NoError(t, err)

	// shrink the outer length so it cuts through the child node
	binary.BigEndian.PutUint32(b[4:8], binary.BigEndian.Uint32(b[4:8])-2)
	_, err = Decode(b[:len(b)-2])
	assert.Error(t, err)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	b, err := Encode(Num("mstt", 200))
	require.NoError(t, err)
	_, err = Decode(append(b, 0))
	assert.Error(t, err)
}

func TestCtrSkipsNilChildren(t *testing.T) {
	c := Ctr("mupd", Num("mstt", 200), nil, Num("musr", 2))
	assert.Len(t, c.Kids, 2)
}

func TestCodesSorted(t *testing.T) {
	defs := Codes()
	require.NotEmpty(t, defs)
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Code, defs[i].Code)
	}

	// the minimum bag required by clients
	for _, code := range []string{"miid", "minm", "mstt", "mlit", "mlcl", "mper", "mimc"} {
		_, ok := KindOf(code)
		assert.True(t, ok, code)
	}
}
