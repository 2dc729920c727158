package daap

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string) (*request, error) {
	t.Helper()
	return readRequest(bufio.NewReader(strings.NewReader(raw)), "127.0.0.1:1234")
}

func TestReadRequest(t *testing.T) {
	req, err := parse(t,
		"GET /databases/1/items?session-id=42&meta=dmap.itemid HTTP/1.1\r\n"+
			"User-Agent: iTunes/4.0\r\n"+
			"Connection: close\r\n"+
			"\r\n")
	require.NoError(t, err)
	assert.Equal(t, "GET", req.method)
	assert.Equal(t, "/databases/1/items", req.path)
	assert.EqualValues(t, 42, req.intQuery("session-id"))
	assert.Equal(t, "dmap.itemid", req.query.Get("meta"))
	assert.Equal(t, "iTunes/4.0", req.userAgent)
	assert.True(t, req.wantClose)
	assert.Equal(t, "127.0.0.1:1234", req.remoteAddr)

	// missing query parameters default to 0
	assert.EqualValues(t, 0, req.intQuery("delta"))
}

func TestReadRequestMalformed(t *testing.T) {
	for _, raw := range []string{
		"NONSENSE\r\n\r\n",
		"GET /x\r\n\r\n",
		"GET /x NOTHTTP/1.1\r\n\r\n",
	} {
		_, err := parse(t, raw)
		assert.Error(t, err, "request %q", raw)
		assert.NotEqual(t, io.EOF, err)
	}

	// a closed connection surfaces as EOF, not as a parse error
	_, err := parse(t, "")
	assert.Equal(t, io.EOF, err)
}

func TestReadRequestUnterminatedLine(t *testing.T) {
	// a header line that never sends its terminator must fail at the line
	// cap, not buffer until the client gives up
	raw := "GET / HTTP/1.1\r\nX-Filler: " + strings.Repeat("a", 4*maxLineBytes)
	_, err := parse(t, raw)
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
	assert.Contains(t, err.Error(), "header line exceeds")
}

func TestReadRequestTooManyHeaders(t *testing.T) {
	var raw strings.Builder
	raw.WriteString("GET / HTTP/1.1\r\n")
	for i := 0; i < maxHeaderLines+2; i++ {
		raw.WriteString("X-Filler: x\r\n")
	}
	raw.WriteString("\r\n")

	_, err := parse(t, raw.String())
	assert.Error(t, err)
}

func TestParseBasicAuth(t *testing.T) {
	var req request
	// "alice:hunter2"
	req.parseBasicAuth("Basic YWxpY2U6aHVudGVyMg==")
	require.True(t, req.hasAuth)
	assert.Equal(t, "alice", req.username)
	assert.Equal(t, "hunter2", req.password)

	// malformed values reduce to "no auth supplied"
	for _, value := range []string{
		"Digest abc",
		"Basic !!!not-base64!!!",
		"Basic bm9jb2xvbg==", // "nocolon"
		"Basic",
	} {
		var r request
		r.parseBasicAuth(value)
		assert.False(t, r.hasAuth, "value %q", value)
	}
}

func TestParseRange(t *testing.T) {
	var req request
	req.parseRange("bytes=200-")
	require.True(t, req.hasRange)
	assert.EqualValues(t, 200, req.rangeStart)

	// only open-ended single ranges are understood
	for _, value := range []string{
		"bytes=200-400",
		"bytes=-400",
		"items=200-",
		"bytes=abc-",
	} {
		var r request
		r.parseRange(value)
		assert.False(t, r.hasRange, "value %q", value)
	}
}
