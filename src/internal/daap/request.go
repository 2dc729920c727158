package daap

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// limits that bound what a client may send before the request is rejected
const (
	maxHeaderBytes = 64 * 1024
	maxHeaderLines = 100
	maxLineBytes   = 16 * 1024
)

// request is one parsed client request. Only the subset of HTTP/1.1 that
// DAAP clients use is represented
type request struct {
	method     string
	target     string
	path       string
	query      url.Values
	remoteAddr string

	// parsed from recognized headers; malformed values reduce to the zero
	// state rather than failing the request
	username   string
	password   string
	hasAuth    bool
	rangeStart int64
	hasRange   bool
	userAgent  string
	wantClose  bool
}

// intQuery returns a numeric query parameter; missing or malformed values
// default to 0
func (me *request) intQuery(name string) uint32 {
	v, err := strconv.ParseUint(me.query.Get(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// readRequest parses the request line and the header block of one request.
// io errors (EOF included) are returned as-is so the connection loop can
// distinguish a closed connection from a malformed request
func readRequest(r *bufio.Reader, remoteAddr string) (req *request, err error) {
	line, err := readLine(r)
	if err != nil {
		return
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return nil, fmt.Errorf("malformed request line: '%s'", line)
	}
	req = &request{
		method:     parts[0],
		target:     parts[1],
		remoteAddr: remoteAddr,
	}

	u, err := url.ParseRequestURI(req.target)
	if err != nil {
		return nil, fmt.Errorf("malformed request target: '%s'", req.target)
	}
	req.path = u.Path
	req.query = u.Query()

	total := len(line)
	for lines := 0; ; lines++ {
		if lines > maxHeaderLines {
			return nil, fmt.Errorf("request exceeds %d header lines", maxHeaderLines)
		}
		if line, err = readLine(r); err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		total += len(line)
		if total > maxHeaderBytes {
			return nil, fmt.Errorf("request exceeds %d header bytes", maxHeaderBytes)
		}
		req.parseHeader(line)
	}
	return
}

// readLine reads one CRLF-terminated line. The length bound is enforced
// while reading: a line that crosses it fails before more of it is buffered,
// whether or not the client ever sends the terminator
func readLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxLineBytes {
			return "", fmt.Errorf("header line exceeds %d bytes", maxLineBytes)
		}
		if err == nil {
			break
		}
		if err != bufio.ErrBufferFull {
			return "", err
		}
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// parseHeader folds one recognized header into the request. Unknown and
// malformed headers are tolerated and ignored
func (me *request) parseHeader(line string) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return
	}
	value = strings.TrimSpace(value)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "authorization":
		me.parseBasicAuth(value)
	case "range":
		me.parseRange(value)
	case "user-agent":
		me.userAgent = value
	case "connection":
		if strings.EqualFold(value, "close") {
			me.wantClose = true
		}
	}
}

// parseBasicAuth decodes an HTTP basic auth header. Anything malformed
// reduces to "no auth supplied"
func (me *request) parseBasicAuth(value string) {
	scheme, b64, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return
	}
	user, pass, found := strings.Cut(string(raw), ":")
	if !found {
		return
	}
	me.username, me.password, me.hasAuth = user, pass, true
}

// parseRange parses an open-ended single range ("bytes=<off>-"). Anything
// else reduces to "no range"
func (me *request) parseRange(value string) {
	if !strings.HasPrefix(value, "bytes=") {
		return
	}
	spec := strings.TrimPrefix(value, "bytes=")
	if !strings.HasSuffix(spec, "-") {
		return
	}
	spec = strings.TrimSuffix(spec, "-")
	off, err := strconv.ParseInt(spec, 10, 64)
	if err != nil || off < 0 {
		return
	}
	me.rangeStart, me.hasRange = off, true
}
