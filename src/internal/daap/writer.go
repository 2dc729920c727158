package daap

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/pkg/errors"
	"gitlab.com/mipimipi/daapsrv/src/internal/dmap"
)

// streamChunkSize is the block size used when streaming file payloads. Slow
// readers throttle the producer through the blocking writer
const streamChunkSize = 8 * 1024

// responseWriter serializes one response to the connection. All responses
// carry an absolute Content-Length; transfer-encoding chunked is never used
type responseWriter struct {
	w          *bufio.Writer
	serverName string
}

// writeHead writes the status line and common headers. extra headers are
// alternating name/value pairs
func (me *responseWriter) writeHead(status int, contentType string, contentLength int64, extra ...string) (err error) {
	if _, err = fmt.Fprintf(me.w, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status)); err != nil {
		return
	}
	fmt.Fprintf(me.w, "DAAP-Server: %s\r\n", me.serverName)
	if contentType != "" {
		fmt.Fprintf(me.w, "Content-Type: %s\r\n", contentType)
	}
	fmt.Fprintf(me.w, "Content-Length: %d\r\n", contentLength)
	for i := 0; i+1 < len(extra); i += 2 {
		fmt.Fprintf(me.w, "%s: %s\r\n", extra[i], extra[i+1])
	}
	_, err = io.WriteString(me.w, "\r\n")
	return
}

// writeDMAP encodes a node tree and writes it as the response body
func (me *responseWriter) writeDMAP(tree *dmap.Node) (err error) {
	body, err := dmap.Encode(tree)
	if err != nil {
		err = errors.Wrap(err, "cannot encode response")
		log.Error(err)
		return me.writeError(http.StatusInternalServerError, "encoding error")
	}
	if err = me.writeHead(http.StatusOK, "application/x-dmap-tagged", int64(len(body))); err != nil {
		return
	}
	if _, err = me.w.Write(body); err != nil {
		return
	}
	return me.w.Flush()
}

// writeError writes an HTTP error status with a short UTF-8 body
func (me *responseWriter) writeError(status int, body string) (err error) {
	if err = me.writeHead(status, "text/plain; charset=utf-8", int64(len(body))); err != nil {
		return
	}
	if _, err = io.WriteString(me.w, body); err != nil {
		return
	}
	return me.w.Flush()
}

// writeEmpty writes a status with an empty body
func (me *responseWriter) writeEmpty(status int) (err error) {
	if err = me.writeHead(status, "", 0); err != nil {
		return
	}
	return me.w.Flush()
}

// writeAuthChallenge writes a 401 with a basic auth challenge for realm
func (me *responseWriter) writeAuthChallenge(realm string) (err error) {
	if err = me.writeHead(http.StatusUnauthorized, "text/plain; charset=utf-8", 0,
		"WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm)); err != nil {
		return
	}
	return me.w.Flush()
}

// writeFile streams a file payload. length is the total file length, offset
// the position the stream is already positioned at. An offset of 0 yields a
// plain 200; a positive offset yields 206 with a Content-Range of the form
// "bytes <off>-<len>/<len+1>". The non-standard upper bound is preserved for
// client compatibility. The payload is copied in fixed-size chunks until
// length bytes have been sent or the source is exhausted
func (me *responseWriter) writeFile(src io.Reader, length, offset int64, contentType string) (err error) {
	remaining := length - offset
	if remaining < 0 {
		remaining = 0
	}

	if offset == 0 {
		err = me.writeHead(http.StatusOK, contentType, remaining)
	} else {
		err = me.writeHead(http.StatusPartialContent, contentType, remaining,
			"Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, length, length+1))
	}
	if err != nil {
		return
	}

	buf := make([]byte, streamChunkSize)
	for remaining > 0 {
		chunk := int64(len(buf))
		if chunk > remaining {
			chunk = remaining
		}
		var n int
		n, err = src.Read(buf[:chunk])
		if n > 0 {
			if _, werr := me.w.Write(buf[:n]); werr != nil {
				return werr
			}
			remaining -= int64(n)
		}
		if err == io.EOF {
			err = nil
			break
		}
		if err != nil {
			return
		}
	}
	return me.w.Flush()
}

// writeArtwork writes cover art with its image mime subtype
func (me *responseWriter) writeArtwork(data []byte, mimeSubtype string) (err error) {
	if err = me.writeHead(http.StatusOK, "image/"+mimeSubtype, int64(len(data))); err != nil {
		return
	}
	if _, err = me.w.Write(data); err != nil {
		return
	}
	return me.w.Flush()
}

// audioContentType maps a track format hint to a mime type
func audioContentType(format string) string {
	if ct := mime.TypeByExtension("." + format); ct != "" {
		return ct
	}
	return "audio/mpeg"
}
