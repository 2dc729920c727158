package daap

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/mipimipi/daapsrv/src/internal/config"
	"gitlab.com/mipimipi/daapsrv/src/internal/content"
	"gitlab.com/mipimipi/daapsrv/src/internal/dmap"
)

// fakeLibrary implements content.Library for tests
type fakeLibrary struct {
	mu        sync.Mutex
	name      string
	tracks    []*content.Track
	playlists []*content.Playlist
	audio     map[uint32][]byte
	artwork   map[uint32]*content.Artwork
	callbacks []func()
}

func newFakeLibrary(name string) *fakeLibrary {
	return &fakeLibrary{
		name:    name,
		audio:   make(map[uint32][]byte),
		artwork: make(map[uint32]*content.Artwork),
	}
}

func (me *fakeLibrary) DatabaseID() uint32 { return 1 }

func (me *fakeLibrary) DatabaseName() string { return me.name }

func (me *fakeLibrary) Close() error { return nil }

func (me *fakeLibrary) OnChange(cb func()) { me.callbacks = append(me.callbacks, cb) }

func (me *fakeLibrary) Tracks() []*content.Track {
	me.mu.Lock()
	defer me.mu.Unlock()
	ts := make([]*content.Track, len(me.tracks))
	copy(ts, me.tracks)
	return ts
}

func (me *fakeLibrary) LookupTrack(id uint32) *content.Track {
	me.mu.Lock()
	defer me.mu.Unlock()
	for _, t := range me.tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (me *fakeLibrary) Playlists() []*content.Playlist {
	me.mu.Lock()
	defer me.mu.Unlock()
	pls := []*content.Playlist{me.baseLocked()}
	pls = append(pls, me.playlists...)
	return pls
}

func (me *fakeLibrary) LookupPlaylist(id uint32) *content.Playlist {
	me.mu.Lock()
	defer me.mu.Unlock()
	if id == content.BasePlaylistID {
		return me.baseLocked()
	}
	for _, pl := range me.playlists {
		if pl.ID == id {
			return pl
		}
	}
	return nil
}

func (me *fakeLibrary) baseLocked() *content.Playlist {
	ids := make([]uint32, len(me.tracks))
	for i, t := range me.tracks {
		ids[i] = t.ID
	}
	return &content.Playlist{ID: content.BasePlaylistID, Name: me.name, TrackIDs: ids}
}

func (me *fakeLibrary) OpenAudio(t *content.Track) (io.ReadSeeker, int64, error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	data, ok := me.audio[t.ID]
	if !ok {
		return nil, 0, fmt.Errorf("no audio for track %d", t.ID)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

func (me *fakeLibrary) Artwork(t *content.Track) (*content.Artwork, error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.artwork[t.ID], nil
}

// setTracks replaces the track set without notifying
func (me *fakeLibrary) setTracks(ids ...uint32) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.tracks = nil
	for _, id := range ids {
		me.tracks = append(me.tracks, &content.Track{
			ID:     id,
			Title:  fmt.Sprintf("track %d", id),
			Format: "mp3",
		})
	}
}

// change replaces the track set and fires the change callbacks
func (me *fakeLibrary) change(ids ...uint32) {
	me.setTracks(ids...)
	for _, cb := range me.callbacks {
		cb()
	}
}

// testCfg returns a config for tests. The port 0 makes the kernel pick one
func testCfg() *config.Cfg {
	cfg := &config.Cfg{Name: "Test"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	return cfg
}

// startServer brings up a DAAP server on a kernel-picked port
func startServer(t *testing.T, cfg *config.Cfg, lib content.Library) (srv *Server, addr string) {
	t.Helper()
	srv = New(cfg, lib)
	require.NoError(t, srv.web.listen(0))
	srv.running.Store(true)
	go srv.web.serve()
	t.Cleanup(srv.Stop)
	return srv, fmt.Sprintf("127.0.0.1:%d", srv.web.port())
}

// response is one parsed raw HTTP response
type response struct {
	status  int
	headers map[string]string
	body    []byte
}

// get opens a fresh connection, performs one request and parses the response
func get(t *testing.T, addr, target string, headers ...string) response {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	return getOn(t, conn, target, headers...)
}

// getOn performs one request on an existing connection
func getOn(t *testing.T, conn net.Conn, target string, headers ...string) response {
	t.Helper()

	var req strings.Builder
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\n", target)
	for i := 0; i+1 < len(headers); i += 2 {
		fmt.Fprintf(&req, "%s: %s\r\n", headers[i], headers[i+1])
	}
	req.WriteString("\r\n")
	_, err := io.WriteString(conn, req.String())
	require.NoError(t, err)

	return readResponse(t, bufio.NewReader(conn))
}

func readResponse(t *testing.T, r *bufio.Reader) response {
	t.Helper()

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	parts := strings.SplitN(strings.TrimRight(line, "\r\n"), " ", 3)
	require.GreaterOrEqual(t, len(parts), 2, "status line: %q", line)
	status, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	headers := make(map[string]string)
	for {
		line, err = r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, _ := strings.Cut(line, ":")
		headers[strings.ToLower(name)] = strings.TrimSpace(value)
	}

	length, err := strconv.Atoi(headers["content-length"])
	require.NoError(t, err)
	body := make([]byte, length)
	_, err = io.ReadFull(r, body)
	require.NoError(t, err)

	return response{status: status, headers: headers, body: body}
}

// dmapBody decodes a response body as a DMAP tree
func dmapBody(t *testing.T, resp response) *dmap.Node {
	t.Helper()
	require.Equal(t, "application/x-dmap-tagged", resp.headers["content-type"])
	tree, err := dmap.Decode(resp.body)
	require.NoError(t, err)
	return tree
}

// login performs /login and returns the issued session id
func login(t *testing.T, addr string, headers ...string) uint32 {
	t.Helper()
	resp := get(t, addr, "/login", headers...)
	require.Equal(t, 200, resp.status)
	tree := dmapBody(t, resp)
	require.Equal(t, "mlog", tree.Code)
	sid := tree.Child("mlid")
	require.NotNil(t, sid)
	return uint32(sid.Num)
}
