package daap

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// stopGrace is how long stop waits for in-flight handlers to finish their
// response before force-closing their connections
const stopGrace = 3 * time.Second

// handlerFunc processes one parsed request. The returned flag requests that
// the connection be closed after the response
type handlerFunc func(w *responseWriter, r *request) (close bool)

// webServer accepts TCP connections and runs the per-connection keep-alive
// loop: parse one request, dispatch it, write the full response, read the
// next. Stop closes the listener and every tracked client connection
type webServer struct {
	serverName string
	handler    handlerFunc

	mu      sync.Mutex
	ln      net.Listener
	clients map[net.Conn]*connState
	running bool
	wg      sync.WaitGroup
}

// connState tracks whether a connection currently has a handler running.
// stop closes idle connections right away but lets busy ones finish their
// response within the grace period
type connState struct {
	busy bool
}

// newWebServer creates a web server dispatching to handler
func newWebServer(serverName string, handler handlerFunc) *webServer {
	return &webServer{
		serverName: serverName,
		handler:    handler,
		clients:    make(map[net.Conn]*connState),
	}
}

// listen binds the TCP port. A port of 0 lets the kernel pick one; the bound
// port is available via port()
func (me *webServer) listen(port int) (err error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		err = errors.Wrapf(err, "cannot listen on port %d", port)
		return
	}
	me.mu.Lock()
	me.ln = ln
	me.running = true
	me.mu.Unlock()
	log.Tracef("listening on %s", ln.Addr())
	return
}

// port returns the actually bound TCP port
func (me *webServer) port() int {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.ln == nil {
		return 0
	}
	return me.ln.Addr().(*net.TCPAddr).Port
}

// serve runs the accept loop until the listener is closed. io errors on a
// single connection never stop the loop
func (me *webServer) serve() {
	me.mu.Lock()
	ln := me.ln
	me.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			me.mu.Lock()
			running := me.running
			me.mu.Unlock()
			if !running {
				return
			}
			log.Error(errors.Wrap(err, "accept failed"))
			continue
		}
		st := me.track(conn)
		if st == nil {
			conn.Close()
			return
		}
		me.wg.Add(1)
		go me.serveConn(conn, st)
	}
}

// track registers a client connection so that stop can close it. Returns
// nil if the server is no longer running
func (me *webServer) track(conn net.Conn) *connState {
	me.mu.Lock()
	defer me.mu.Unlock()
	if !me.running {
		return nil
	}
	st := &connState{}
	me.clients[conn] = st
	return st
}

// untrack removes a client connection
func (me *webServer) untrack(conn net.Conn) {
	me.mu.Lock()
	defer me.mu.Unlock()
	delete(me.clients, conn)
}

// serveConn runs the request loop of one connection. Within a connection
// requests and responses are strictly serialized
func (me *webServer) serveConn(conn net.Conn, st *connState) {
	defer me.wg.Done()
	defer me.untrack(conn)
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := &responseWriter{
		w:          bufio.NewWriter(conn),
		serverName: me.serverName,
	}

	for {
		req, err := readRequest(r, conn.RemoteAddr().String())
		if err != nil {
			if err != io.EOF {
				log.Tracef("connection %s: %v", conn.RemoteAddr(), err)
				// a write failure on an already dead connection is harmless
				_ = w.writeError(http.StatusBadRequest, "bad request")
			}
			return
		}
		if req.method != "GET" {
			_ = w.writeError(http.StatusBadRequest, "bad request")
			return
		}

		log.Tracef("%s %s (%s)", req.method, req.target, req.userAgent)
		me.setBusy(st, true)
		close := me.handler(w, req)
		me.setBusy(st, false)

		if close || req.wantClose || !me.isRunning() {
			return
		}
	}
}

func (me *webServer) setBusy(st *connState, busy bool) {
	me.mu.Lock()
	st.busy = busy
	me.mu.Unlock()
}

func (me *webServer) isRunning() bool {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.running
}

// stop shuts the server down. The listener and all idle client connections
// are closed right away; connections with a running handler get the grace
// period to finish their response, then are force-closed
func (me *webServer) stop() {
	me.mu.Lock()
	me.running = false
	if me.ln != nil {
		me.ln.Close()
	}
	for conn, st := range me.clients {
		if !st.busy {
			conn.Close()
		}
	}
	me.mu.Unlock()

	done := make(chan struct{})
	go func() {
		me.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		me.mu.Lock()
		for conn := range me.clients {
			conn.Close()
		}
		me.mu.Unlock()
		<-done
	}
	log.Trace("web server stopped")
}
