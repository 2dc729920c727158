package content

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteStatus writes a short library summary to w
func (me *FSLibrary) WriteStatus(w io.Writer) {
	me.mu.RLock()
	tracks, playlists := len(me.tracks), len(me.playlists)
	me.mu.RUnlock()

	pr := message.NewPrinter(language.English)
	pr.Fprintf(w, "Library:\n")
	pr.Fprintf(w, "    %d tracks\n", tracks)
	// the base playlist always exists on top of the playlist files
	pr.Fprintf(w, "    %d playlists\n", playlists+1)
}
