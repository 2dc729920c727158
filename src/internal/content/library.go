// Package content provides the music library that the DAAP protocol core
// serves. The protocol core only depends on the Library interface; the
// filesystem implementation in this package is one provider of it.
package content

import (
	"io"

	l "github.com/sirupsen/logrus"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "content"})

// BasePlaylistID is the id of the base playlist that enumerates all tracks of
// the library. It always exists
const BasePlaylistID uint32 = 1

// Track is one music track of the library. IDs are stable: a track keeps its
// id across library updates and ids are not reused while the server runs
type Track struct {
	ID           uint32
	PersistentID uint64
	Title        string
	Artist       string
	Album        string
	Genre        string
	TrackNo      uint16
	TrackCount   uint16
	DiscNo       uint16
	DiscCount    uint16
	Year         uint16
	Compilation  bool
	Duration     uint32 // ms
	Format       string // file extension hint, e.g. "mp3"
	Bitrate      uint16 // kbit/s
	Size         uint32 // bytes
	Path         string // locator the library can reopen
	HasArtwork   bool
}

// Playlist is an ordered set of track ids. The base playlist with id
// BasePlaylistID contains all tracks
type Playlist struct {
	ID       uint32
	Name     string
	TrackIDs []uint32
}

// Artwork is decoded cover art together with its image mime subtype
// ("jpeg" or "png")
type Artwork struct {
	Data []byte
	Mime string
}

// Library is the capability set the DAAP core consumes. Implementations must
// be safe for concurrent use: the core calls from one goroutine per client
// connection
type Library interface {
	// DatabaseID returns the id of the single database that is served
	DatabaseID() uint32

	// DatabaseName returns the display name of the database
	DatabaseName() string

	// Tracks returns all tracks in library order
	Tracks() []*Track

	// LookupTrack returns the track with the given id, or nil
	LookupTrack(id uint32) *Track

	// Playlists returns all playlists, the base playlist first
	Playlists() []*Playlist

	// LookupPlaylist returns the playlist with the given id, or nil
	LookupPlaylist(id uint32) *Playlist

	// OpenAudio opens the audio file of a track for streaming and returns
	// the stream together with its total length in bytes. The stream must
	// support seeking to honor range requests
	OpenAudio(t *Track) (io.ReadSeeker, int64, error)

	// Artwork returns the cover art of a track, or nil if it has none
	Artwork(t *Track) (*Artwork, error)

	// OnChange registers a callback that is invoked whenever the library
	// mutates. The callback may be invoked from an arbitrary goroutine and
	// must not call back into the library synchronously
	OnChange(func())

	// Close releases watchers and other resources
	Close() error
}
