package content

import (
	"io"
	"io/fs"
	"os"
	p "path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"github.com/pkg/errors"
	"gitlab.com/go-utilities/hash"
	"gitlab.com/mipimipi/daapsrv/src/internal/config"
)

// audioExts contains the file extensions of the audio formats that daapsrv
// serves
var audioExts = map[string]struct{}{
	".aac":  {},
	".flac": {},
	".m4a":  {},
	".m4b":  {},
	".mp3":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
}

// IsValidTrackFile returns true if path has a supported audio extension
func IsValidTrackFile(path string) bool {
	_, ok := audioExts[strings.ToLower(p.Ext(path))]
	return ok
}

// IsValidPlaylistFile returns true if path is a supported playlist file
func IsValidPlaylistFile(path string) bool {
	return strings.ToLower(p.Ext(path)) == ".m3u"
}

// FSLibrary implements Library on top of a set of music directories. Track
// and playlist ids are assigned on first observation of a path and stay
// stable across rescans while the server runs
type FSLibrary struct {
	mu   sync.RWMutex
	cfg  *config.Cfg
	dbID uint32

	tracks     []*Track
	tracksByID map[uint32]*Track

	playlists     []*Playlist
	playlistsByID map[uint32]*Playlist

	// id allocation state, kept across rescans so that ids are stable
	trackIDsByPath    map[string]uint32
	playlistIDsByPath map[string]uint32
	nextTrackID       uint32
	nextPlaylistID    uint32

	mutCallbacks sync.Mutex
	callbacks    []func()
}

// NewFSLibrary creates a filesystem library and performs the initial scan
func NewFSLibrary(cfg *config.Cfg) (lib *FSLibrary, err error) {
	log.Trace("creating filesystem library ...")

	lib = &FSLibrary{
		cfg:               cfg,
		dbID:              1,
		tracksByID:        make(map[uint32]*Track),
		playlistsByID:     make(map[uint32]*Playlist),
		trackIDsByPath:    make(map[string]uint32),
		playlistIDsByPath: make(map[string]uint32),
		nextTrackID:       1,
		nextPlaylistID:    BasePlaylistID + 1,
	}
	if _, err = lib.Rescan(); err != nil {
		err = errors.Wrap(err, "cannot create filesystem library")
		return nil, err
	}

	log.Trace("filesystem library created")
	return
}

// DatabaseID returns the id of the single database that is served
func (me *FSLibrary) DatabaseID() uint32 { return me.dbID }

// DatabaseName returns the display name of the database
func (me *FSLibrary) DatabaseName() string { return me.cfg.Name }

// Tracks returns a snapshot of all tracks in library order
func (me *FSLibrary) Tracks() []*Track {
	me.mu.RLock()
	defer me.mu.RUnlock()
	ts := make([]*Track, len(me.tracks))
	copy(ts, me.tracks)
	return ts
}

// LookupTrack returns the track with the given id, or nil
func (me *FSLibrary) LookupTrack(id uint32) *Track {
	me.mu.RLock()
	defer me.mu.RUnlock()
	return me.tracksByID[id]
}

// Playlists returns a snapshot of all playlists, the base playlist first
func (me *FSLibrary) Playlists() []*Playlist {
	me.mu.RLock()
	defer me.mu.RUnlock()
	pls := make([]*Playlist, 0, len(me.playlists)+1)
	pls = append(pls, me.basePlaylist())
	pls = append(pls, me.playlists...)
	return pls
}

// LookupPlaylist returns the playlist with the given id, or nil. The base
// playlist with id BasePlaylistID always exists
func (me *FSLibrary) LookupPlaylist(id uint32) *Playlist {
	me.mu.RLock()
	defer me.mu.RUnlock()
	if id == BasePlaylistID {
		return me.basePlaylist()
	}
	return me.playlistsByID[id]
}

// basePlaylist synthesizes the "all tracks" container. Callers must hold the
// lock
func (me *FSLibrary) basePlaylist() *Playlist {
	ids := make([]uint32, len(me.tracks))
	for i, t := range me.tracks {
		ids[i] = t.ID
	}
	return &Playlist{ID: BasePlaylistID, Name: me.cfg.Name, TrackIDs: ids}
}

// OpenAudio opens the audio file of a track for streaming
func (me *FSLibrary) OpenAudio(t *Track) (r io.ReadSeeker, length int64, err error) {
	f, err := os.Open(t.Path)
	if err != nil {
		err = errors.Wrapf(err, "cannot open audio file '%s'", t.Path)
		log.Error(err)
		return
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		err = errors.Wrapf(err, "cannot stat audio file '%s'", t.Path)
		log.Error(err)
		return
	}
	return f, info.Size(), nil
}

// OnChange registers a callback that is invoked after a rescan detected
// library mutations
func (me *FSLibrary) OnChange(cb func()) {
	me.mutCallbacks.Lock()
	defer me.mutCallbacks.Unlock()
	me.callbacks = append(me.callbacks, cb)
}

// Close releases library resources. The watcher has its own lifecycle via
// Run's context
func (me *FSLibrary) Close() error { return nil }

// notifyChange invokes the registered change callbacks
func (me *FSLibrary) notifyChange() {
	me.mutCallbacks.Lock()
	cbs := make([]func(), len(me.callbacks))
	copy(cbs, me.callbacks)
	me.mutCallbacks.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// Rescan walks all configured music directories and rebuilds tracks and
// playlists. changed reports whether the library content differs from the
// previous scan
func (me *FSLibrary) Rescan() (changed bool, err error) {
	log.Trace("scanning ...")

	var trackPaths, playlistPaths []string
	for _, dir := range me.cfg.Cnt.MusicDirs {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Error(errors.Wrapf(err, "cannot walk '%s'", path))
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if IsValidTrackFile(path) {
				trackPaths = append(trackPaths, path)
			}
			if IsValidPlaylistFile(path) {
				playlistPaths = append(playlistPaths, path)
			}
			return nil
		})
		if err != nil {
			err = errors.Wrapf(err, "cannot scan music directory '%s'", dir)
			return
		}
	}
	sort.Strings(trackPaths)
	sort.Strings(playlistPaths)

	tracks := make([]*Track, 0, len(trackPaths))
	tracksByID := make(map[uint32]*Track, len(trackPaths))

	me.mu.Lock()
	defer me.mu.Unlock()

	for _, path := range trackPaths {
		t := me.trackFromFile(path)
		if t == nil {
			continue
		}
		tracks = append(tracks, t)
		tracksByID[t.ID] = t
	}

	trackIDByPath := func(path string) (uint32, bool) {
		id, ok := me.trackIDsByPath[path]
		if !ok {
			return 0, false
		}
		_, ok = tracksByID[id]
		return id, ok
	}

	playlists := make([]*Playlist, 0, len(playlistPaths))
	playlistsByID := make(map[uint32]*Playlist, len(playlistPaths))
	for _, path := range playlistPaths {
		pl, err := me.playlistFromFile(path, trackIDByPath)
		if err != nil {
			log.Error(err)
			continue
		}
		playlists = append(playlists, pl)
		playlistsByID[pl.ID] = pl
	}

	changed = libraryChanged(me.tracks, tracks) || playlistsChanged(me.playlists, playlists)

	me.tracks = tracks
	me.tracksByID = tracksByID
	me.playlists = playlists
	me.playlistsByID = playlistsByID

	log.Tracef("scanning done: %d tracks, %d playlists", len(tracks), len(playlists))
	return
}

// trackFromFile builds a track from an audio file. Tag read errors are not
// fatal: the track is still served with the file name as title. Callers must
// hold the lock
func (me *FSLibrary) trackFromFile(path string) *Track {
	id, ok := me.trackIDsByPath[path]
	if !ok {
		id = me.nextTrackID
		me.nextTrackID++
		me.trackIDsByPath[path] = id
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Error(errors.Wrapf(err, "cannot stat track file '%s'", path))
		return nil
	}

	t := &Track{
		ID:           id,
		PersistentID: hash.HashUint64("%s", path),
		Title:        strings.TrimSuffix(p.Base(path), p.Ext(path)),
		Format:       strings.TrimPrefix(strings.ToLower(p.Ext(path)), "."),
		Size:         uint32(info.Size()),
		Path:         path,
	}

	f, err := os.Open(path)
	if err != nil {
		log.Error(errors.Wrapf(err, "cannot open track file '%s'", path))
		return t
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		log.Tracef("no tags in '%s': %v", path, err)
		return t
	}
	if meta.Title() != "" {
		t.Title = meta.Title()
	}
	t.Artist = meta.Artist()
	t.Album = meta.Album()
	t.Genre = meta.Genre()
	t.Year = uint16(meta.Year())
	trackNo, trackCount := meta.Track()
	t.TrackNo, t.TrackCount = uint16(trackNo), uint16(trackCount)
	discNo, discCount := meta.Disc()
	t.DiscNo, t.DiscCount = uint16(discNo), uint16(discCount)
	t.HasArtwork = meta.Picture() != nil

	return t
}

// libraryChanged reports whether two track lists differ in ids or metadata
// relevant to clients
func libraryChanged(old, new []*Track) bool {
	if len(old) != len(new) {
		return true
	}
	for i := range old {
		if old[i].ID != new[i].ID || old[i].Size != new[i].Size || old[i].Title != new[i].Title {
			return true
		}
	}
	return false
}

// playlistsChanged reports whether two playlist lists differ
func playlistsChanged(old, new []*Playlist) bool {
	if len(old) != len(new) {
		return true
	}
	for i := range old {
		if old[i].ID != new[i].ID || old[i].Name != new[i].Name || len(old[i].TrackIDs) != len(new[i].TrackIDs) {
			return true
		}
		for j := range old[i].TrackIDs {
			if old[i].TrackIDs[j] != new[i].TrackIDs[j] {
				return true
			}
		}
	}
	return false
}
