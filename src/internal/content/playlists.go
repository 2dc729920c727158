package content

import (
	"os"
	p "path"
	"strings"

	"github.com/pkg/errors"
	"github.com/ushis/m3u"
	"gitlab.com/go-utilities/file"
)

// playlistFromFile parses an .m3u file into a playlist. Items that do not
// resolve to a known track are skipped. Callers must hold the lock
func (me *FSLibrary) playlistFromFile(path string, trackIDByPath func(string) (uint32, bool)) (pl *Playlist, err error) {
	id, ok := me.playlistIDsByPath[path]
	if !ok {
		id = me.nextPlaylistID
		me.nextPlaylistID++
		me.playlistIDsByPath[path] = id
	}

	f, err := os.Open(path)
	if err != nil {
		err = errors.Wrapf(err, "cannot open playlist file '%s'", path)
		return
	}
	defer f.Close()

	items, err := m3u.Parse(f)
	if err != nil {
		err = errors.Wrapf(err, "cannot parse playlist '%s'", path)
		return
	}

	pl = &Playlist{
		ID:   id,
		Name: strings.TrimSuffix(p.Base(path), p.Ext(path)),
	}

	for _, item := range items {
		itemPath := strings.TrimSpace(item.Path)
		if len(itemPath) == 0 {
			continue
		}
		// external items (http/https) are not served by daapsrv: a DAAP
		// track must be streamable from the library
		if strings.HasPrefix(itemPath, "http://") || strings.HasPrefix(itemPath, "https://") {
			log.Tracef("playlist item '%s' is external: ignore it", itemPath)
			continue
		}
		// relative paths are relative to the playlist file
		if !p.IsAbs(itemPath) {
			dir, _ := p.Split(path)
			itemPath = p.Join(dir, itemPath)
		}
		itemPath = p.Clean(itemPath)

		exists, err := file.Exists(itemPath)
		if err != nil || !exists {
			log.Errorf("playlist item '%s' doesn't exist: ignore it", itemPath)
			continue
		}
		tid, ok := trackIDByPath(itemPath)
		if !ok {
			log.Errorf("playlist item '%s' is not in the library: ignore it", itemPath)
			continue
		}
		pl.TrackIDs = append(pl.TrackIDs, tid)
	}

	return
}
