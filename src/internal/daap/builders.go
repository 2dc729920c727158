package daap

import (
	"strings"

	"gitlab.com/mipimipi/daapsrv/src/internal/config"
	"gitlab.com/mipimipi/daapsrv/src/internal/content"
	"gitlab.com/mipimipi/daapsrv/src/internal/dmap"
)

// protocol versions reported in /server-info
const (
	dmapVersionMajor = 2
	daapVersionMajor = 3
)

// update types (muty)
const (
	updateTypeFull  = 0
	updateTypeDelta = 1
)

// authMethodNumber maps the configured auth method to the msau wire value
func authMethodNumber(m config.AuthMethod) uint64 {
	switch m {
	case config.AuthUserPass:
		return 1
	case config.AuthPassword:
		return 2
	}
	return 0
}

// serverInfoTree builds the /server-info response
func serverInfoTree(name string, auth config.AuthMethod, timeoutSecs uint32) *dmap.Node {
	loginRequired := uint64(0)
	if auth != config.AuthNone {
		loginRequired = 1
	}
	return dmap.Ctr("msrv",
		dmap.Num("mstt", 200),
		dmap.Version("mpro", dmapVersionMajor, 0),
		dmap.Version("apro", daapVersionMajor, 0),
		dmap.Str("minm", name),
		dmap.Num("mslr", loginRequired),
		dmap.Num("msau", authMethodNumber(auth)),
		dmap.Num("mstm", uint64(timeoutSecs)),
		dmap.Num("msal", 1),
		dmap.Num("msup", 1),
		dmap.Num("mspi", 1),
		dmap.Num("msex", 1),
		dmap.Num("msbr", 1),
		dmap.Num("msqy", 1),
		dmap.Num("msix", 1),
		dmap.Num("msrs", 1),
		dmap.Num("msdc", 1),
	)
}

// contentCodesTree builds the /content-codes response: one mdcl dictionary
// per registered code with its numeric code, long name and type
func contentCodesTree() *dmap.Node {
	tree := dmap.Ctr("mccr", dmap.Num("mstt", 200))
	for _, def := range dmap.Codes() {
		code := uint64(def.Code[0])<<24 | uint64(def.Code[1])<<16 | uint64(def.Code[2])<<8 | uint64(def.Code[3])
		tree.Add(dmap.Ctr("mdcl",
			dmap.Num("mcnm", code),
			dmap.Str("mcna", def.Name),
			dmap.Num("mcty", uint64(dmap.TypeNumber(def.Kind))),
		))
	}
	return tree
}

// loginTree builds the /login response
func loginTree(sessionID uint32) *dmap.Node {
	return dmap.Ctr("mlog",
		dmap.Num("mstt", 200),
		dmap.Num("mlid", uint64(sessionID)),
	)
}

// updateTree builds the /update response
func updateTree(rev uint32) *dmap.Node {
	return dmap.Ctr("mupd",
		dmap.Num("mstt", 200),
		dmap.Num("musr", uint64(rev)),
	)
}

// databasesTree builds the /databases response listing the single database
func databasesTree(dbID uint32, name string, trackCount, playlistCount int) *dmap.Node {
	return dmap.Ctr("avdb",
		dmap.Num("mstt", 200),
		dmap.Num("muty", updateTypeFull),
		dmap.Num("mtco", 1),
		dmap.Num("mrco", 1),
		dmap.Ctr("mlcl",
			dmap.Ctr("mlit",
				dmap.Num("miid", uint64(dbID)),
				dmap.Num("mper", uint64(dbID)),
				dmap.Str("minm", name),
				dmap.Num("mimc", uint64(trackCount)),
				dmap.Num("mctc", uint64(playlistCount)),
			),
		),
	)
}

// trackField emits one per-track metadata node, or nil if the track has no
// value for it
type trackField func(*content.Track) *dmap.Node

// trackFields maps DMAP names to field emitters; the meta query parameter
// selects from this table. The iteration order of emitted fields is the
// order of trackFieldOrder so that identical requests produce byte-identical
// responses
var trackFields = map[string]trackField{
	"dmap.itemkind":         func(t *content.Track) *dmap.Node { return dmap.Num("mikd", 2) },
	"dmap.itemid":           func(t *content.Track) *dmap.Node { return dmap.Num("miid", uint64(t.ID)) },
	"dmap.itemname":         func(t *content.Track) *dmap.Node { return dmap.Str("minm", t.Title) },
	"dmap.persistentid":     func(t *content.Track) *dmap.Node { return dmap.Num("mper", t.PersistentID) },
	"daap.songalbum":        func(t *content.Track) *dmap.Node { return strOrNil("asal", t.Album) },
	"daap.songartist":       func(t *content.Track) *dmap.Node { return strOrNil("asar", t.Artist) },
	"daap.songgenre":        func(t *content.Track) *dmap.Node { return strOrNil("asgn", t.Genre) },
	"daap.songformat":       func(t *content.Track) *dmap.Node { return strOrNil("asfm", t.Format) },
	"daap.songbitrate":      func(t *content.Track) *dmap.Node { return numOrNil("asbr", uint64(t.Bitrate)) },
	"daap.songsize":         func(t *content.Track) *dmap.Node { return numOrNil("assz", uint64(t.Size)) },
	"daap.songtime":         func(t *content.Track) *dmap.Node { return numOrNil("astm", uint64(t.Duration)) },
	"daap.songtracknumber":  func(t *content.Track) *dmap.Node { return numOrNil("astn", uint64(t.TrackNo)) },
	"daap.songtrackcount":   func(t *content.Track) *dmap.Node { return numOrNil("astc", uint64(t.TrackCount)) },
	"daap.songdiscnumber":   func(t *content.Track) *dmap.Node { return numOrNil("asdn", uint64(t.DiscNo)) },
	"daap.songdisccount":    func(t *content.Track) *dmap.Node { return numOrNil("asdc", uint64(t.DiscCount)) },
	"daap.songyear":         func(t *content.Track) *dmap.Node { return numOrNil("asyr", uint64(t.Year)) },
	"daap.songcompilation":  func(t *content.Track) *dmap.Node { return boolOrNil("asco", t.Compilation) },
	"daap.songdatakind":     func(t *content.Track) *dmap.Node { return dmap.Num("asdk", 0) },
	"daap.songdisabled":     func(t *content.Track) *dmap.Node { return dmap.Num("asdb", 0) },
	"daap.songuserrating":   func(t *content.Track) *dmap.Node { return dmap.Num("asur", 0) },
	"daap.songdescription":  func(t *content.Track) *dmap.Node { return strOrNil("asdt", "") },
	"daap.songeqpreset":     func(t *content.Track) *dmap.Node { return strOrNil("aseq", "") },
	"daap.songcomment":      func(t *content.Track) *dmap.Node { return strOrNil("ascm", "") },
	"daap.songsamplerate":   func(t *content.Track) *dmap.Node { return numOrNil("assr", 0) },
	"daap.songstarttime":    func(t *content.Track) *dmap.Node { return numOrNil("asst", 0) },
	"daap.songstoptime":     func(t *content.Track) *dmap.Node { return numOrNil("assp", 0) },
	"daap.songrelativevolume": func(t *content.Track) *dmap.Node { return numOrNil("asrv", 0) },
}

// trackFieldOrder fixes the emission order of track fields
var trackFieldOrder = []string{
	"dmap.itemkind",
	"dmap.itemid",
	"dmap.itemname",
	"dmap.persistentid",
	"daap.songalbum",
	"daap.songartist",
	"daap.songbitrate",
	"daap.songcomment",
	"daap.songcompilation",
	"daap.songdatakind",
	"daap.songdescription",
	"daap.songdisabled",
	"daap.songdisccount",
	"daap.songdiscnumber",
	"daap.songeqpreset",
	"daap.songformat",
	"daap.songgenre",
	"daap.songrelativevolume",
	"daap.songsamplerate",
	"daap.songsize",
	"daap.songstarttime",
	"daap.songstoptime",
	"daap.songtime",
	"daap.songtrackcount",
	"daap.songtracknumber",
	"daap.songuserrating",
	"daap.songyear",
}

func strOrNil(code, s string) *dmap.Node {
	if s == "" {
		return nil
	}
	return dmap.Str(code, s)
}

func numOrNil(code string, v uint64) *dmap.Node {
	if v == 0 {
		return nil
	}
	return dmap.Num(code, v)
}

func boolOrNil(code string, v bool) *dmap.Node {
	if !v {
		return nil
	}
	return dmap.Num(code, 1)
}

// parseMeta resolves the comma-separated meta query parameter to the selected
// field names in canonical order. Unknown names are silently ignored. An
// empty meta selects the default field set
func parseMeta(meta string) []string {
	if meta == "" {
		return trackFieldOrder
	}
	wanted := make(map[string]struct{})
	for _, name := range strings.Split(meta, ",") {
		name = strings.TrimSpace(name)
		if _, known := trackFields[name]; known {
			wanted[name] = struct{}{}
		}
	}
	selected := make([]string, 0, len(wanted))
	for _, name := range trackFieldOrder {
		if _, ok := wanted[name]; ok {
			selected = append(selected, name)
		}
	}
	return selected
}

// trackListingTree builds the /databases/{db}/items response. delta selects
// the update type; deleted, if non-empty, is emitted as a mudl deletion
// listing
func trackListingTree(tracks []*content.Track, meta string, delta bool, deleted []uint32) *dmap.Node {
	fields := parseMeta(meta)

	listing := dmap.Ctr("mlcl")
	for _, t := range tracks {
		item := dmap.Ctr("mlit")
		for _, name := range fields {
			item.Add(trackFields[name](t))
		}
		listing.Add(item)
	}

	updateType := uint64(updateTypeFull)
	if delta {
		updateType = updateTypeDelta
	}
	return dmap.Ctr("adbs",
		dmap.Num("mstt", 200),
		dmap.Num("muty", updateType),
		dmap.Num("mtco", uint64(len(tracks))),
		dmap.Num("mrco", uint64(len(tracks))),
		listing,
		deletionTree(deleted),
	)
}

// playlistListingTree builds the /databases/{db}/containers response
func playlistListingTree(pls []*content.Playlist) *dmap.Node {
	listing := dmap.Ctr("mlcl")
	for _, pl := range pls {
		item := dmap.Ctr("mlit",
			dmap.Num("miid", uint64(pl.ID)),
			dmap.Num("mper", uint64(pl.ID)),
			dmap.Str("minm", pl.Name),
			dmap.Num("mimc", uint64(len(pl.TrackIDs))),
		)
		if pl.ID == content.BasePlaylistID {
			item.Add(dmap.Num("abpl", 1))
		}
		listing.Add(item)
	}
	return dmap.Ctr("aply",
		dmap.Num("mstt", 200),
		dmap.Num("muty", updateTypeFull),
		dmap.Num("mtco", uint64(len(pls))),
		dmap.Num("mrco", uint64(len(pls))),
		listing,
	)
}

// containerItemsTree builds the /databases/{db}/containers/{pl}/items
// response: one entry per playlist membership with item id and container id
func containerItemsTree(entries []ContainerEntry, delta bool, deleted []uint32) *dmap.Node {
	listing := dmap.Ctr("mlcl")
	for _, e := range entries {
		listing.Add(dmap.Ctr("mlit",
			dmap.Num("mikd", 2),
			dmap.Num("miid", uint64(e.ItemID)),
			dmap.Num("mcti", uint64(e.ContainerID)),
		))
	}

	updateType := uint64(updateTypeFull)
	if delta {
		updateType = updateTypeDelta
	}
	return dmap.Ctr("apso",
		dmap.Num("mstt", 200),
		dmap.Num("muty", updateType),
		dmap.Num("mtco", uint64(len(entries))),
		dmap.Num("mrco", uint64(len(entries))),
		listing,
		deletionTree(deleted),
	)
}

// deletionTree builds a mudl deletion listing, or nil if nothing was deleted
func deletionTree(ids []uint32) *dmap.Node {
	if len(ids) == 0 {
		return nil
	}
	tree := dmap.Ctr("mudl")
	for _, id := range ids {
		tree.Add(dmap.Num("miid", uint64(id)))
	}
	return tree
}
