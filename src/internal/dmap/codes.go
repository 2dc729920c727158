package dmap

import "sort"

// CodeDef describes one entry of the content code registry: the 4 byte ASCII
// code, its long DMAP name and its payload kind
type CodeDef struct {
	Code string
	Name string
	Kind Kind
}

// registry maps content codes to their definition. It is the compatibility
// contract with DAAP clients: integer widths on the wire follow from the kind
// registered here
var registry = map[string]CodeDef{}

// Register adds a content code to the registry. Codes must be exactly 4 ASCII
// bytes; re-registering a code overwrites the previous definition
func Register(code, name string, kind Kind) {
	registry[code] = CodeDef{Code: code, Name: name, Kind: kind}
}

// KindOf returns the payload kind of a content code
func KindOf(code string) (Kind, bool) {
	def, ok := registry[code]
	return def.Kind, ok
}

// Codes returns all registered code definitions sorted by code. The order is
// stable so that two content codes responses are byte-identical
func Codes() []CodeDef {
	defs := make([]CodeDef, 0, len(registry))
	for _, def := range registry {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Code < defs[j].Code })
	return defs
}

// TypeNumber returns the numeric type identifier of a kind for the content
// codes listing (mcty)
func TypeNumber(kind Kind) uint16 { return kind.typeNumber() }

// the default code bag. dmap.* codes carry protocol structure, daap.* codes
// carry track metadata
func init() {
	// protocol structure
	Register("mstt", "dmap.status", KindUint32)
	Register("miid", "dmap.itemid", KindUint32)
	Register("minm", "dmap.itemname", KindString)
	Register("mikd", "dmap.itemkind", KindUint8)
	Register("mper", "dmap.persistentid", KindUint64)
	Register("mcon", "dmap.container", KindContainer)
	Register("mcti", "dmap.containeritemid", KindUint32)
	Register("mpco", "dmap.parentcontainerid", KindUint32)
	Register("mimc", "dmap.itemcount", KindUint32)
	Register("mctc", "dmap.containercount", KindUint32)
	Register("mrco", "dmap.returnedcount", KindUint32)
	Register("mtco", "dmap.specifiedtotalcount", KindUint32)
	Register("mlcl", "dmap.listing", KindContainer)
	Register("mlit", "dmap.listingitem", KindContainer)
	Register("mbcl", "dmap.bag", KindContainer)
	Register("mdcl", "dmap.dictionary", KindContainer)
	Register("muty", "dmap.updatetype", KindUint8)
	Register("mudl", "dmap.deletedidlisting", KindContainer)
	Register("msrv", "dmap.serverinforesponse", KindContainer)
	Register("msau", "dmap.authenticationmethod", KindUint8)
	Register("mslr", "dmap.loginrequired", KindUint8)
	Register("mpro", "dmap.protocolversion", KindVersion)
	Register("msal", "dmap.supportsautologout", KindUint8)
	Register("msup", "dmap.supportsupdate", KindUint8)
	Register("mspi", "dmap.supportspersistentids", KindUint8)
	Register("msex", "dmap.supportsextensions", KindUint8)
	Register("msbr", "dmap.supportsbrowse", KindUint8)
	Register("msqy", "dmap.supportsquery", KindUint8)
	Register("msix", "dmap.supportsindex", KindUint8)
	Register("msrs", "dmap.supportsresolve", KindUint8)
	Register("mstm", "dmap.timeoutinterval", KindUint32)
	Register("msdc", "dmap.databasescount", KindUint32)
	Register("mccr", "dmap.contentcodesresponse", KindContainer)
	Register("mcnm", "dmap.contentcodesnumber", KindUint32)
	Register("mcna", "dmap.contentcodesname", KindString)
	Register("mcty", "dmap.contentcodestype", KindUint16)
	Register("mlog", "dmap.loginresponse", KindContainer)
	Register("mlid", "dmap.sessionid", KindUint32)
	Register("mupd", "dmap.updateresponse", KindContainer)
	Register("musr", "dmap.serverrevision", KindUint32)

	// daap protocol structure
	Register("apro", "daap.protocolversion", KindVersion)
	Register("avdb", "daap.serverdatabases", KindContainer)
	Register("adbs", "daap.databasesongs", KindContainer)
	Register("aply", "daap.databaseplaylists", KindContainer)
	Register("apso", "daap.playlistsongs", KindContainer)
	Register("abpl", "daap.baseplaylist", KindUint8)

	// daap track metadata
	Register("asal", "daap.songalbum", KindString)
	Register("asar", "daap.songartist", KindString)
	Register("asbr", "daap.songbitrate", KindUint16)
	Register("ascm", "daap.songcomment", KindString)
	Register("asco", "daap.songcompilation", KindUint8)
	Register("asda", "daap.songdateadded", KindDate)
	Register("asdm", "daap.songdatemodified", KindDate)
	Register("asdc", "daap.songdisccount", KindUint16)
	Register("asdn", "daap.songdiscnumber", KindUint16)
	Register("asdb", "daap.songdisabled", KindUint8)
	Register("asdk", "daap.songdatakind", KindUint8)
	Register("asdt", "daap.songdescription", KindString)
	Register("aseq", "daap.songeqpreset", KindString)
	Register("asfm", "daap.songformat", KindString)
	Register("asgn", "daap.songgenre", KindString)
	Register("asrv", "daap.songrelativevolume", KindInt8)
	Register("assr", "daap.songsamplerate", KindUint32)
	Register("assz", "daap.songsize", KindUint32)
	Register("asst", "daap.songstarttime", KindUint32)
	Register("assp", "daap.songstoptime", KindUint32)
	Register("astm", "daap.songtime", KindUint32)
	Register("astc", "daap.songtrackcount", KindUint16)
	Register("astn", "daap.songtracknumber", KindUint16)
	Register("asur", "daap.songuserrating", KindUint8)
	Register("asyr", "daap.songyear", KindUint16)
}
