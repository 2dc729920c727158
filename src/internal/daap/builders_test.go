package daap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/mipimipi/daapsrv/src/internal/config"
	"gitlab.com/mipimipi/daapsrv/src/internal/content"
	"gitlab.com/mipimipi/daapsrv/src/internal/dmap"
)

func TestServerInfoTree(t *testing.T) {
	tree := serverInfoTree("Test", config.AuthNone, 1800)
	require.Equal(t, "msrv", tree.Code)

	assert.EqualValues(t, 200, tree.Child("mstt").Num)
	assert.Equal(t, "Test", tree.Child("minm").Str)
	assert.EqualValues(t, 0, tree.Child("mslr").Num)
	assert.EqualValues(t, 0, tree.Child("msau").Num)
	assert.EqualValues(t, 1800, tree.Child("mstm").Num)
	assert.EqualValues(t, 1, tree.Child("msdc").Num)

	tree = serverInfoTree("Test", config.AuthPassword, 1800)
	assert.EqualValues(t, 1, tree.Child("mslr").Num)
	assert.EqualValues(t, 2, tree.Child("msau").Num)
}

func TestContentCodesTree(t *testing.T) {
	tree := contentCodesTree()
	require.Equal(t, "mccr", tree.Code)
	assert.EqualValues(t, 200, tree.Child("mstt").Num)

	// every registered code appears as a dictionary with number, name, type
	byName := make(map[string]*dmap.Node)
	for _, kid := range tree.Kids {
		if kid.Code != "mdcl" {
			continue
		}
		byName[kid.Child("mcna").Str] = kid
	}
	for _, name := range []string{"dmap.itemid", "dmap.itemname", "dmap.status"} {
		require.Contains(t, byName, name)
	}

	miid := byName["dmap.itemid"]
	assert.EqualValues(t, uint32('m')<<24|uint32('i')<<16|uint32('i')<<8|uint32('d'), miid.Child("mcnm").Num)
	assert.EqualValues(t, 6, miid.Child("mcty").Num)

	// the whole bag must encode
	_, err := dmap.Encode(tree)
	require.NoError(t, err)
}

func TestLoginAndUpdateTrees(t *testing.T) {
	tree := loginTree(4711)
	require.Equal(t, "mlog", tree.Code)
	assert.EqualValues(t, 200, tree.Child("mstt").Num)
	assert.EqualValues(t, 4711, tree.Child("mlid").Num)

	tree = updateTree(2)
	require.Equal(t, "mupd", tree.Code)
	assert.EqualValues(t, 2, tree.Child("musr").Num)
}

func TestDatabasesTree(t *testing.T) {
	tree := databasesTree(1, "Test", 3, 2)
	require.Equal(t, "avdb", tree.Code)
	assert.EqualValues(t, 1, tree.Child("mtco").Num)
	assert.EqualValues(t, 1, tree.Child("mrco").Num)

	listing := tree.Child("mlcl")
	require.NotNil(t, listing)
	require.Len(t, listing.Kids, 1)
	db := listing.Kids[0]
	assert.EqualValues(t, 1, db.Child("miid").Num)
	assert.Equal(t, "Test", db.Child("minm").Str)
	assert.EqualValues(t, 3, db.Child("mimc").Num)
	assert.EqualValues(t, 2, db.Child("mctc").Num)
}

func testTracks() []*content.Track {
	return []*content.Track{
		{ID: 1, Title: "one", Artist: "a", Album: "x", Format: "mp3", Size: 100},
		{ID: 2, Title: "two", Artist: "b", Album: "y", Format: "mp3", Size: 200},
		{ID: 3, Title: "three", Artist: "c", Album: "z", Format: "mp3", Size: 300},
	}
}

func TestTrackListingMetaSelection(t *testing.T) {
	tree := trackListingTree(testTracks(), "dmap.itemid,dmap.itemname", false, nil)
	require.Equal(t, "adbs", tree.Code)
	assert.EqualValues(t, updateTypeFull, tree.Child("muty").Num)
	assert.EqualValues(t, 3, tree.Child("mtco").Num)
	assert.EqualValues(t, 3, tree.Child("mrco").Num)
	assert.Nil(t, tree.Child("mudl"))

	listing := tree.Child("mlcl")
	require.Len(t, listing.Kids, 3)
	for _, item := range listing.Kids {
		require.Equal(t, "mlit", item.Code)
		// exactly the selected fields are emitted
		require.Len(t, item.Kids, 2)
		assert.Equal(t, "miid", item.Kids[0].Code)
		assert.Equal(t, "minm", item.Kids[1].Code)
	}
}

func TestTrackListingUnknownMetaIgnored(t *testing.T) {
	tree := trackListingTree(testTracks(), "dmap.itemid,com.example.bogus", false, nil)
	item := tree.Child("mlcl").Kids[0]
	require.Len(t, item.Kids, 1)
	assert.Equal(t, "miid", item.Kids[0].Code)
}

func TestTrackListingDelta(t *testing.T) {
	tracks := testTracks()[:2]
	tree := trackListingTree(tracks, "dmap.itemid", true, []uint32{3})
	assert.EqualValues(t, updateTypeDelta, tree.Child("muty").Num)
	assert.EqualValues(t, 2, tree.Child("mtco").Num)

	mudl := tree.Child("mudl")
	require.NotNil(t, mudl)
	require.Len(t, mudl.Kids, 1)
	assert.EqualValues(t, 3, mudl.Kids[0].Num)
}

func TestTrackListingDeterministic(t *testing.T) {
	b1, err := dmap.Encode(trackListingTree(testTracks(), "", false, nil))
	require.NoError(t, err)
	b2, err := dmap.Encode(trackListingTree(testTracks(), "", false, nil))
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestPlaylistListingTree(t *testing.T) {
	pls := []*content.Playlist{
		{ID: content.BasePlaylistID, Name: "Test", TrackIDs: []uint32{1, 2, 3}},
		{ID: 2, Name: "favs", TrackIDs: []uint32{2}},
	}
	tree := playlistListingTree(pls)
	require.Equal(t, "aply", tree.Code)

	listing := tree.Child("mlcl")
	require.Len(t, listing.Kids, 2)
	base := listing.Kids[0]
	assert.EqualValues(t, 1, base.Child("miid").Num)
	assert.EqualValues(t, 3, base.Child("mimc").Num)
	require.NotNil(t, base.Child("abpl"), "base playlist must be flagged")
	assert.Nil(t, listing.Kids[1].Child("abpl"))
}

func TestContainerItemsTree(t *testing.T) {
	entries := []ContainerEntry{{ItemID: 10, ContainerID: 1}, {ItemID: 30, ContainerID: 3}}
	tree := containerItemsTree(entries, true, []uint32{20})
	require.Equal(t, "apso", tree.Code)
	assert.EqualValues(t, updateTypeDelta, tree.Child("muty").Num)

	listing := tree.Child("mlcl")
	require.Len(t, listing.Kids, 2)
	assert.EqualValues(t, 10, listing.Kids[0].Child("miid").Num)
	assert.EqualValues(t, 1, listing.Kids[0].Child("mcti").Num)
	assert.EqualValues(t, 30, listing.Kids[1].Child("miid").Num)
	assert.EqualValues(t, 3, listing.Kids[1].Child("mcti").Num)

	mudl := tree.Child("mudl")
	require.NotNil(t, mudl)
	assert.EqualValues(t, 20, mudl.Kids[0].Num)
}
