package content

import (
	"bytes"
	"os"

	"github.com/dhowden/tag"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// artwork larger than this (in either dimension) is downscaled before it is
// sent to clients
const maxArtworkDim = 600

// Artwork extracts the cover art embedded in a track's audio file. Large
// pictures are downscaled and re-encoded as JPEG; small JPEG and PNG pictures
// pass through untouched. Returns nil if the track has no artwork
func (me *FSLibrary) Artwork(t *Track) (aw *Artwork, err error) {
	f, err := os.Open(t.Path)
	if err != nil {
		err = errors.Wrapf(err, "cannot open track file '%s' for artwork", t.Path)
		log.Error(err)
		return
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		err = errors.Wrapf(err, "cannot read tags of '%s' for artwork", t.Path)
		log.Error(err)
		return
	}
	pic := meta.Picture()
	if pic == nil {
		return nil, nil
	}

	img, err := imaging.Decode(bytes.NewReader(pic.Data))
	if err != nil {
		err = errors.Wrapf(err, "cannot decode artwork of '%s'", t.Path)
		log.Error(err)
		return
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxArtworkDim && bounds.Dy() <= maxArtworkDim {
		switch pic.Ext {
		case "jpg", "jpeg":
			return &Artwork{Data: pic.Data, Mime: "jpeg"}, nil
		case "png":
			return &Artwork{Data: pic.Data, Mime: "png"}, nil
		}
	}

	img = imaging.Fit(img, maxArtworkDim, maxArtworkDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err = imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		err = errors.Wrapf(err, "cannot encode artwork of '%s'", t.Path)
		log.Error(err)
		return
	}
	return &Artwork{Data: buf.Bytes(), Mime: "jpeg"}, nil
}
