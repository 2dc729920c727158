package dmap

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Decode parses one encoded node tree. The server core itself never decodes;
// the decoder exists so that encoded responses can be verified. A container
// whose declared length does not exactly cover its children is rejected
func Decode(b []byte) (n *Node, err error) {
	var rest []byte
	if n, rest, err = decode(b); err != nil {
		err = errors.Wrap(err, "cannot decode DMAP data")
		return
	}
	if len(rest) > 0 {
		n, err = nil, fmt.Errorf("%d trailing bytes after DMAP node", len(rest))
	}
	return
}

func decode(b []byte) (n *Node, rest []byte, err error) {
	if len(b) < 8 {
		err = fmt.Errorf("truncated node header: %d bytes", len(b))
		return
	}
	code := string(b[:4])
	l := int(binary.BigEndian.Uint32(b[4:8]))
	if len(b) < 8+l {
		err = fmt.Errorf("node '%s' declares %d body bytes but only %d remain", code, l, len(b)-8)
		return
	}
	body := b[8 : 8+l]
	rest = b[8+l:]

	kind, ok := KindOf(code)
	if !ok {
		err = fmt.Errorf("content code '%s' is not registered", code)
		return
	}

	n = &Node{Code: code}
	switch kind {
	case KindString:
		n.Str = string(body)
	case KindContainer:
		for len(body) > 0 {
			var kid *Node
			if kid, body, err = decode(body); err != nil {
				n = nil
				return
			}
			n.Kids = append(n.Kids, kid)
		}
	default:
		w := kind.width()
		if w == 0 {
			n.Raw = append([]byte(nil), body...)
			break
		}
		if len(body) != w {
			n, err = nil, fmt.Errorf("node '%s' has body length %d, want %d", code, len(body), w)
			return
		}
		switch w {
		case 1:
			n.Num = uint64(body[0])
		case 2:
			n.Num = uint64(binary.BigEndian.Uint16(body))
		case 4:
			n.Num = uint64(binary.BigEndian.Uint32(body))
		case 8:
			n.Num = binary.BigEndian.Uint64(body)
		}
	}
	return
}
