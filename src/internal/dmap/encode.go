package dmap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Encode serializes a node tree to the wire format: for each node
// code(4B) || big-endian length(4B) || body, where the body of a container is
// the concatenation of its encoded children
func Encode(n *Node) (b []byte, err error) {
	var buf bytes.Buffer
	if err = encode(&buf, n); err != nil {
		err = errors.Wrapf(err, "cannot encode node %s", n)
		return
	}
	b = buf.Bytes()
	return
}

// EncodedLen returns the total encoded length of a node tree
func EncodedLen(n *Node) (int, error) {
	l, err := bodyLen(n)
	if err != nil {
		return 0, err
	}
	return 8 + l, nil
}

func encode(buf *bytes.Buffer, n *Node) (err error) {
	if len(n.Code) != 4 {
		return fmt.Errorf("content code '%s' is not 4 bytes", n.Code)
	}
	kind, ok := KindOf(n.Code)
	if !ok {
		return fmt.Errorf("content code '%s' is not registered", n.Code)
	}

	var l int
	if l, err = bodyLen(n); err != nil {
		return
	}

	buf.WriteString(n.Code)
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(l))
	buf.Write(lb[:])

	switch kind {
	case KindInt8, KindUint8:
		buf.WriteByte(byte(n.Num))
	case KindInt16, KindUint16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n.Num))
		buf.Write(b[:])
	case KindInt32, KindUint32, KindDate, KindVersion:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n.Num))
		buf.Write(b[:])
	case KindInt64, KindUint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], n.Num)
		buf.Write(b[:])
	case KindString:
		buf.WriteString(n.Str)
	case KindContainer:
		for _, kid := range n.Kids {
			if err = encode(buf, kid); err != nil {
				return
			}
		}
	default:
		buf.Write(n.Raw)
	}
	return
}

// bodyLen returns the body length of a node as counted by the length prefix
func bodyLen(n *Node) (l int, err error) {
	kind, ok := KindOf(n.Code)
	if !ok {
		err = fmt.Errorf("content code '%s' is not registered", n.Code)
		return
	}
	switch kind {
	case KindString:
		l = len(n.Str)
	case KindContainer:
		for _, kid := range n.Kids {
			var kl int
			if kl, err = bodyLen(kid); err != nil {
				return
			}
			l += 8 + kl
		}
	default:
		if w := kind.width(); w > 0 {
			l = w
		} else {
			l = len(n.Raw)
		}
	}
	return
}
