// Package dmap implements the tagged, length-prefixed binary encoding that
// DAAP uses for every non-audio response body. A response is a tree of nodes.
// Each node carries a 4 byte ASCII content code; the payload type of a code
// (integer widths included) is determined by the code registry, never by the
// value that happens to be stored in the node.
package dmap

import (
	"fmt"
	"time"
)

// Kind represents the payload type of a content code
type Kind uint8

// payload types as defined by the DMAP content codes response (mcty)
const (
	KindInt8 Kind = iota + 1
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindString
	KindDate
	KindVersion
	KindContainer
)

// typeNumber returns the numeric type identifier of a kind as it is reported
// in the content codes listing
func (me Kind) typeNumber() uint16 {
	switch me {
	case KindInt8:
		return 1
	case KindUint8:
		return 2
	case KindInt16:
		return 3
	case KindUint16:
		return 4
	case KindInt32:
		return 5
	case KindUint32:
		return 6
	case KindInt64:
		return 7
	case KindUint64:
		return 8
	case KindString:
		return 9
	case KindDate:
		return 10
	case KindVersion:
		return 11
	case KindContainer:
		return 12
	}
	return 0
}

// width returns the body length in bytes of fixed-size kinds, 0 otherwise
func (me Kind) width() int {
	switch me {
	case KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindDate, KindVersion:
		return 4
	case KindInt64, KindUint64:
		return 8
	}
	return 0
}

// Node is one element of a DMAP tree. Exactly one payload field is relevant,
// selected by the kind that the code registry assigns to Code: Num for
// integers, dates and versions, Str for strings, Raw for opaque bytes,
// Kids for containers.
type Node struct {
	Code string
	Num  uint64
	Str  string
	Raw  []byte
	Kids []*Node
}

// Num creates an integer, date or version node
func Num(code string, v uint64) *Node {
	return &Node{Code: code, Num: v}
}

// Str creates a string node
func Str(code, s string) *Node {
	return &Node{Code: code, Str: s}
}

// Raw creates a node carrying opaque bytes
func Raw(code string, b []byte) *Node {
	return &Node{Code: code, Raw: b}
}

// Date creates a timestamp node from a time value
func Date(code string, t time.Time) *Node {
	return &Node{Code: code, Num: uint64(uint32(t.Unix()))}
}

// Version creates a version node from major and minor parts. On the wire a
// version is the quad major(2B)||minor(1B)||patch(1B); DAAP only ever uses
// major and minor
func Version(code string, major, minor uint16) *Node {
	return &Node{Code: code, Num: uint64(major)<<16 | uint64(minor)}
}

// Ctr creates a container node with the given children. Nil children are
// skipped, which allows builders to add optional sub trees inline
func Ctr(code string, kids ...*Node) *Node {
	n := &Node{Code: code}
	for _, kid := range kids {
		if kid != nil {
			n.Kids = append(n.Kids, kid)
		}
	}
	return n
}

// Add appends children to a container node and returns the node itself
func (me *Node) Add(kids ...*Node) *Node {
	for _, kid := range kids {
		if kid != nil {
			me.Kids = append(me.Kids, kid)
		}
	}
	return me
}

// Child returns the first direct child with the given code, or nil
func (me *Node) Child(code string) *Node {
	for _, kid := range me.Kids {
		if kid.Code == code {
			return kid
		}
	}
	return nil
}

// String renders the node for log and error output
func (me *Node) String() string {
	kind, known := KindOf(me.Code)
	if !known {
		return fmt.Sprintf("%s(?)", me.Code)
	}
	switch kind {
	case KindString:
		return fmt.Sprintf("%s=%q", me.Code, me.Str)
	case KindContainer:
		return fmt.Sprintf("%s[%d]", me.Code, len(me.Kids))
	default:
		return fmt.Sprintf("%s=%d", me.Code, me.Num)
	}
}
