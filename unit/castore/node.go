package castore

import (
	"fmt"
	"maps"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// node is one committed snapshot of a unit. Nodes are CBOR blocks in the CAS;
// a unit's head names its newest node and each node links its predecessor.
type node struct {
	Parent   []byte             `cbor:"1,keyasint,omitempty"`
	Files    map[string]fileRef `cbor:"2,keyasint,omitempty"`
	Mounts   map[string]string  `cbor:"3,keyasint,omitempty"`
	Writable string             `cbor:"4,keyasint,omitempty"`
	Type     string             `cbor:"5,keyasint,omitempty"`
}

type fileRef struct {
	Blob  []byte `cbor:"1,keyasint"`
	Codec uint8  `cbor:"2,keyasint,omitempty"`
	Size  int    `cbor:"3,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

func (n *node) clone() *node {
	return &node{
		Parent:   n.Parent,
		Files:    maps.Clone(n.Files),
		Mounts:   maps.Clone(n.Mounts),
		Writable: n.Writable,
		Type:     n.Type,
	}
}

func (n *node) setFile(p string, ref fileRef) {
	if n.Files == nil {
		n.Files = map[string]fileRef{}
	}
	n.Files[p] = ref
}

func (n *node) setMount(p, key string) {
	if n.Mounts == nil {
		n.Mounts = map[string]string{}
	}
	n.Mounts[p] = key
}

func encodeNode(n *node) ([]byte, error) {
	return encMode.Marshal(n)
}

func decodeNode(b []byte) (*node, error) {
	var n node
	if err := decMode.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("castore: decode node: %w", err)
	}
	return &n, nil
}

func (r fileRef) blob() (cid.Cid, error) {
	return cid.Cast(r.Blob)
}
