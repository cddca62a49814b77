// Package ext defines the optional peer-to-peer extension contract: an
// opportunistic collaborator that may warm remote block fetches and gossip
// cached block ranges between peers. beetree's core never requires an
// Extension; when one is registered, the tree calls it on the first
// suspension of each Tree.Get (see Registrar).
package ext

import "context"

// Extension is the contract a peer-extension implementation satisfies.
// beetree core treats it purely as an external collaborator: no concrete
// networked implementation lives in this module.
type Extension interface {
	// Get is an opportunistic prefetch hint fired at most once per Tree.Get
	// call, the first time that lookup suspends on a block fetch. Other tree
	// operations never call it. ok reports whether the extension actually
	// had a cached answer.
	Get(ctx context.Context, rootSeq uint64, key []byte) (value []byte, ok bool)

	// OnMessage delivers a raw peer message (encoded Message) for the
	// extension to interpret (cache gossip, get requests from peers).
	OnMessage(ctx context.Context, peer string, msg []byte) error
}

// Registrar is implemented by a Tree so an Extension can be attached to it
// without the ext package importing the core tree type.
type Registrar interface {
	RegisterExtension(Extension)
}

// CacheMessage announces a contiguous range of blocks a peer has cached.
type CacheMessage struct {
	Start  uint64
	End    uint64
	Blocks []uint64
}

// GetMessage asks a peer whether it can resolve key as of a given root.
type GetMessage struct {
	Head *uint64
	Key  []byte
}

// Message is the wire envelope carried over the extension channel; exactly
// one of Cache or Get is set.
type Message struct {
	Cache *CacheMessage
	Get   *GetMessage
}
