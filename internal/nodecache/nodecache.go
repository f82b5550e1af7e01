// Package nodecache implements NodeCache: the reference-counted in-memory
// inode cache keyed by (device, inode index) that MfsOps uses to
// deduplicate concurrent opens of the same file (spec.md §4.5).
package nodecache

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/deploymenttheory/go-minixfs/internal/bitmap"
	"github.com/deploymenttheory/go-minixfs/internal/inode"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/zonemap"
)

// Node wraps an in-memory inode with the refcount that makes it safe to
// share across concurrent callers (spec.md §5 "Reference counting is the
// only cross-fiber ownership mechanism").
type Node struct {
	Dev  uint64
	Info *inode.Info

	refcount atomic.Int32
}

// Refcount reports the node's current reference count.
func (n *Node) Refcount() int32 { return n.refcount.Load() }

type key struct {
	dev   uint64
	index uint32
}

// Cache is a per-mount node cache. One Cache instance normally serves a
// single device, but the key carries a device handle anyway so a single
// instance could span several, matching spec.md's key shape.
type Cache struct {
	mu    sync.Mutex
	codec *inode.Codec
	zm    *zonemap.ZoneMap
	ibm   *bitmap.Bitmap

	nodes map[key]*Node
}

// New builds a Cache backed by codec (inode encode/decode), zm (for
// freeing a destroyed node's zones) and ibm (the inode bitmap, for
// freeing the inode bit on destroy).
func New(codec *inode.Codec, zm *zonemap.ZoneMap, ibm *bitmap.Bitmap) *Cache {
	return &Cache{codec: codec, zm: zm, ibm: ibm, nodes: make(map[key]*Node)}
}

// Get hits the cache or decodes the inode from disk, incrementing its
// refcount either way (spec.md §4.5 node_get).
func (c *Cache) Get(dev uint64, index uint32) (*Node, error) {
	c.mu.Lock()
	k := key{dev, index}
	if n, ok := c.nodes[k]; ok {
		n.refcount.Inc()
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	info, err := c.codec.Decode(index)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[k]; ok {
		// Lost a race with another Get for the same (dev, index); use the
		// winner's node and drop our freshly decoded copy.
		n.refcount.Inc()
		return n, nil
	}
	n := &Node{Dev: dev, Info: info}
	n.refcount.Store(1)
	c.nodes[k] = n
	return n, nil
}

// Insert registers a freshly created node (spec.md §4.6 create()) with an
// initial refcount of 1, matching node_get's post-condition without a
// redundant disk read.
func (c *Cache) Insert(dev uint64, n *Node) {
	n.refcount.Store(1)
	c.mu.Lock()
	c.nodes[key{dev, n.Info.Index}] = n
	c.mu.Unlock()
}

// Put decrements node's refcount. At zero: destroys the node if its link
// count has reached zero, otherwise flushes it if dirty; either way it is
// then dropped from the cache (spec.md §4.5 node_put).
func (c *Cache) Put(n *Node) error {
	if n.refcount.Dec() > 0 {
		return nil
	}

	var destroyErr error
	if n.Info.Nlinks == 0 {
		destroyErr = c.Destroy(n.Info)
	} else if n.Info.Dirty {
		destroyErr = c.codec.Encode(n.Info)
	}

	c.mu.Lock()
	delete(c.nodes, key{n.Dev, n.Info.Index})
	c.mu.Unlock()
	return destroyErr
}

// Destroy shrinks a node's content to zero zones, frees its inode bit,
// and zeroes its on-disk slot (spec.md §4.5, §4.6 destroy()). Exposed so
// MfsOps can also invoke it as an explicit operation, not only as Put's
// automatic consequence. Per the reference implementation's intent,
// destruction only ever runs when Nlinks == 0 — callers must not invoke
// it otherwise.
func (c *Cache) Destroy(info *inode.Info) error {
	if err := c.zm.Shrink(info, 0); err != nil {
		return err
	}
	if err := c.ibm.Free(info.Index); err != nil {
		return err
	}
	return c.codec.Free(info.Index)
}

// Busy reports whether any node for dev still has outstanding references,
// the condition unmount must refuse on (spec.md §4.6 unmount()).
func (c *Cache) Busy(dev uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, n := range c.nodes {
		if k.dev == dev && n.Refcount() > 0 {
			return true
		}
	}
	return false
}

// Len reports the number of nodes currently cached, for diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// ErrBusyUnmount is returned by callers (MfsOps.unmount) wrapping Busy's
// true result into the spec's Busy error kind.
func ErrBusyUnmount(op string) error {
	return mfserrors.New(op, mfserrors.KindBusy)
}
