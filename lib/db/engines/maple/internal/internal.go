package internal

import (
	"bytes"

	"github.com/tidwall/btree"
)

// --------------------------------------------------------------------------
// Item Type (key-value pair stored in the tree)
// --------------------------------------------------------------------------

// Item stores a key-value pair
type Item struct {
	Key   []byte
	Value []byte
}

// Less orders items by their raw key bytes
func Less(a, b Item) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// Size returns the number of bytes the item occupies
func (i Item) Size() int {
	return len(i.Key) + len(i.Value)
}

// --------------------------------------------------------------------------
// Tree Type
// --------------------------------------------------------------------------

// Tree is the ordered container backing the database
type Tree = btree.BTreeG[Item]

// NewTree creates an empty tree
func NewTree() *Tree {
	return btree.NewBTreeG[Item](Less)
}

// --------------------------------------------------------------------------
// Iterator Type (bounded iterator over a frozen tree)
// --------------------------------------------------------------------------

// Iterator walks over a tree that is never modified while the iterator is open.
// It restricts the underlying btree iterator to [lower, upper).
type Iterator struct {
	iter  btree.IterG[Item]
	lower []byte
	upper []byte
	valid bool
	item  Item
}

// NewIterator creates an iterator over the tree within the given bounds (nil = unbounded)
func NewIterator(tree *Tree, lower, upper []byte) *Iterator {
	return &Iterator{
		iter:  tree.Iter(),
		lower: lower,
		upper: upper,
	}
}

// settle checks if the btree iterator is positioned inside the bounds
func (it *Iterator) settle(ok bool) bool {
	if !ok {
		it.valid = false
		return false
	}
	item := it.iter.Item()
	if it.upper != nil && bytes.Compare(item.Key, it.upper) >= 0 {
		it.valid = false
		return false
	}
	if it.lower != nil && bytes.Compare(item.Key, it.lower) < 0 {
		it.valid = false
		return false
	}
	it.item = item
	it.valid = true
	return true
}

func (it *Iterator) First() bool {
	if it.lower != nil {
		return it.settle(it.iter.Seek(Item{Key: it.lower}))
	}
	return it.settle(it.iter.First())
}

func (it *Iterator) Last() bool {
	if it.upper != nil {
		return it.SeekLT(it.upper)
	}
	return it.settle(it.iter.Last())
}

func (it *Iterator) SeekGE(key []byte) bool {
	if it.lower != nil && bytes.Compare(key, it.lower) < 0 {
		key = it.lower
	}
	return it.settle(it.iter.Seek(Item{Key: key}))
}

func (it *Iterator) SeekLT(key []byte) bool {
	if it.upper != nil && bytes.Compare(key, it.upper) > 0 {
		key = it.upper
	}
	// Seek lands on the first item >= key, the predecessor is the answer
	if it.iter.Seek(Item{Key: key}) {
		return it.settle(it.iter.Prev())
	}
	return it.settle(it.iter.Last())
}

func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	return it.settle(it.iter.Next())
}

func (it *Iterator) Prev() bool {
	if !it.valid {
		return false
	}
	return it.settle(it.iter.Prev())
}

func (it *Iterator) Valid() bool { return it.valid }

func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return it.item.Key
}

func (it *Iterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return it.item.Value
}

// Error always returns nil, an in-memory tree can not fail
func (it *Iterator) Error() error { return nil }

func (it *Iterator) Close() error {
	it.valid = false
	it.iter.Release()
	return nil
}
