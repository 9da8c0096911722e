package cachesim

import (
	"github.com/google/btree"
)

// faLine is one resident line of a fully-associative level, keyed by
// paddr >> idxShift.
type faLine struct {
	key uint64
	tag uint64
	src uint64
}

func (l *faLine) Less(than btree.Item) bool {
	return l.key < than.(*faLine).key
}

// fullAssocStore keeps tags in a B-tree ordered by key. The sorted
// iteration order defines which entry an LFSR index selects, so
// eviction is deterministic and replays.
type fullAssocStore struct {
	ways     uint64
	idxShift uint

	tree *btree.BTree
	lfsr *LFSR
}

func newFullAssocStore(ways uint64, idxShift uint, lfsr *LFSR) *fullAssocStore {
	return &fullAssocStore{
		ways:     ways,
		idxShift: idxShift,
		tree:     btree.New(2),
		lfsr:     lfsr,
	}
}

func (s *fullAssocStore) checkTag(paddr uint64) *uint64 {
	item := s.tree.Get(&faLine{key: paddr >> s.idxShift})
	if item == nil {
		return nil
	}
	return &item.(*faLine).tag
}

func (s *fullAssocStore) victimize(paddr, src uint64) (uint64, uint64) {
	var victimTag, victimSrc uint64

	if uint64(s.tree.Len()) == s.ways {
		n := uint64(s.lfsr.Next()) % s.ways
		var victim *faLine
		s.tree.Ascend(func(item btree.Item) bool {
			if n == 0 {
				victim = item.(*faLine)
				return false
			}
			n--
			return true
		})
		victimTag = victim.tag
		victimSrc = victim.src
		s.tree.Delete(victim)
	}

	key := paddr >> s.idxShift
	s.tree.ReplaceOrInsert(&faLine{key: key, tag: key | valid, src: src})

	return victimTag, victimSrc
}
