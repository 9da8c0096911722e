package cachesim

// setAssocStore keeps tags and source vaddrs in flat arrays of
// sets*ways words, indexed by the low line-address bits.
type setAssocStore struct {
	sets     uint64
	ways     uint64
	idxShift uint

	tags []uint64
	srcs []uint64

	lfsr *LFSR
}

func newSetAssocStore(sets, ways uint64, idxShift uint, lfsr *LFSR) *setAssocStore {
	return &setAssocStore{
		sets:     sets,
		ways:     ways,
		idxShift: idxShift,
		tags:     make([]uint64, sets*ways),
		srcs:     make([]uint64, sets*ways),
		lfsr:     lfsr,
	}
}

func (s *setAssocStore) checkTag(paddr uint64) *uint64 {
	idx := (paddr >> s.idxShift) & (s.sets - 1)
	query := (paddr >> s.idxShift) | valid

	base := idx * s.ways
	for i := uint64(0); i < s.ways; i++ {
		if s.tags[base+i]&^dirty == query {
			return &s.tags[base+i]
		}
	}
	return nil
}

func (s *setAssocStore) victimize(paddr, src uint64) (uint64, uint64) {
	idx := (paddr >> s.idxShift) & (s.sets - 1)
	way := uint64(s.lfsr.Next()) % s.ways

	slot := idx*s.ways + way
	victimTag := s.tags[slot]
	victimSrc := s.srcs[slot]

	s.tags[slot] = (paddr >> s.idxShift) | valid
	s.srcs[slot] = src

	return victimTag, victimSrc
}
