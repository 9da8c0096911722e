package cachesim

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// configUsage is the hint attached to every geometry error; commands
// surface it next to the failure before exiting.
const configUsage = "cache configurations must be of the form sets:ways:linesize, " +
	"where sets, ways, and linesize are positive integers, " +
	"sets and linesize powers of two, and linesize at least 8"

// faWayThreshold selects the fully-associative implementation: a
// single-set cache with more ways than this is cheaper to model with a
// map than with a linear tag scan.
const faWayThreshold = 4

// Construct parses a "sets:ways:linesize" configuration string and
// builds a cache level with the given name. A single-set geometry with
// more than four ways builds the fully-associative variant; everything
// else builds the set-associative one.
func Construct(config, name string) (*Cache, error) {
	parts := strings.Split(config, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed cache config %q: %s", config, configUsage)
	}

	sets, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad set count in %q: %s", config, configUsage)
	}
	ways, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad way count in %q: %s", config, configUsage)
	}
	lineSize, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad line size in %q: %s", config, configUsage)
	}

	return newCache(sets, ways, lineSize, name)
}

func newCache(sets, ways, lineSize uint64, name string) (*Cache, error) {
	if sets == 0 || sets&(sets-1) != 0 {
		return nil, fmt.Errorf("set count %d is not a power of two: %s",
			sets, configUsage)
	}
	if ways == 0 {
		return nil, fmt.Errorf("way count must be positive: %s", configUsage)
	}
	if lineSize < 8 || lineSize&(lineSize-1) != 0 {
		return nil, fmt.Errorf("line size %d is not a power of two >= 8: %s",
			lineSize, configUsage)
	}

	c := &Cache{
		name:     name,
		sets:     sets,
		ways:     ways,
		lineSize: lineSize,
		idxShift: uint(bits.TrailingZeros64(lineSize)),
		lfsr:     NewLFSR(),
	}

	if sets == 1 && ways > faWayThreshold {
		c.tags = newFullAssocStore(ways, c.idxShift, &c.lfsr)
	} else {
		c.tags = newSetAssocStore(sets, ways, c.idxShift, &c.lfsr)
	}

	return c, nil
}

// FullyAssociative reports whether the level uses the map-backed tag
// store.
func (c *Cache) FullyAssociative() bool {
	_, ok := c.tags.(*fullAssocStore)
	return ok
}
