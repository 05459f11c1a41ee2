package opt

import "math/rand"

// defaultSeed replaces a zero seed so that the default solve is reproducible.
const defaultSeed int64 = 1

// deriveSeed mixes a base seed and a search index into an independent
// stream seed (SplitMix64 finalizer). Each search owns its own *rand.Rand.
func deriveSeed(base int64, stream uint64) int64 {
	if base == 0 {
		base = defaultSeed
	}
	x := uint64(base) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}

func searchRNG(base int64, index int) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(base, uint64(index))))
}
