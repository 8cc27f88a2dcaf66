package storage

// Config holds the tunables for a Handle, mirroring spec §6's default
// table: page size is fixed at PageSize and is not configurable here,
// since the slotted-page layout bakes it in at compile time.
// BTreeOrder, HashBuckets, BloomBits and BloomHashes are not read by
// Open or by the Handle's Create* methods, which take their sizes as
// arguments.
type Config struct {
	DataDir        string
	BufferPoolSize int
	WALBufferSize  int
	ArenaCapacity  int
	BTreeOrder     int
	HashBuckets    int
	BloomBits      int
	BloomHashes    int
}

// DefaultConfig returns the spec's default configuration rooted at dataDir.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		DataDir:        dataDir,
		BufferPoolSize: DefaultBufferPoolCapacity,
		WALBufferSize:  DefaultWALBufferSize,
		ArenaCapacity:  0, // 0 defers to arena.DefaultCapacity (16 MiB)
		BTreeOrder:     0, // 0 defers to index.DefaultBTreeOrder (128)
		HashBuckets:    0, // 0 defers to index.DefaultHashBuckets (1024)
		BloomBits:      0, // 0 defers to index.DefaultBloomBits (10000)
		BloomHashes:    0, // 0 defers to index.DefaultBloomHashes (3)
	}
}
