package common

// MiB is one mebibyte.
const MiB = 1 << 20

// DefaultChunkSize is the maximum plaintext size of a single chunk.
const DefaultChunkSize = 24 * MiB
