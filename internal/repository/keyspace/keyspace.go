// Package keyspace lays out store keys. Collection names never contain ':',
// so the per-kind prefixes cannot collide.
package keyspace

// DefaultPrefix is used when the configured prefix is empty.
const DefaultPrefix = "cortex:"

// Keyspace builds keys under a common prefix.
type Keyspace struct {
	prefix string
}

// New creates a Keyspace. An empty prefix falls back to DefaultPrefix.
func New(prefix string) Keyspace {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keyspace{prefix: prefix}
}

// Prefix returns the common prefix.
func (k Keyspace) Prefix() string { return k.prefix }

// Meta is the collection metadata hash: {p}meta:{name}.
func (k Keyspace) Meta(name string) string { return k.prefix + "meta:" + name }

// MetaPattern matches every collection metadata key.
func (k Keyspace) MetaPattern() string { return k.prefix + "meta:*" }

// Index is the FT index over a collection's chunks: {p}idx:{name}.
func (k Keyspace) Index(name string) string { return k.prefix + "idx:" + name }

// ChunkPrefix is the key prefix of a collection's chunk hashes.
func (k Keyspace) ChunkPrefix(name string) string { return k.prefix + "chunk:" + name + ":" }

// Chunk is a single chunk hash: {p}chunk:{name}:{id}.
func (k Keyspace) Chunk(name, id string) string { return k.ChunkPrefix(name) + id }

// ChunkID strips the collection chunk prefix from key.
func (k Keyspace) ChunkID(name, key string) string {
	p := k.ChunkPrefix(name)
	if len(key) < len(p) || key[:len(p)] != p {
		return key
	}
	return key[len(p):]
}

// Embedding is an embedding cache entry keyed by content digest: {p}emb:{digest}.
func (k Keyspace) Embedding(digest string) string { return k.prefix + "emb:" + digest }
