// Package nbt reads, writes and manipulates Named Binary Tag data.
//
// Three entry points cover the common shapes of NBT work: the Tag tree
// with the File façade for load-mutate-save, the Scanner for walking a
// byte stream one tag at a time without materializing it, and the
// Writer for emitting a well-formed stream without building a tree.
// All three share the same wire rules: big-endian by default,
// length-prefixed UTF-8 strings, length-prefixed arrays, and a single
// compound as the document root. Gzip and zlib framing is handled
// transparently by File.
package nbt
