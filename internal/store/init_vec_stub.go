//go:build !(sqlite_vec && cgo)

package store

// nativeVecAvailable stays false when the project is built without the
// sqlite_vec build tag or without cgo (the modernc.org/sqlite pure-Go driver
// path); the vector store then runs brute-force cosine similarity instead of
// native ANN.
var nativeVecAvailable = false
