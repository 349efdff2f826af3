// Package store keeps the per-channel snapshot files of one output directory.
//
// A single writer publishes each Summary into a brand-new file named
// <token>-<NN>.dat, where NN is the two-digit channel and token sorts by
// creation time. Content is written to a hidden temporary file and renamed
// into place, so a reader never sees a partially written snapshot under its
// final name. Readers take no locks: they list a channel's history newest
// first, decode the first file that reads cleanly, and delete everything older
// than it. Files that vanish or fail to decode between listing and reading are
// skipped, and deleting a file someone else already deleted is not an error.
package store
