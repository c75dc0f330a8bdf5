package ingest

import (
	"time"
)

// SourceFile is one input picked up from the input directory.
type SourceFile struct {
	Path    string
	Name    string
	Ext     string // lowercased, no dot
	Format  string // constants.PDF | constants.IMAGE
	Size    int64
	ModTime time.Time
	HashHex string // sha256 of the content; empty when Err is set
	Err     string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Hashed  uint32
	Failed  uint32
}
