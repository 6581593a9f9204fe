// Package msglc implements a container format layered on MessagePack that
// supports lazy, partial decoding of large nested data: a producer packs a
// tree once, and a consumer later opens the resulting blob and reads only
// the sub-tree it needs, paying decode and I/O cost proportional to the
// accessed slice rather than to the file size.
//
// A blob packed by Pack consists of a MessagePack encoding of the data
// (the payload) followed by a MessagePack-encoded table of contents (TOC)
// recording the byte range of every sub-container large enough to be
// worth indexing. Open reads the header and TOC once and returns a
// ReaderSession whose Read resolves paths by consulting the TOC and
// fetching only the bytes it needs through a Source.
package msglc
