// Package pipeline implements the real-time audio delivery pipeline: a
// clock-paced chunker, an index-preserving resampler, codec glue, and a
// receive-side orderer restoring sequence over an unordered transport.
package pipeline

import "sync/atomic"

// Frame is one indexed unit flowing through the pipeline. Index identifies
// the chunk's position on the stream's time grid; Data is PCM bytes or an
// opaque compressed payload depending on the stage.
type Frame struct {
	Index uint32
	Data  []byte
}

// FrameWriter consumes frames from the previous stage. Delivery is
// synchronous and single-producer; a stage that must retain Data past the
// call copies it.
type FrameWriter interface {
	WriteFrame(f Frame) error
}

// FrameWriterFunc adapts a function to FrameWriter.
type FrameWriterFunc func(f Frame) error

func (fn FrameWriterFunc) WriteFrame(f Frame) error { return fn(f) }

// Stats holds drop/conceal counters for one pipeline. Counters only; none
// of these conditions propagate as errors.
type Stats struct {
	ChunksEmitted  atomic.Uint64
	ChunksDropped  atomic.Uint64
	FramesEncoded  atomic.Uint64
	EncodeFailures atomic.Uint64
	LateFrames     atomic.Uint64
	Concealed      atomic.Uint64
	Skipped        atomic.Uint64
	DecodeFailures atomic.Uint64
}
