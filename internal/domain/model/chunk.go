package model

// Chunk is one fixed-size slice of a recording scheduled for copying.
// Frames are interleaved across channels, so the byte offset of a chunk in
// the output file is StartFrame * channels * 2 (int16 samples).
type Chunk struct {
	Index      int
	StartFrame int64
	Frames     int64
	ByteOffset int64
}
