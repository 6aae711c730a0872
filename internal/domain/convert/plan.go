// Package convert owns the transformation of a recording into the flat
// little-endian int16 binary consumed by spike sorters: chunk planning,
// native-dtype scaling, and the output writer with its JSON sidecar.
package convert

import (
	"github.com/rdarie/spikepipe/internal/domain/model"
)

// DefaultChunkFrames is one second of data at 30 kHz, the conversion chunk
// size used when a job does not override it.
const DefaultChunkFrames = 30_000

// Plan splits totalFrames into fixed-size chunks of chunkFrames frames.
// The final chunk may be short. Byte offsets are positions in the output
// file, so they use the int16 output width regardless of the source dtype.
func Plan(totalFrames int64, chunkFrames int, outputBytesPerFrame int) []model.Chunk {
	if chunkFrames <= 0 {
		chunkFrames = DefaultChunkFrames
	}
	if totalFrames <= 0 {
		return nil
	}

	step := int64(chunkFrames)
	n := (totalFrames + step - 1) / step
	chunks := make([]model.Chunk, 0, n)
	for start := int64(0); start < totalFrames; start += step {
		frames := step
		if start+frames > totalFrames {
			frames = totalFrames - start
		}
		chunks = append(chunks, model.Chunk{
			Index:      len(chunks),
			StartFrame: start,
			Frames:     frames,
			ByteOffset: start * int64(outputBytesPerFrame),
		})
	}
	return chunks
}
