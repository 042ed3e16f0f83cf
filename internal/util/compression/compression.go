// Package compression provides the byte compressors used for stored draft payloads.
package compression

// maxDecodedSize caps how much a single stored payload may expand to.
const maxDecodedSize = 64 << 20

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}
