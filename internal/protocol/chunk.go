package protocol

// Chunk splits data into consecutive slices of at most size bytes.
// The returned slices alias data. Returns nil for empty input.
func Chunk(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	if size <= 0 || len(data) <= size {
		return [][]byte{data}
	}

	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > 0 {
		n := size
		if len(data) < n {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}
