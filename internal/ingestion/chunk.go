package ingestion

import "strings"

// splitChunks cuts text into overlapping windows of `size` runes with
// `overlap` runes shared between adjacent chunks. The split is rune-based so
// multi-byte text never breaks mid-character, and deterministic: the same
// input and parameters always yield the same chunk sequence.
//
// Callers must guarantee size > overlap >= 0 and size > 0; the pipeline
// config validates this at startup.
func splitChunks(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	runes := []rune(text)
	stride := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}
