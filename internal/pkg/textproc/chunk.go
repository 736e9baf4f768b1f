package textproc

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// boundaryWindow 向前查找句子边界的最大距离
	boundaryWindow = 100
)

func isBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '\n', '。', '！', '？':
		return true
	}
	return false
}

// Chunk 按字符数切分文本，相邻分块重叠 overlap 个字符。
// 分块末尾尽量落在句子边界上：从 end 往回最多找 boundaryWindow 个字符，且不早于块的一半。
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	var chunks []string

	start := 0
	for start < n {
		end := start + size
		if end < n {
			floor := max(start+size/2, end-boundaryWindow)
			for i := end - 1; i >= floor; i-- {
				if isBoundary(runes[i]) {
					end = i + 1
					break
				}
			}
		} else {
			end = n
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
