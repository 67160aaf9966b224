// Package splitter implements the three-stage chunking algorithm: greedy
// paragraph packing with overlap carry-over, a sentence-boundary refinement
// pass, and a hard fixed-width fallback.
package splitter

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter segments cleaned text into overlapping chunks.
type Splitter struct{}

// New creates a Splitter.
func New() *Splitter {
	return &Splitter{}
}

// Split implements ports.TextSplitter. chunkSize is a target character
// count (default DefaultChunkSize when <= 0); chunkOverlap defaults to
// DefaultChunkOverlap when < 0 and is clamped below chunkSize.
func (s *Splitter) Split(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := packParagraphs(text, chunkSize, chunkOverlap)
	chunks = refineSentences(chunks, chunkSize)
	chunks = hardSplit(chunks, chunkSize, chunkOverlap)

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// packParagraphs greedily packs paragraphs into chunks of chunkSize,
// seeding each new chunk with the tail overlap-character suffix of the
// chunk it followed.
func packParagraphs(text string, chunkSize, chunkOverlap int) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		tail := tailSuffix(current.String(), chunkOverlap)
		current.Reset()
		current.WriteString(tail)
	}

	for _, para := range paragraphs {
		if current.Len() > 0 && current.Len()+2+len(para) > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// refineSentences re-splits any chunk exceeding 2*chunkSize on sentence
// boundaries, using the same greedy packing policy with no overlap.
func refineSentences(chunks []string, chunkSize int) []string {
	var out []string
	for _, chunk := range chunks {
		if len(chunk) <= 2*chunkSize {
			out = append(out, chunk)
			continue
		}

		sentences := strings.Split(chunk, ".")
		var current strings.Builder
		for i, sentence := range sentences {
			piece := sentence
			if i < len(sentences)-1 {
				piece += "."
			}
			if current.Len() > 0 && current.Len()+len(piece) > chunkSize {
				out = append(out, current.String())
				current.Reset()
			}
			current.WriteString(piece)
		}
		if current.Len() > 0 {
			out = append(out, current.String())
		}
	}
	return out
}

// hardSplit cuts any residual chunk still exceeding 2*chunkSize into fixed
// windows advancing by chunkSize-chunkOverlap; the final window runs to
// end-of-text.
func hardSplit(chunks []string, chunkSize, chunkOverlap int) []string {
	stride := chunkSize - chunkOverlap
	if stride <= 0 {
		stride = chunkSize
	}

	var out []string
	for _, chunk := range chunks {
		if len(chunk) <= 2*chunkSize {
			out = append(out, chunk)
			continue
		}
		runes := []rune(chunk)
		for start := 0; start < len(runes); start += stride {
			end := start + chunkSize
			if end >= len(runes) {
				end = len(runes)
			}
			out = append(out, string(runes[start:end]))
			if end == len(runes) {
				break
			}
		}
	}
	return out
}

// tailSuffix returns the trailing n-character (rune-safe) suffix of s.
func tailSuffix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
