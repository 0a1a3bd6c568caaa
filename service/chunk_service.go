package service

import (
	"fmt"
	"strings"

	"github.com/tieubaoca/knowledge-base-be/types"
)

// Split points inside an oversized paragraph, tried in priority order.
// A match only counts when it falls past the half-way mark of the window;
// otherwise the text is force-split at the size limit.
var chunkSeparators = []string{"\n\n", "\n", "。", "！", "？", ".", "!", "?", ";", "；", ",", "，", " "}

// ChunkService splits extracted text into overlapping chunks bounded by a
// character limit, preferring natural break points.
type ChunkService struct{}

func NewChunkService() *ChunkService {
	return &ChunkService{}
}

// Split cuts text into chunks of at most chunkSize characters. Paragraphs
// (newline-separated) are accumulated greedily; a flush seeds the next
// buffer with the last chunkOverlap characters of the flushed chunk.
// Sizes are counted in runes, including the newline that joins paragraphs.
func (s *ChunkService) Split(text string, chunkSize, chunkOverlap int) ([]string, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", types.ErrInvalidChunkConfig, chunkSize, chunkOverlap)
	}

	var chunks []string
	var current []rune

	for _, paragraph := range strings.Split(text, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		para := []rune(paragraph)

		if len(current) == 0 {
			current = para
		} else if len(current)+1+len(para) <= chunkSize {
			current = append(append(current, '\n'), para...)
			continue
		} else {
			chunks = append(chunks, string(current))
			if chunkOverlap > 0 {
				overlap := current[len(current)-min(chunkOverlap, len(current)):]
				seeded := make([]rune, 0, len(overlap)+1+len(para))
				seeded = append(append(append(seeded, overlap...), '\n'), para...)
				current = seeded
			} else {
				current = para
			}
		}

		// A buffer still above the limit means a single paragraph (plus
		// seeded overlap) exceeds chunkSize and has to be carved.
		for len(current) > chunkSize {
			splitPoint := chunkSize
			for _, sep := range chunkSeparators {
				pos := rfindRunes(current, []rune(sep), chunkSize)
				if pos > chunkSize/2 {
					splitPoint = pos + len([]rune(sep))
					break
				}
			}

			if carved := strings.TrimSpace(string(current[:splitPoint])); carved != "" {
				chunks = append(chunks, carved)
			}

			next := splitPoint
			if chunkOverlap > 0 && splitPoint-chunkOverlap > 0 {
				next = splitPoint - chunkOverlap
			}
			current = current[next:]
		}
	}

	if trailing := strings.TrimSpace(string(current)); trailing != "" {
		chunks = append(chunks, trailing)
	}
	return chunks, nil
}

// ChunkWithMetadata splits text and tags every chunk with its position and
// provenance. Chunk ids are {documentId}_chunk_{index} in emission order;
// that format is relied on by document deletion.
func (s *ChunkService) ChunkWithMetadata(text, documentID, documentName, kbID string, chunkSize, chunkOverlap int) ([]types.Chunk, error) {
	contents, err := s.Split(text, chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]types.Chunk, 0, len(contents))
	for i, content := range contents {
		chunks = append(chunks, types.Chunk{
			ID:      fmt.Sprintf("%s_chunk_%d", documentID, i),
			Content: content,
			Metadata: types.ChunkMetadata{
				DocumentID:      documentID,
				DocumentName:    documentName,
				KnowledgeBaseID: kbID,
				ChunkIndex:      i,
				ChunkTotal:      len(contents),
				Source:          documentName,
			},
		})
	}
	return chunks, nil
}

// rfindRunes returns the highest index i such that sep occurs at text[i:]
// entirely within text[:end], or -1 when it does not occur.
func rfindRunes(text, sep []rune, end int) int {
	if len(sep) == 0 || end > len(text) {
		return -1
	}
	for i := end - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if text[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
