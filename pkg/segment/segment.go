// Package segment turns an incremental token stream into discrete,
// synthesis-ready sentences.
//
// A Segmenter is created per response stream and discarded when the stream
// ends; it is never stored on the session. It accumulates fragments until a
// sentence-terminal punctuation mark arrives, then emits the completed
// sentence exactly once, in arrival order. Repeated upstream fragments never
// produce duplicate utterances.
package segment

import "strings"

// Segmenter accumulates streamed text and yields completed sentences.
// Not safe for concurrent use: each stream is consumed by one goroutine.
type Segmenter struct {
	buf  strings.Builder
	seen map[string]struct{}
}

// New creates an empty segmenter for one response stream.
func New() *Segmenter {
	return &Segmenter{seen: make(map[string]struct{})}
}

// Feed appends a fragment and returns any sentences it completed, in the
// order their terminating punctuation appeared. A fragment may complete
// zero, one, or several sentences ("Hi. Bye." yields two).
func (s *Segmenter) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}
	s.buf.WriteString(fragment)

	var out []string
	text := s.buf.String()
	for {
		end := terminalEnd(text)
		if end < 0 {
			break
		}
		sentence := strings.TrimSpace(text[:end])
		text = text[end:]
		if sentence == "" {
			continue
		}
		if _, dup := s.seen[sentence]; dup {
			continue
		}
		s.seen[sentence] = struct{}{}
		out = append(out, sentence)
	}

	s.buf.Reset()
	s.buf.WriteString(text)
	return out
}

// Flush returns the trimmed, not-yet-emitted remainder, if any. Call once
// when the upstream stream ends; the segmenter is spent afterwards.
func (s *Segmenter) Flush() (string, bool) {
	remainder := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if remainder == "" {
		return "", false
	}
	if _, dup := s.seen[remainder]; dup {
		return "", false
	}
	s.seen[remainder] = struct{}{}
	return remainder, true
}

// Pending returns the text accumulated since the last completed sentence.
func (s *Segmenter) Pending() string {
	return s.buf.String()
}

// terminalEnd returns the index just past the first sentence-terminal
// punctuation run in text, or -1 when no sentence has completed yet.
// Consecutive marks ("?!", "...") belong to the same sentence.
func terminalEnd(text string) int {
	i := strings.IndexAny(text, ".!?")
	if i < 0 {
		return -1
	}
	end := i + 1
	for end < len(text) && isTerminal(text[end]) {
		end++
	}
	return end
}

func isTerminal(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}
