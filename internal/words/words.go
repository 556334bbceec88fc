// internal/words/words.go
//
// Vocabulary management and secret word selection.
//
// Responsibilities:
//   - Load the vocabulary from WORDS_FILE or fall back to the embedded list.
//   - Pick the next secret word for a game (Next), honouring words queued by
//     an operator and the per-game history of guessed words.
//
// Selection rules (Next):
//   1. A non-empty queue wins: its head is popped and returned as-is.
//   2. Otherwise a word is drawn uniformly from the vocabulary minus the
//      used set, as long as at least 30% of the vocabulary is still unused.
//   3. Below that threshold the used set is cleared in place and the draw
//      happens over the full vocabulary.
//
// Constraints:
//   • Lines are trimmed and lowercased; blanks and '#' comments are skipped.
//   • Duplicates are dropped, first occurrence wins.
//   • An empty vocabulary is a configuration error (ErrEmptyVocabulary).

package words

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/robalobadob/crocodile-bot/assets"
)

// MinUnusedShare is the share of the vocabulary that must remain unused
// before the used-word history is reset.
const MinUnusedShare = 0.30

// ErrEmptyVocabulary is returned when no usable word was loaded.
var ErrEmptyVocabulary = errors.New("words: vocabulary is empty")

// Vocabulary is an immutable list of candidate secret words.
type Vocabulary struct {
	list []string
	set  map[string]struct{}
}

// New builds a vocabulary from raw lines.
func New(lines []string) (*Vocabulary, error) {
	v := &Vocabulary{set: make(map[string]struct{}, len(lines))}
	for _, line := range lines {
		w := normalizeLine(line)
		if w == "" {
			continue
		}
		if _, dup := v.set[w]; dup {
			continue
		}
		v.set[w] = struct{}{}
		v.list = append(v.list, w)
	}
	if len(v.list) == 0 {
		return nil, ErrEmptyVocabulary
	}
	return v, nil
}

// Load reads the vocabulary from path, or the embedded list when path is empty.
func Load(path string) (*Vocabulary, error) {
	var (
		lines []string
		err   error
	)
	if path == "" {
		lines, err = assets.DefaultWords()
	} else {
		lines, err = readWordFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load words %q: %w", path, err)
	}
	return New(lines)
}

// readWordFile loads one word (or phrase) per line from a file.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

func normalizeLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#") {
		return ""
	}
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Len returns the number of distinct words.
func (v *Vocabulary) Len() int { return len(v.list) }

// Contains reports whether w is part of the vocabulary.
func (v *Vocabulary) Contains(w string) bool {
	_, ok := v.set[normalizeLine(w)]
	return ok
}

// Next returns the next secret word. It may pop the head of queue and may
// clear used; it never adds to used.
func (v *Vocabulary) Next(used map[string]struct{}, queue *[]string) string {
	if queue != nil && len(*queue) > 0 {
		w := (*queue)[0]
		*queue = (*queue)[1:]
		return w
	}

	remaining := make([]string, 0, len(v.list))
	for _, w := range v.list {
		if _, ok := used[w]; !ok {
			remaining = append(remaining, w)
		}
	}
	if float64(len(remaining))/float64(len(v.list)) >= MinUnusedShare {
		return remaining[randIndex(len(remaining))]
	}
	clear(used)
	return v.list[randIndex(len(v.list))]
}

// randIndex returns a cryptographically random index in [0, n).
func randIndex(n int) int {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(nBig.Int64())
}
