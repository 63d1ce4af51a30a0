// Package heuristics holds the lexical checks used to steer a debate:
// normalisation, uniqueness, agreement, topic relevance and coherence.
//
// Every function here is pure and deterministic.
package heuristics

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// stemLength is the number of leading runes compared when matching
// inflected word forms ("социальные" vs "социальных").
const stemLength = 6

// minTokenLength drops tokens shorter than this from content token sets.
const minTokenLength = 2

var folder = cases.Fold()

// Normalize canonicalises text for comparison: NFKC, case folded,
// apostrophes dropped, other punctuation turned into spaces, whitespace
// collapsed.
func Normalize(text string) string {
	folded := folder.String(norm.NFKC.String(text))

	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		switch {
		case isApostrophe(r):
			// "you're" -> "youre"
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func isApostrophe(r rune) bool {
	switch r {
	case '\'', '’', 'ʼ', '`', '‘':
		return true
	}
	return false
}

// Tokens splits normalised text into words.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

// ContentTokens returns the tokens of text with stopwords and very short
// words removed.
func ContentTokens(text string) []string {
	tokens := Tokens(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if len([]rune(tok)) < minTokenLength {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Keywords is a set of normalised topic tokens.
type Keywords map[string]struct{}

// Sorted returns the keywords in lexical order.
func (k Keywords) Sorted() []string {
	out := make([]string, 0, len(k))
	for w := range k {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// ExtractKeywords derives the keyword set for a debate topic.
func ExtractKeywords(topic string) Keywords {
	kw := make(Keywords)
	for _, tok := range ContentTokens(topic) {
		kw[tok] = struct{}{}
	}
	return kw
}

func stem(tok string) string {
	r := []rune(tok)
	if len(r) > stemLength {
		return string(r[:stemLength])
	}
	return tok
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func stemSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[stem(t)] = struct{}{}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b|, or 0 when either set is empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// IsUnique reports whether candidate differs from every entry of recent.
// It is not unique when its normalised form equals an entry or when the
// token overlap with an entry reaches threshold.
func IsUnique(candidate string, recent []string, threshold float64) bool {
	normalized := Normalize(candidate)
	cand := tokenSet(strings.Fields(normalized))
	for _, entry := range recent {
		entryNorm := Normalize(entry)
		if entryNorm == normalized {
			return false
		}
		if jaccard(cand, tokenSet(strings.Fields(entryNorm))) >= threshold {
			return false
		}
	}
	return true
}

// CheckTopicRelevance returns the fraction of keywords present in text.
// An empty keyword set is never penalised and yields 1.
func CheckTopicRelevance(text string, keywords Keywords) float64 {
	if len(keywords) == 0 {
		return 1
	}
	tokens := Tokens(text)
	found := 0
	for kw := range keywords {
		s := stem(kw)
		for _, tok := range tokens {
			if strings.HasPrefix(tok, s) {
				found++
				break
			}
		}
	}
	score := float64(found) / float64(len(keywords))
	if score > 1 {
		score = 1
	}
	return score
}

// CheckConversationCoherence measures lexical overlap between two
// successive turns as the Jaccard index of their stemmed content tokens.
func CheckConversationCoherence(current, previous string) float64 {
	return jaccard(stemSet(ContentTokens(current)), stemSet(ContentTokens(previous)))
}

var stopwords = tokenSet([]string{
	// ru
	"и", "в", "во", "не", "что", "он", "на", "я", "с", "со", "как", "а", "то",
	"все", "она", "так", "его", "но", "да", "ты", "к", "у", "же", "вы", "за",
	"бы", "по", "только", "ее", "её", "мне", "было", "вот", "от", "меня", "еще",
	"ещё", "нет", "о", "из", "ему", "теперь", "когда", "даже", "ну", "ли",
	"если", "уже", "или", "ни", "быть", "был", "него", "до", "вас", "нибудь",
	"опять", "уж", "вам", "ведь", "там", "потом", "себя", "ничего", "ей",
	"может", "они", "тут", "где", "есть", "надо", "ней", "для", "мы", "тебя",
	"их", "чем", "была", "сам", "чтобы", "без", "будто", "чего", "раз",
	"тоже", "себе", "под", "будет", "ж", "тогда", "кто", "этот", "того",
	"потому", "этого", "какой", "совсем", "ним", "здесь", "этом", "один",
	"почти", "мой", "тем", "чтоб", "нее", "сейчас", "были", "куда", "зачем",
	"всех", "никогда", "можно", "при", "наконец", "два", "об", "другой",
	"хоть", "после", "над", "больше", "тот", "через", "эти", "нас", "про",
	"всего", "них", "какая", "много", "разве", "три", "эту", "моя", "впрочем",
	"хорошо", "свою", "этой", "перед", "иногда", "лучше", "чуть", "том",
	"нельзя", "такой", "им", "более", "всегда", "конечно", "всю", "между",
	"это", "эта", "очень",
	// en
	"a", "an", "the", "and", "or", "but", "of", "to", "in", "on", "at", "for",
	"with", "by", "from", "is", "are", "was", "were", "be", "been", "it",
	"its", "this", "that", "these", "those", "as", "if", "then", "than",
	"so", "not", "no", "do", "does", "did", "we", "you", "i", "he", "she",
	"they", "them", "our", "your", "my", "me", "us", "vs", "versus", "about",
	"what", "which", "who", "how", "why", "can", "will", "would", "should",
	"could", "there", "here", "very", "also", "just",
})
