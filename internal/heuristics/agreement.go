package heuristics

import (
	"sort"
	"strings"
)

// DefaultSimilarityThreshold is the token overlap at which a candidate is
// treated as a near-duplicate.
const DefaultSimilarityThreshold = 0.8

// DefaultAgreementPhrases signal that a speaker accepts the other side.
var DefaultAgreementPhrases = []string{
	"согласен", "согласна", "согласны", "соглашусь", "соглашаюсь",
	"вы правы", "ты прав", "ты права", "совершенно верно",
	"полностью поддерживаю", "поддерживаю вашу позицию",
	"пришли к согласию", "пришли к общему мнению", "общему мнению",
	"достигли консенсуса", "достигли согласия", "консенсус",
	"i agree", "we agree", "agreed", "i concur", "you are right", "youre right",
	"fair point", "common ground", "in agreement", "we have reached consensus",
	"weve reached consensus", "reached a consensus", "consensus",
}

// DefaultDisagreementPhrases signal that a speaker rejects the other side.
// They are matched before agreement phrases, so "не согласен" is never
// counted as "согласен".
var DefaultDisagreementPhrases = []string{
	"не согласен", "не согласна", "не согласны", "не соглашусь",
	"не могу согласиться", "не разделяю", "противоположное мнение",
	"не прав", "не права", "не правы", "возражаю", "категорически против",
	"не достигли", "нет консенсуса", "остаемся при своих", "остаёмся при своих",
	"i disagree", "i do not agree", "i dont agree", "i cannot agree",
	"i cant agree", "not convinced", "on the contrary", "i object",
	"you are wrong", "youre wrong", "no consensus", "not in agreement",
}

// AgreementDetector decides whether two consecutive turns agree.
type AgreementDetector interface {
	CheckAgreement(a, b string) bool
}

// StanceDetector reports whether a single turn voices agreement on its own.
type StanceDetector interface {
	Agrees(text string) bool
}

// AgreementFunc adapts a plain function to AgreementDetector.
type AgreementFunc func(a, b string) bool

// CheckAgreement calls f.
func (f AgreementFunc) CheckAgreement(a, b string) bool { return f(a, b) }

// Evaluator bundles the checks run after every generated message.
type Evaluator interface {
	AgreementDetector
	IsUnique(candidate string, recent []string) bool
	CheckTopicRelevance(text string, keywords Keywords) float64
	CheckConversationCoherence(current, previous string) float64
}

// LexicalConfig configures the rule-based evaluator. Empty phrase lists
// fall back to the defaults.
type LexicalConfig struct {
	AgreementPhrases    []string `yaml:"agreement_phrases,omitempty"`
	DisagreementPhrases []string `yaml:"disagreement_phrases,omitempty"`
	SimilarityThreshold float64  `yaml:"similarity_threshold,omitempty"`
}

// Lexical is the phrase-list based Evaluator.
type Lexical struct {
	agree     []string
	disagree  []string
	threshold float64
}

var _ Evaluator = (*Lexical)(nil)

// NewLexical builds a Lexical evaluator from cfg.
func NewLexical(cfg LexicalConfig) *Lexical {
	agree := cfg.AgreementPhrases
	if len(agree) == 0 {
		agree = DefaultAgreementPhrases
	}
	disagree := cfg.DisagreementPhrases
	if len(disagree) == 0 {
		disagree = DefaultDisagreementPhrases
	}
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Lexical{
		agree:     preparePhrases(agree),
		disagree:  preparePhrases(disagree),
		threshold: threshold,
	}
}

// preparePhrases normalises, dedupes and orders phrases longest first so
// that longer phrases are masked before their substrings are counted.
func preparePhrases(phrases []string) []string {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		n := Normalize(p)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Signals counts agreement and disagreement phrases in text.
func (l *Lexical) Signals(text string) (agree, disagree int) {
	padded := " " + Normalize(text) + " "
	for _, p := range l.disagree {
		needle := " " + p + " "
		if n := strings.Count(padded, needle); n > 0 {
			disagree += n
			padded = strings.ReplaceAll(padded, needle, " | ")
		}
	}
	for _, p := range l.agree {
		needle := " " + p + " "
		if n := strings.Count(padded, needle); n > 0 {
			agree += n
			padded = strings.ReplaceAll(padded, needle, " | ")
		}
	}
	return agree, disagree
}

// CheckAgreement is true when neither side is net negative and at least
// one side expresses agreement without any disagreement. No signals at
// all means no agreement.
func (l *Lexical) CheckAgreement(a, b string) bool {
	agreeA, disagreeA := l.Signals(a)
	agreeB, disagreeB := l.Signals(b)
	if agreeA-disagreeA < 0 || agreeB-disagreeB < 0 {
		return false
	}
	return (agreeA > 0 && disagreeA == 0) || (agreeB > 0 && disagreeB == 0)
}

// Agrees is true when text has at least one agreement phrase and no
// disagreement phrase.
func (l *Lexical) Agrees(text string) bool {
	agree, disagree := l.Signals(text)
	return agree > 0 && disagree == 0
}

// IsUnique applies the configured similarity threshold.
func (l *Lexical) IsUnique(candidate string, recent []string) bool {
	return IsUnique(candidate, recent, l.threshold)
}

// CheckTopicRelevance implements Evaluator.
func (l *Lexical) CheckTopicRelevance(text string, keywords Keywords) float64 {
	return CheckTopicRelevance(text, keywords)
}

// CheckConversationCoherence implements Evaluator.
func (l *Lexical) CheckConversationCoherence(current, previous string) float64 {
	return CheckConversationCoherence(current, previous)
}

var defaultLexical = NewLexical(LexicalConfig{})

// CheckAgreement runs the default phrase lists.
func CheckAgreement(a, b string) bool {
	return defaultLexical.CheckAgreement(a, b)
}
