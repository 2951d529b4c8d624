package titlematch

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

var numberRegex = regexp.MustCompile(`\b(\d+)\b`)

// Confidence buckets a similarity score.
type Confidence int

const (
	ConfidenceNone   Confidence = iota // < 0.70
	ConfidenceLow                      // >= 0.70
	ConfidenceMedium                   // >= 0.85
	ConfidenceHigh                     // >= 0.95
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// ConfidenceOf returns the bucket for score.
func ConfidenceOf(score float64) Confidence {
	switch {
	case score >= 0.95:
		return ConfidenceHigh
	case score >= 0.85:
		return ConfidenceMedium
	case score >= 0.70:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// Score returns the similarity of title to term in [0, 1].
// Jaro-Winkler on cleaned titles, adjusted when the term names a sequence
// number ("Alien 3") that the title does or does not carry.
func Score(term, title string) float64 {
	a, b := Clean(term), Clean(title)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	score := float64(edlib.JaroWinklerSimilarity(a, b))

	// A title that starts with every word of the term ranks above an
	// unrelated one that merely shares a prefix.
	if strings.HasPrefix(b, a+" ") {
		score = max(score, 0.9)
	}
	return adjustForNumbers(score, numberRegex.FindAllString(a, -1), numberRegex.FindAllString(b, -1))
}

func adjustForNumbers(score float64, termNums, titleNums []string) float64 {
	if len(termNums) == 0 {
		return score
	}
	if len(titleNums) == 0 {
		return score * 0.85
	}
	have := make(map[string]bool, len(titleNums))
	for _, n := range titleNums {
		have[n] = true
	}
	for _, n := range termNums {
		if have[n] {
			return min(score*1.05, 1.0)
		}
	}
	return score * 0.90
}

// Ranked is one title with its score and original position.
type Ranked struct {
	Index int
	Title string
	Score float64
}

// Rank scores titles against term and returns them best first.
// Equal scores keep their input order.
func Rank(term string, titles []string) []Ranked {
	out := make([]Ranked, len(titles))
	for i, t := range titles {
		out[i] = Ranked{Index: i, Title: t, Score: Score(term, t)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
