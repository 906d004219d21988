// Package arb matches equivalent markets across platforms and scans
// paired prices for cost inequalities.
package arb

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/polyquant/polyquant/pkg/hashset"
)

// StandardMarket is a platform-neutral view of one binary market.
// YesPrice and NoPrice are the current costs of the two sides in
// [0, 1].
type StandardMarket struct {
	Platform string
	ID       string
	Title    string
	YesPrice float64
	NoPrice  float64

	keywords hashset.Set[string]
}

// Keywords returns the set of matching keywords in m's title,
// computed once.
func (m *StandardMarket) Keywords() hashset.Set[string] {
	if m.keywords == nil {
		m.keywords = Keywords(m.Title)
	}
	return m.keywords
}

var stopwords = hashset.SetFromSlice([]string{
	"a", "an", "and", "are", "at", "be", "by", "for", "in", "is",
	"it", "of", "on", "or", "the", "to", "will", "with",
})

// Keywords tokenizes a market title into its significant lowercase
// words. Stopwords and single-character tokens carry no matching
// signal and are dropped.
func Keywords(title string) hashset.Set[string] {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := hashset.NewSet[string]()
	for _, w := range words {
		if len(w) < 2 || stopwords.Has(w) {
			continue
		}
		set.Set(w)
	}
	return set
}

// Similarity is the Jaccard index of two keyword sets.
func Similarity(a, b hashset.Set[string]) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := len(a.Intersect(b))
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// Index buckets markets by keyword so candidate pairs are found
// without comparing every market against every other.
type Index struct {
	byKeyword map[string][]*StandardMarket
}

func NewIndex(markets []*StandardMarket) *Index {
	ix := &Index{byKeyword: make(map[string][]*StandardMarket)}
	for _, m := range markets {
		for kw := range m.Keywords() {
			ix.byKeyword[kw] = append(ix.byKeyword[kw], m)
		}
	}
	return ix
}

// Candidates returns the markets on other platforms that share at
// least one keyword with m, each at most once.
func (ix *Index) Candidates(m *StandardMarket) []*StandardMarket {
	seen := hashset.NewSet[*StandardMarket]()
	var out []*StandardMarket

	for kw := range m.Keywords() {
		for _, other := range ix.byKeyword[kw] {
			if other == m || other.Platform == m.Platform || seen.Has(other) {
				continue
			}
			seen.Set(other)
			out = append(out, other)
		}
	}
	return out
}

// Opportunity is a matched pair whose combined cost of opposite sides
// is below one. Edge is 1 - cost, before fees.
type Opportunity struct {
	Buy        *StandardMarket // YES side
	Hedge      *StandardMarket // NO side
	Cost       float64
	Edge       float64
	Similarity float64
}

// Scan pairs every market against its keyword candidates and reports
// the pairs where buying YES on one and NO on the other costs less
// than one, minus feeBuffer. Pairs below minSimilarity are assumed to
// be different questions and skipped. Results are ordered by edge,
// best first.
func Scan(markets []*StandardMarket, minSimilarity, feeBuffer float64) []Opportunity {
	ix := NewIndex(markets)

	var opps []Opportunity
	for _, m := range markets {
		for _, other := range ix.Candidates(m) {
			// Each unordered pair once, with m always the YES side.
			if m.Platform > other.Platform {
				continue
			}
			sim := Similarity(m.Keywords(), other.Keywords())
			if sim < minSimilarity {
				continue
			}
			opps = append(opps, pairOpportunities(m, other, sim, feeBuffer)...)
		}
	}

	sort.Slice(opps, func(i, j int) bool { return opps[i].Edge > opps[j].Edge })
	return opps
}

// pairOpportunities checks both orientations of one matched pair.
func pairOpportunities(a, b *StandardMarket, sim, feeBuffer float64) []Opportunity {
	var opps []Opportunity
	for _, o := range [2]Opportunity{
		{Buy: a, Hedge: b, Cost: a.YesPrice + b.NoPrice},
		{Buy: b, Hedge: a, Cost: b.YesPrice + a.NoPrice},
	} {
		if o.Cost <= 0 {
			// A missing quote shows up as zero; not tradable.
			continue
		}
		if o.Cost < 1-feeBuffer {
			o.Edge = 1 - o.Cost
			o.Similarity = sim
			opps = append(opps, o)
		}
	}
	return opps
}

// VectorDim is the dimensionality of hashed title vectors. Small
// enough for an exhaustive pgvector scan over every listed market.
const VectorDim = 256

// TitleVector embeds a title as an L2-normalized hashed bag of
// words, so near-duplicate questions land close under the pgvector
// distance operator.
func TitleVector(title string) []float32 {
	vec := make([]float32, VectorDim)
	for kw := range Keywords(title) {
		vec[bucket(kw)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// bucket is FNV-1a over the keyword, folded into the vector dimension.
func bucket(s string) int {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var h uint64 = offset64
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return int(h % VectorDim)
}
