package index

import (
	"math"
	"sort"
)

const (
	k1 = 1.2
	b  = 0.75
)

// Scored is a ranked link id.
type Scored struct {
	LinkID int64
	Score  float64
}

// Rank scores the links that match every query term with BM25. postingsPerTerm
// maps each query term to the postings of the index terms it prefixes; term
// frequency is summed across fields, so a term seen in both title and link
// outranks one seen only once. Ties go to the higher (newer) link id.
func Rank(postingsPerTerm map[string][]Posting, stats Stats) []Scored {
	type acc struct {
		score float64
		terms int
	}
	scores := make(map[int64]*acc)

	for _, postings := range postingsPerTerm {
		tf := make(map[int64]int)
		docLen := make(map[int64]int)
		for _, p := range postings {
			tf[p.LinkID] += p.Freq
			docLen[p.LinkID] = p.DocLen
		}
		idf := computeIDF(int64(stats.Docs), int64(len(tf)))
		for id, freq := range tf {
			a, ok := scores[id]
			if !ok {
				a = &acc{}
				scores[id] = a
			}
			a.score += idf * computeTFNorm(float64(freq), float64(docLen[id]), stats.AvgDocLen)
			a.terms++
		}
	}

	result := make([]Scored, 0, len(scores))
	for id, a := range scores {
		if a.terms != len(postingsPerTerm) {
			continue
		}
		result = append(result, Scored{
			LinkID: id,
			Score:  math.Round(a.score*10000) / 10000,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].LinkID > result[j].LinkID
	})
	return result
}

func computeIDF(totalDocs, docFreq int64) float64 {
	if totalDocs < docFreq {
		totalDocs = docFreq
	}
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength <= 0 {
		avgDocLength = 1
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
