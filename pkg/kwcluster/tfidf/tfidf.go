// Package tfidf computes smoothed TF-IDF vectors and cosine similarity
// over a fixed document corpus.
package tfidf

import "math"

// Vector is a sparse TF-IDF vector with its precomputed L2 norm.
type Vector struct {
	weights map[string]float64
	norm    float64
}

// Vectorizer holds document frequencies for one corpus.
//
// IDF uses the smoothed form ln((N+1)/(df+1)) + 1, where N is the number
// of documents and df the number of documents containing the term.
type Vectorizer struct {
	df map[string]int
	n  int
}

// NewVectorizer counts document frequencies over the corpus. Each
// document is a bag of terms; repeated terms within one document count
// once toward df.
func NewVectorizer(docs [][]string) *Vectorizer {
	v := &Vectorizer{df: make(map[string]int), n: len(docs)}
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, term := range doc {
			if term == "" {
				continue
			}
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			v.df[term]++
		}
	}
	return v
}

// IDF returns the smoothed inverse document frequency for a term.
func (v *Vectorizer) IDF(term string) float64 {
	return math.Log(float64(v.n+1)/float64(v.df[term]+1)) + 1
}

// Vector builds the TF-IDF vector for one document's terms.
func (v *Vectorizer) Vector(terms []string) Vector {
	tf := make(map[string]float64, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		tf[term]++
	}

	weights := make(map[string]float64, len(tf))
	var sumSq float64
	for term, count := range tf {
		w := count * v.IDF(term)
		weights[term] = w
		sumSq += w * w
	}

	return Vector{weights: weights, norm: math.Sqrt(sumSq)}
}

// Cosine returns the cosine similarity of two vectors in [0, 1].
// Zero vectors have similarity 0 with everything.
func Cosine(a, b Vector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}

	// Iterate the smaller map.
	small, large := a.weights, b.weights
	if len(large) < len(small) {
		small, large = large, small
	}

	var dot float64
	for term, w := range small {
		if other, ok := large[term]; ok {
			dot += w * other
		}
	}

	sim := dot / (a.norm * b.norm)
	if sim > 1 {
		sim = 1 // guard against float drift
	}
	return sim
}
