package semantic

import (
	"context"
	"math"
	"strings"
)

// Mode records how a grouping was produced.
type Mode string

const (
	// ModeSemantic means embeddings were obtained and articles were grouped
	// by title similarity.
	ModeSemantic Mode = "semantic"
	// ModeDegraded means the embedding service was unavailable and every
	// article became its own group. Nothing is dropped on degradation.
	ModeDegraded Mode = "degraded"
)

// Grouping is the outcome of clustering a batch of titles. Groups holds
// indexes into the input slice; every input index appears in exactly one
// group.
type Grouping struct {
	Mode   Mode
	Groups [][]int
}

// Clusterer groups article titles by meaning using average-linkage
// agglomerative clustering over cosine distance.
type Clusterer struct {
	embedder      Embedder
	similarityMin float64
}

// NewClusterer builds a Clusterer. similarityMin is the cosine similarity two
// groups must reach to merge; 0.4 is a reasonable floor for short headlines.
func NewClusterer(embedder Embedder, similarityMin float64) *Clusterer {
	if similarityMin <= 0 || similarityMin >= 1 {
		similarityMin = 0.4
	}
	return &Clusterer{
		embedder:      embedder,
		similarityMin: similarityMin,
	}
}

// Group clusters the given titles. When the embedder fails the result is a
// degraded grouping of singletons rather than an error, so upstream batches
// still land in storage.
func (c *Clusterer) Group(ctx context.Context, titles []string) (Grouping, error) {
	if len(titles) == 0 {
		return Grouping{Mode: ModeSemantic}, nil
	}
	if len(titles) == 1 {
		return Grouping{Mode: ModeSemantic, Groups: [][]int{{0}}}, nil
	}

	texts := make([]string, len(titles))
	for i, title := range titles {
		texts[i] = strings.TrimSpace(title)
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return Grouping{Mode: ModeDegraded, Groups: singletonGroups(len(titles))}, nil
	}
	// A count mismatch is treated like any other model failure: singletons,
	// so the batch still lands in storage.
	if len(vectors) != len(titles) {
		return Grouping{Mode: ModeDegraded, Groups: singletonGroups(len(titles))}, nil
	}

	normalized := make([][]float64, len(vectors))
	for i, vector := range vectors {
		normalized[i] = unitNormalize(vector)
	}

	groups := agglomerate(normalized, 1-c.similarityMin)
	return Grouping{Mode: ModeSemantic, Groups: groups}, nil
}

func singletonGroups(n int) [][]int {
	groups := make([][]int, n)
	for i := range groups {
		groups[i] = []int{i}
	}
	return groups
}

func unitNormalize(vector []float64) []float64 {
	var sum float64
	for _, v := range vector {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vector
	}
	out := make([]float64, len(vector))
	for i, v := range vector {
		out[i] = v / norm
	}
	return out
}

// agglomerate merges clusters bottom-up using average linkage over cosine
// distance, stopping once the closest pair is farther apart than maxDistance.
func agglomerate(vectors [][]float64, maxDistance float64) [][]int {
	n := len(vectors)
	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	distance := make([][]float64, n)
	for i := range distance {
		distance[i] = make([]float64, n)
		for j := range distance[i] {
			if i == j {
				continue
			}
			distance[i][j] = cosineDistance(vectors[i], vectors[j])
		}
	}

	for len(clusters) > 1 {
		bestI, bestJ := -1, -1
		bestDistance := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := averageLinkage(clusters[i], clusters[j], distance)
				if d < bestDistance {
					bestDistance = d
					bestI, bestJ = i, j
				}
			}
		}
		if bestDistance > maxDistance {
			break
		}

		clusters[bestI] = append(clusters[bestI], clusters[bestJ]...)
		clusters = append(clusters[:bestJ], clusters[bestJ+1:]...)
	}

	return clusters
}

func averageLinkage(a, b []int, distance [][]float64) float64 {
	var total float64
	for _, i := range a {
		for _, j := range b {
			total += distance[i][j]
		}
	}
	return total / float64(len(a)*len(b))
}

func cosineDistance(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	// Vectors are unit-normalized, so cosine similarity is the dot product.
	return 1 - dot
}
