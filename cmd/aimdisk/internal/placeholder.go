package internal

// Generator fabricates placeholder embeddings for demo disks. Real
// deployments get vectors from an embedding service; the engine itself
// never fabricates them.
//
// The sequence is a fixed linear congruential generator, so two runs over
// the same input produce the same disk.
type Generator struct {
	seed uint32
}

// NewGenerator returns a generator at the start of the sequence.
func NewGenerator() *Generator {
	return &Generator{seed: 1}
}

// Next returns the next value in [0, 1).
func (g *Generator) Next() float32 {
	g.seed = g.seed*1103515245 + 12345
	return float32(g.seed>>16) / 65536.0
}

// Vector returns the next dim values as one embedding.
func (g *Generator) Vector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = g.Next()
	}
	return v
}
