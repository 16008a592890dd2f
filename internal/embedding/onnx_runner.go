package embedding

import (
	"context"
	"fmt"
	"sync"
)

// modelRunner executes one inference over buffers bound at session creation.
type modelRunner interface {
	Run() error
}

// onnxRunner owns the input and output buffers of a BERT-style model. The buffers are
// the backing arrays of the session's tensors, so writing them feeds the next Run.
type onnxRunner struct {
	exec       modelRunner
	tokenizer  Tokenizer
	maxTokens  int
	dimensions int
	// tokenLevel is set when the model emits one vector per token instead of a
	// pooled sentence vector.
	tokenLevel bool

	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	output        []float32

	mu sync.Mutex
}

func newONNXRunner(tokenizer Tokenizer, maxTokens, dimensions int, tokenLevel bool) *onnxRunner {
	outputLen := dimensions
	if tokenLevel {
		outputLen = maxTokens * dimensions
	}
	ids, mask, types := tokenizer.Tokenize("", maxTokens)
	return &onnxRunner{
		tokenizer:     tokenizer,
		maxTokens:     maxTokens,
		dimensions:    dimensions,
		tokenLevel:    tokenLevel,
		inputIDs:      ids,
		attentionMask: mask,
		tokenTypeIDs:  types,
		output:        make([]float32, outputLen),
	}
}

func (r *onnxRunner) embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, mask, types := r.tokenizer.Tokenize(text, r.maxTokens)
	copy(r.inputIDs, ids)
	copy(r.attentionMask, mask)
	copy(r.tokenTypeIDs, types)

	if err := r.exec.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, r.dimensions)
	if r.tokenLevel {
		meanPool(vec, r.output, r.attentionMask)
	} else {
		copy(vec, r.output[:r.dimensions])
	}
	NormalizeL2(vec)
	return vec, nil
}

// meanPool writes into dst the average of the rows of hidden whose mask entry is set.
// hidden is row-major with len(dst) columns.
func meanPool(dst, hidden []float32, mask []int64) {
	dims := len(dst)
	clear(dst)
	var n float32
	for t, m := range mask {
		if m == 0 || (t+1)*dims > len(hidden) {
			continue
		}
		for i, v := range hidden[t*dims : (t+1)*dims] {
			dst[i] += v
		}
		n++
	}
	if n == 0 {
		return
	}
	for i := range dst {
		dst[i] /= n
	}
}

// tokenLevelOutput reports whether a model output of the given shape is per token
// ([batch, tokens, dims]) rather than pooled ([batch, dims]). Dynamic axes are
// reported as non-positive sizes and match anything.
func tokenLevelOutput(shape []int64, dimensions int) (bool, error) {
	if len(shape) < 2 || len(shape) > 3 {
		return false, fmt.Errorf("unsupported output shape %v", shape)
	}
	if last := shape[len(shape)-1]; last > 0 && last != int64(dimensions) {
		return false, fmt.Errorf("model output has %d dimensions, configured %d", last, dimensions)
	}
	return len(shape) == 3, nil
}
