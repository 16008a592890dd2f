package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

// fakeModel writes into the runner's output buffer on every Run.
type fakeModel struct {
	runs  int
	err   error
	write func(r *onnxRunner)
	r     *onnxRunner
}

func (m *fakeModel) Run() error {
	m.runs++
	if m.err != nil {
		return m.err
	}
	m.write(m.r)
	return nil
}

func newFakeRunner(maxTokens, dims int, tokenLevel bool, write func(r *onnxRunner)) (*onnxRunner, *fakeModel) {
	r := newONNXRunner(&SimpleTokenizer{}, maxTokens, dims, tokenLevel)
	m := &fakeModel{write: write, r: r}
	r.exec = m
	return r, m
}

func TestONNXRunner_buffers(t *testing.T) {
	r, _ := newFakeRunner(8, 4, false, nil)
	for name, buf := range map[string][]int64{"input_ids": r.inputIDs, "attention_mask": r.attentionMask, "token_type_ids": r.tokenTypeIDs} {
		if len(buf) != 8 {
			t.Errorf("%s has %d entries, want 8", name, len(buf))
		}
	}
	if len(r.output) != 4 {
		t.Errorf("pooled output has %d entries, want 4", len(r.output))
	}

	tr, _ := newFakeRunner(8, 4, true, nil)
	if len(tr.output) != 32 {
		t.Errorf("token output has %d entries, want 32", len(tr.output))
	}
}

func TestONNXRunner_feedsTokenizedInput(t *testing.T) {
	var seenIDs, seenMask []int64
	r, m := newFakeRunner(8, 2, false, func(r *onnxRunner) {
		seenIDs = append([]int64(nil), r.inputIDs...)
		seenMask = append([]int64(nil), r.attentionMask...)
		r.output[0], r.output[1] = 3, 4
	})

	vec, err := r.embed(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}
	wantIDs, wantMask, _ := (&SimpleTokenizer{}).Tokenize("hello world", 8)
	for i := range wantIDs {
		if seenIDs[i] != wantIDs[i] || seenMask[i] != wantMask[i] {
			t.Fatalf("token %d: got (%d,%d), want (%d,%d)", i, seenIDs[i], seenMask[i], wantIDs[i], wantMask[i])
		}
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Errorf("pooled output not normalized: %v", vec)
	}

	// a shorter text must not leave tokens of the previous one behind
	if _, err := r.embed(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	ids, mask, _ := (&SimpleTokenizer{}).Tokenize("hi", 8)
	for i := range ids {
		if seenIDs[i] != ids[i] || seenMask[i] != mask[i] {
			t.Fatalf("token %d of second input: got (%d,%d), want (%d,%d)", i, seenIDs[i], seenMask[i], ids[i], mask[i])
		}
	}
	if m.runs != 2 {
		t.Errorf("runs = %d, want 2", m.runs)
	}
}

func TestONNXRunner_meanPoolsTokenOutput(t *testing.T) {
	r, _ := newFakeRunner(4, 2, true, func(r *onnxRunner) {
		// one row per token; padded rows must not contribute
		for tok := 0; tok < 4; tok++ {
			r.output[tok*2] = float32(tok + 1)
			r.output[tok*2+1] = 100
		}
	})
	vec, err := r.embed(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	// "a" is [CLS] a [SEP] plus one padded slot, so rows 0..2 average to (2, 100)
	want := []float64{2, 100}
	norm := math.Sqrt(want[0]*want[0] + want[1]*want[1])
	for i := range want {
		if math.Abs(float64(vec[i])-want[i]/norm) > 1e-6 {
			t.Fatalf("vec = %v, want %v", vec, []float64{want[0] / norm, want[1] / norm})
		}
	}
}

func TestONNXRunner_errors(t *testing.T) {
	boom := errors.New("session broken")
	r, m := newFakeRunner(4, 2, false, nil)
	m.err = boom
	if _, err := r.embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.embed(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if m.runs != 1 {
		t.Errorf("cancelled call ran the model: runs = %d", m.runs)
	}
}

func TestMeanPool(t *testing.T) {
	dst := []float32{9, 9}
	meanPool(dst, []float32{1, 2, 3, 4, 5, 6}, []int64{1, 0, 1})
	if dst[0] != 3 || dst[1] != 4 {
		t.Errorf("dst = %v, want [3 4]", dst)
	}
	meanPool(dst, []float32{1, 2}, []int64{0})
	if dst[0] != 0 || dst[1] != 0 {
		t.Errorf("no attended tokens: dst = %v, want zeros", dst)
	}
}

func TestTokenLevelOutput(t *testing.T) {
	tests := []struct {
		shape   []int64
		dims    int
		want    bool
		wantErr bool
	}{
		{[]int64{1, 384}, 384, false, false},
		{[]int64{-1, 384}, 384, false, false},
		{[]int64{-1, -1, 384}, 384, true, false},
		{[]int64{1, 128, -1}, 384, true, false},
		{[]int64{1, 768}, 384, false, true},
		{[]int64{384}, 384, false, true},
		{[]int64{1, 2, 3, 384}, 384, false, true},
	}
	for _, tt := range tests {
		got, err := tokenLevelOutput(tt.shape, tt.dims)
		if (err != nil) != tt.wantErr {
			t.Errorf("shape %v: err = %v, wantErr %v", tt.shape, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("shape %v: tokenLevel = %v, want %v", tt.shape, got, tt.want)
		}
	}
}
