//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

var onnxInputNames = []string{"input_ids", "attention_mask", "token_type_ids"}

// ONNXEmbedder runs a local sentence-embedding model with ONNX Runtime. It requires CGO
// and the onnxruntime shared library. Models emitting token vectors are mean pooled
// over the attention mask. Calls are serialized on the shared tensors.
type ONNXEmbedder struct {
	*onnxRunner
	model   string
	session *ort.AdvancedSession
	tensors []ort.ArbitraryTensor
}

// NewONNXEmbedder loads the model at modelPath; model is the identifier recorded with
// collections built from it.
func NewONNXEmbedder(modelPath, model string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if dimensions <= 0 || maxTokens <= 1 {
		return nil, fmt.Errorf("invalid onnx shape: dimensions=%d max_tokens=%d", dimensions, maxTokens)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	_, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", modelPath, err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no outputs", modelPath)
	}
	tokenLevel, err := tokenLevelOutput(outputs[0].Dimensions, dimensions)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelPath, err)
	}

	runner := newONNXRunner(&SimpleTokenizer{}, maxTokens, dimensions, tokenLevel)
	e := &ONNXEmbedder{onnxRunner: runner, model: model}

	inputShape := ort.NewShape(1, int64(maxTokens))
	for _, data := range [][]int64{runner.inputIDs, runner.attentionMask, runner.tokenTypeIDs} {
		t, err := ort.NewTensor(inputShape, data)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		e.tensors = append(e.tensors, t)
	}
	outputShape := ort.NewShape(1, int64(dimensions))
	if tokenLevel {
		outputShape = ort.NewShape(1, int64(maxTokens), int64(dimensions))
	}
	out, err := ort.NewTensor(outputShape, runner.output)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	e.tensors = append(e.tensors, out)

	session, err := ort.NewAdvancedSession(modelPath,
		onnxInputNames, []string{outputs[0].Name},
		e.tensors[:3], e.tensors[3:], nil)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	e.session = session
	runner.exec = session
	return e, nil
}

// Embed runs the model on text and returns the L2-normalized output.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text)
}

// EmbedBatch calls Embed for each text.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

func (e *ONNXEmbedder) Model() string { return e.model }

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var errs []error
	if e.session != nil {
		errs = append(errs, e.session.Destroy())
		e.session = nil
	}
	for _, t := range e.tensors {
		errs = append(errs, t.Destroy())
	}
	e.tensors = nil
	return errors.Join(errs...)
}
