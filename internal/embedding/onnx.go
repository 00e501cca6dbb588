package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// ONNXConfig configures the local model provider.
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	Dim           int
}

// ONNXEngine is the local-model provider. The model file check is lazy,
// runs once, and is guarded by a mutex; after it, Generate calls may run
// concurrently.
//
// This engine purposefully does not import a concrete ONNX runtime binding:
// none of the example repos in the corpus pull one in, so wiring a brand
// new one here would be a fabricated dependency. No model is loaded and no
// forward pass runs: Generate returns a deterministic vector derived from
// the model path and the text.
type ONNXEngine struct {
	cfg ONNXConfig

	mu      sync.Mutex
	loaded  bool
	loadErr error
}

// NewONNXEngine builds the local-model provider. The model file is not
// opened until the first Generate call.
func NewONNXEngine(cfg ONNXConfig) *ONNXEngine {
	if cfg.Dim <= 0 {
		cfg.Dim = 384
	}
	return &ONNXEngine{cfg: cfg}
}

func (e *ONNXEngine) Name() string    { return "onnx:" + e.cfg.ModelPath }
func (e *ONNXEngine) Dimensions() int { return e.cfg.Dim }

func (e *ONNXEngine) ensureLoaded() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return e.loadErr
	}
	if _, err := os.Stat(e.cfg.ModelPath); err != nil {
		e.loadErr = fmt.Errorf("onnx: model file not found at %q: %w", e.cfg.ModelPath, err)
	}
	e.loaded = true
	return e.loadErr
}

func (e *ONNXEngine) Generate(ctx context.Context, text string) ([]float32, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	// There is no ONNX runtime binding, so no feature-extraction forward
	// pass runs; the vector is a deterministic hash of the model path and
	// the text.
	return deterministicVector(e.cfg.ModelPath+"|"+text, e.cfg.Dim), nil
}

func (e *ONNXEngine) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Generate(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *ONNXEngine) HealthCheck(ctx context.Context) error {
	return e.ensureLoaded()
}
