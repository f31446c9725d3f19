// Package onnx runs the oral disease classifier with ONNX Runtime.
package onnx

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/okian/oralscan/internal/domain/model"
)

var (
	envMu      sync.Mutex
	envStarted bool
)

// ErrShapeMismatch is returned when an input tensor does not fit the session.
var ErrShapeMismatch = errors.New("input tensor does not match model input")

// Init loads the ONNX Runtime shared library and initializes the process-wide
// environment. libPath may be empty to use the platform default.
func Init(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envStarted {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnx environment: %w", err)
	}
	envStarted = true
	return nil
}

// Shutdown destroys the environment. Every Runner must be closed first.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !envStarted {
		return nil
	}
	envStarted = false
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("destroy onnx environment: %w", err)
	}
	return nil
}

// Spec describes the model graph a Runner binds to.
type Spec struct {
	ModelPath   string
	InputName   string
	OutputName  string
	InputShape  []int64
	OutputWidth int
}

// Runner owns one session with preallocated input and output tensors.
// Run is not safe for concurrent use.
type Runner struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewRunner creates a session for spec. Init must have been called.
func NewRunner(spec Spec) (*Runner, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(spec.OutputWidth)))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(spec.ModelPath,
		[]string{spec.InputName}, []string{spec.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create onnx session for %s: %w", spec.ModelPath, err)
	}
	return &Runner{session: session, input: input, output: output}, nil
}

// NewRunners creates n runners over the same model, one per inference worker.
// A single validation pass with a zero tensor confirms the output width.
func NewRunners(spec Spec, n int) ([]*Runner, error) {
	runners := make([]*Runner, 0, n)
	closeAll := func() {
		for _, r := range runners {
			_ = r.Close()
		}
	}
	for i := 0; i < n; i++ {
		r, err := NewRunner(spec)
		if err != nil {
			closeAll()
			return nil, err
		}
		runners = append(runners, r)
	}
	if len(runners) > 0 {
		if err := runners[0].Validate(); err != nil {
			closeAll()
			return nil, err
		}
	}
	return runners, nil
}

// Run copies in into the session input, runs the graph and returns a copy of
// the output scores.
func (r *Runner) Run(in model.Tensor) (model.Distribution, error) {
	dst := r.input.GetData()
	if len(in.Data) != len(dst) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrShapeMismatch, len(in.Data), len(dst))
	}
	copy(dst, in.Data)

	if err := r.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := r.output.GetData()
	dist := make(model.Distribution, len(out))
	copy(dist, out)
	return dist, nil
}

// Validate runs a zero input through the graph.
func (r *Runner) Validate() error {
	zero := model.Tensor{Data: make([]float32, len(r.input.GetData()))}
	if _, err := r.Run(zero); err != nil {
		return fmt.Errorf("model validation: %w", err)
	}
	return nil
}

// Close releases the session and its tensors.
func (r *Runner) Close() error {
	var errs []error
	if r.session != nil {
		errs = append(errs, r.session.Destroy())
	}
	if r.input != nil {
		errs = append(errs, r.input.Destroy())
	}
	if r.output != nil {
		errs = append(errs, r.output.Destroy())
	}
	return errors.Join(errs...)
}
