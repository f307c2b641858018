// Package emb runs a sentence-embedding ONNX model with ONNX Runtime.
package emb

import (
	"errors"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Config locates the runtime library, the model and its tokenizer.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	// TokenTypeIDs feeds a token_type_ids input, needed by BERT exports.
	TokenTypeIDs bool
}

// Encoder turns text into mean-pooled, L2-normalised vectors.
type Encoder struct {
	mu      sync.Mutex
	cfg     Config
	tk      *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
}

var envOnce sync.Once
var envErr error

// Init loads the tokenizer and creates the inference session.
func (e *Encoder) Init(cfg Config) error {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return errors.New("emb: model and tokenizer paths are required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 512
	}
	envOnce.Do(func() {
		if cfg.OrtDLL != "" {
			ort.SetSharedLibraryPath(cfg.OrtDLL)
		}
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return fmt.Errorf("emb: initialize onnxruntime: %w", envErr)
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("emb: load tokenizer: %w", err)
	}
	inputs := []string{"input_ids", "attention_mask"}
	if cfg.TokenTypeIDs {
		inputs = append(inputs, "token_type_ids")
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs, []string{"last_hidden_state"}, nil)
	if err != nil {
		return fmt.Errorf("emb: create session: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.tk = tk
	e.session = session
	return nil
}

// Encode embeds one text.
func (e *Encoder) Encode(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("emb: encoder is not initialized")
	}
	enc, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("emb: tokenize: %w", err)
	}
	ids := enc.Ids
	mask := enc.AttentionMask
	if len(ids) > e.cfg.MaxSeqLen {
		ids = ids[:e.cfg.MaxSeqLen]
		mask = mask[:e.cfg.MaxSeqLen]
	}
	seq := len(ids)
	if seq == 0 {
		return nil, errors.New("emb: empty token sequence")
	}

	shape := ort.NewShape(1, int64(seq))
	idData := make([]int64, seq)
	maskData := make([]int64, seq)
	for i := range ids {
		idData[i] = int64(ids[i])
		maskData[i] = int64(mask[i])
	}
	idTensor, err := ort.NewTensor(shape, idData)
	if err != nil {
		return nil, fmt.Errorf("emb: input_ids tensor: %w", err)
	}
	defer idTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, maskData)
	if err != nil {
		return nil, fmt.Errorf("emb: attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := []ort.Value{idTensor, maskTensor}
	if e.cfg.TokenTypeIDs {
		typeTensor, err := ort.NewTensor(shape, make([]int64, seq))
		if err != nil {
			return nil, fmt.Errorf("emb: token_type_ids tensor: %w", err)
		}
		defer typeTensor.Destroy()
		inputs = append(inputs, typeTensor)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("emb: run: %w", err)
	}
	defer outputs[0].Destroy()
	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("emb: unexpected output type")
	}
	dims := hidden.GetShape()
	if len(dims) != 3 {
		return nil, fmt.Errorf("emb: unexpected output shape %v", dims)
	}
	return meanPool(hidden.GetData(), maskData, int(dims[1]), int(dims[2])), nil
}

// Close releases the session.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	e.tk = nil
}

func meanPool(data []float32, mask []int64, seq, dim int) []float32 {
	out := make([]float32, dim)
	var count float32
	for t := 0; t < seq && t < len(mask); t++ {
		if mask[t] == 0 {
			continue
		}
		count++
		row := data[t*dim : (t+1)*dim]
		for i, v := range row {
			out[i] += v
		}
	}
	if count == 0 {
		return out
	}
	var norm float64
	for i := range out {
		out[i] /= count
		norm += float64(out[i]) * float64(out[i])
	}
	if norm == 0 {
		return out
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out
}
