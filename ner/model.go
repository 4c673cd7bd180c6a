// Package ner runs a local ONNX token-classification model and exposes the
// recognized entity spans. The model is optional infrastructure: callers that
// get an init error run without it.
package ner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// Span labels use the CoNLL categories the bundled models are trained on.
const (
	LabelPerson       = "PER"
	LabelOrganization = "ORG"
	LabelLocation     = "LOC"
	LabelMisc         = "MISC"
)

// Span is one recognized entity: its surface text, label and byte offsets
// into the input.
type Span struct {
	Text  string
	Label string
	Start int
	End   int
}

// Recognizer finds entity spans in plain text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Span, error)
}

// Config locates the ONNX runtime and model artifacts.
type Config struct {
	// LibraryPath is the onnxruntime shared library (.so/.dll/.dylib).
	LibraryPath string
	// ModelPath is the exported token-classification model (model.onnx).
	ModelPath string
	// TokenizerPath is the HuggingFace tokenizer.json next to the model.
	TokenizerPath string
	// MaxSeqLen caps the token window per inference pass. Defaults to 512.
	MaxSeqLen int
	// Labels maps class index to BIO tag. Defaults to the bert-base-NER
	// label order.
	Labels []string
}

// bert-base-NER class order.
var defaultLabels = []string{
	"O", "B-MISC", "I-MISC", "B-PER", "I-PER", "B-ORG", "I-ORG", "B-LOC", "I-LOC",
}

// Model is a Recognizer backed by an ONNX session. Run calls are serialized;
// the model is small enough that a single session keeps up with the scan
// worker pool.
type Model struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	tk      *tokenizer.Tokenizer
	labels  []string
	maxSeq  int
}

var ortInitOnce sync.Once
var ortInitErr error

// initRuntime initializes the process-wide ONNX environment exactly once.
func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// New loads the tokenizer and opens an inference session.
func New(cfg Config) (*Model, error) {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, errors.New("ner: model and tokenizer paths are required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 512
	}
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = defaultLabels
	}

	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("ner: initialize onnxruntime: %w", err)
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("ner: load tokenizer %s: %w", cfg.TokenizerPath, err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("ner: open session %s: %w", cfg.ModelPath, err)
	}

	return &Model{session: session, tk: tk, labels: labels, maxSeq: cfg.MaxSeqLen}, nil
}

var (
	sharedOnce  sync.Once
	sharedModel *Model
	sharedErr   error
)

// Shared returns a process-wide model instance, created on first use. All
// scan workers share it.
func Shared(cfg Config) (*Model, error) {
	sharedOnce.Do(func() {
		sharedModel, sharedErr = New(cfg)
		if sharedErr != nil {
			log.Printf("Warning: NER model unavailable: %v", sharedErr)
		}
	})
	return sharedModel, sharedErr
}

// Close releases the session. The shared ONNX environment stays up for the
// life of the process.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			return err
		}
		m.session = nil
	}
	return nil
}

// Recognize tokenizes the text, runs one forward pass and decodes BIO tags
// into spans. Text longer than the sequence window is truncated; callers
// chunk documents before handing them here.
func (m *Model) Recognize(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, errors.New("ner: model is closed")
	}

	en, err := m.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("ner: tokenize: %w", err)
	}

	ids := en.Ids
	mask := en.AttentionMask
	offsets := en.Offsets
	special := en.SpecialTokenMask
	if len(ids) > m.maxSeq {
		ids = ids[:m.maxSeq]
		mask = mask[:m.maxSeq]
		offsets = offsets[:m.maxSeq]
		special = special[:m.maxSeq]
	}
	seqLen := len(ids)
	if seqLen == 0 {
		return nil, nil
	}

	inputIds := make([]int64, seqLen)
	attention := make([]int64, seqLen)
	for i := range ids {
		inputIds[i] = int64(ids[i])
		attention[i] = int64(mask[i])
	}

	shape := ort.NewShape(1, int64(seqLen))
	idTensor, err := ort.NewTensor(shape, inputIds)
	if err != nil {
		return nil, fmt.Errorf("ner: input tensor: %w", err)
	}
	defer idTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attention)
	if err != nil {
		return nil, fmt.Errorf("ner: mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{idTensor, maskTensor}, outputs); err != nil {
		return nil, fmt.Errorf("ner: inference: %w", err)
	}
	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("ner: unexpected output type %T", outputs[0])
	}
	defer logitsTensor.Destroy()

	logits := logitsTensor.GetData()
	numLabels := len(m.labels)
	if len(logits) < seqLen*numLabels {
		return nil, fmt.Errorf("ner: logits shape mismatch: %d values for %d tokens", len(logits), seqLen)
	}

	tags := make([]string, seqLen)
	for i := 0; i < seqLen; i++ {
		row := logits[i*numLabels : (i+1)*numLabels]
		best := 0
		for j := 1; j < numLabels; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		tags[i] = m.labels[best]
	}

	return decodeBIO(text, tags, offsets, special), nil
}

// decodeBIO stitches token tags into contiguous spans. An I- tag without a
// matching open span starts a new one; subword tokens extend the span via
// their offsets.
func decodeBIO(text string, tags []string, offsets [][]int, special []int) []Span {
	var spans []Span
	var cur *Span

	flush := func() {
		if cur != nil && cur.End > cur.Start {
			cur.Text = text[cur.Start:cur.End]
			spans = append(spans, *cur)
		}
		cur = nil
	}

	for i, tag := range tags {
		if i < len(special) && special[i] == 1 {
			flush()
			continue
		}
		if i >= len(offsets) || len(offsets[i]) < 2 {
			continue
		}
		start, end := offsets[i][0], offsets[i][1]
		if end <= start || end > len(text) {
			continue
		}

		switch {
		case tag == "O":
			flush()
		case strings.HasPrefix(tag, "B-"):
			flush()
			cur = &Span{Label: tag[2:], Start: start, End: end}
		case strings.HasPrefix(tag, "I-"):
			label := tag[2:]
			if cur != nil && cur.Label == label {
				cur.End = end
			} else {
				flush()
				cur = &Span{Label: label, Start: start, End: end}
			}
		default:
			flush()
		}
	}
	flush()
	return spans
}
