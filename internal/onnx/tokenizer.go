package onnx

// Truncation selects which end of an over-long sequence survives.
type Truncation string

const (
	// TruncateHead keeps the first tokens and drops the rest.
	TruncateHead Truncation = "head"
	// TruncateTail keeps the last tokens and drops the front.
	TruncateTail Truncation = "tail"
)

// TokenizerConfig holds tokenizer configuration.
type TokenizerConfig struct {
	MaxLength  int
	Truncation Truncation
}

// DefaultTokenizerConfig returns default configuration.
func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{
		MaxLength:  512,
		Truncation: TruncateHead,
	}
}

// Tokenizer converts text into fixed-length model input. The vocabulary
// is loaded from the model directory (tokenizer.json or vocab.txt).
type Tokenizer struct {
	maxLength  int
	truncation Truncation
	impl       tokenizerImpl
}

// tokenizerImpl is the vocabulary-specific tokenizer implementation.
type tokenizerImpl interface {
	tokenize(text string) ([]uint32, []string, error)
	decode(ids []uint32, skipSpecialTokens bool) string
	specials() specialTokens
	vocabSize() int
	close() error
}

// specialTokens holds the ids of the reserved vocabulary entries.
type specialTokens struct {
	pad uint32
	unk uint32
	cls uint32
	sep uint32
}

// NewTokenizer loads the vocabulary from modelDir and returns a
// tokenizer. Missing vocabulary assets are a configuration error.
func NewTokenizer(modelDir string, cfg TokenizerConfig) (*Tokenizer, error) {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultTokenizerConfig().MaxLength
	}
	if cfg.Truncation == "" {
		cfg.Truncation = TruncateHead
	}

	impl, err := newTokenizerImpl(modelDir)
	if err != nil {
		return nil, err
	}

	return &Tokenizer{
		maxLength:  cfg.MaxLength,
		truncation: cfg.Truncation,
		impl:       impl,
	}, nil
}

// Encoding holds the result of tokenizing one text: special tokens
// included, truncated, not yet padded.
type Encoding struct {
	IDs           []uint32
	AttentionMask []uint32
	Tokens        []string
}

// BatchEncoding is model-ready input. Every row has exactly SeqLength
// positions: ids and mask are flattened row-major, with mask 1 on real
// tokens and 0 on padding.
type BatchEncoding struct {
	InputIDs      []int64
	AttentionMask []int64
	BatchSize     int
	SeqLength     int
}

// Shape returns the tensor shape [batch_size, seq_length].
func (b *BatchEncoding) Shape() []int64 {
	return []int64{int64(b.BatchSize), int64(b.SeqLength)}
}

// Row returns the ids and mask of row i.
func (b *BatchEncoding) Row(i int) (ids, mask []int64) {
	offset := i * b.SeqLength
	return b.InputIDs[offset : offset+b.SeqLength], b.AttentionMask[offset : offset+b.SeqLength]
}

// Encode tokenizes a single text, wraps it in classifier specials and
// truncates deterministically to the configured maximum. Equal inputs
// always produce equal encodings.
func (t *Tokenizer) Encode(text string) (*Encoding, error) {
	ids, tokens, err := t.impl.tokenize(text)
	if err != nil {
		return nil, err
	}

	// Reserve two positions for [CLS] and [SEP].
	budget := t.maxLength - 2
	if budget < 0 {
		budget = 0
	}

	if len(ids) > budget {
		if t.truncation == TruncateTail {
			ids = ids[len(ids)-budget:]
			tokens = tokens[len(tokens)-budget:]
		} else {
			ids = ids[:budget]
			tokens = tokens[:budget]
		}
	}

	sp := t.impl.specials()

	outIDs := make([]uint32, 0, len(ids)+2)
	outTokens := make([]string, 0, len(tokens)+2)

	outIDs = append(outIDs, sp.cls)
	outTokens = append(outTokens, clsToken)
	outIDs = append(outIDs, ids...)
	outTokens = append(outTokens, tokens...)
	outIDs = append(outIDs, sp.sep)
	outTokens = append(outTokens, sepToken)

	mask := make([]uint32, len(outIDs))
	for i := range mask {
		mask[i] = 1
	}

	return &Encoding{
		IDs:           outIDs,
		AttentionMask: mask,
		Tokens:        outTokens,
	}, nil
}

// EncodeFixed tokenizes a batch and pads every row to the configured
// maximum length, so the output shape is [len(texts), MaxLength]
// regardless of input lengths.
func (t *Tokenizer) EncodeFixed(texts []string) (*BatchEncoding, error) {
	batchSize := len(texts)
	seqLen := t.maxLength
	sp := t.impl.specials()

	inputIDs := make([]int64, batchSize*seqLen)
	attentionMask := make([]int64, batchSize*seqLen)

	for i, text := range texts {
		enc, err := t.Encode(text)
		if err != nil {
			return nil, err
		}

		offset := i * seqLen
		for j, id := range enc.IDs {
			inputIDs[offset+j] = int64(id)
			attentionMask[offset+j] = 1
		}
		for j := len(enc.IDs); j < seqLen; j++ {
			inputIDs[offset+j] = int64(sp.pad)
		}
	}

	return &BatchEncoding{
		InputIDs:      inputIDs,
		AttentionMask: attentionMask,
		BatchSize:     batchSize,
		SeqLength:     seqLen,
	}, nil
}

// Decode converts token ids back to text. Used for debugging output.
func (t *Tokenizer) Decode(ids []uint32, skipSpecialTokens bool) string {
	return t.impl.decode(ids, skipSpecialTokens)
}

// MaxLength returns the fixed sequence length.
func (t *Tokenizer) MaxLength() int {
	return t.maxLength
}

// VocabSize returns the vocabulary size.
func (t *Tokenizer) VocabSize() int {
	return t.impl.vocabSize()
}

// Close releases tokenizer resources.
func (t *Tokenizer) Close() error {
	if t.impl != nil {
		return t.impl.close()
	}
	return nil
}
