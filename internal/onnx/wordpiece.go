package onnx

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
)

const (
	padToken = "[PAD]"
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"

	// Words longer than this are mapped straight to [UNK].
	maxWordChars = 100
)

// wordpieceTokenizer implements WordPiece subword tokenization over a
// vocabulary loaded from the model directory.
type wordpieceTokenizer struct {
	vocab     map[string]uint32
	invVocab  map[uint32]string
	special   specialTokens
	lowercase bool
}

var _ tokenizerImpl = (*wordpieceTokenizer)(nil)

func newTokenizerImpl(modelDir string) (tokenizerImpl, error) {
	vocab, err := loadVocab(modelDir)
	if err != nil {
		return nil, err
	}

	special, err := resolveSpecials(vocab)
	if err != nil {
		return nil, err
	}

	invVocab := make(map[uint32]string, len(vocab))
	for token, id := range vocab {
		invVocab[id] = token
	}

	return &wordpieceTokenizer{
		vocab:     vocab,
		invVocab:  invVocab,
		special:   special,
		lowercase: readLowercaseFlag(modelDir),
	}, nil
}

// loadVocab reads the vocabulary from tokenizer.json or vocab.txt.
func loadVocab(modelDir string) (map[string]uint32, error) {
	jsonPath := filepath.Join(modelDir, "tokenizer.json")
	if _, err := os.Stat(jsonPath); err == nil {
		return loadVocabJSON(jsonPath)
	}

	txtPath := filepath.Join(modelDir, "vocab.txt")
	if _, err := os.Stat(txtPath); err == nil {
		return loadVocabTxt(txtPath)
	}

	return nil, errors.ConfigurationError(
		fmt.Sprintf("tokenizer vocabulary not found in %s: expected tokenizer.json or vocab.txt", modelDir), nil)
}

// loadVocabJSON reads a HuggingFace fast-tokenizer file. Only the
// vocabulary and added tokens are used.
func loadVocabJSON(path string) (map[string]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigurationError("failed to read "+path, err)
	}

	var doc struct {
		Model struct {
			Vocab map[string]uint32 `json:"vocab"`
		} `json:"model"`
		AddedTokens []struct {
			ID      uint32 `json:"id"`
			Content string `json:"content"`
		} `json:"added_tokens"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.ConfigurationError("failed to parse "+path, err)
	}

	if len(doc.Model.Vocab) == 0 {
		return nil, errors.ConfigurationError("no vocabulary in "+path, nil)
	}

	vocab := make(map[string]uint32, len(doc.Model.Vocab)+len(doc.AddedTokens))
	for token, id := range doc.Model.Vocab {
		vocab[token] = id
	}
	for _, added := range doc.AddedTokens {
		vocab[added.Content] = added.ID
	}

	return vocab, nil
}

// loadVocabTxt reads a BERT-style vocabulary: one token per line, the
// line number is the id.
func loadVocabTxt(path string) (map[string]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.ConfigurationError("failed to read "+path, err)
	}
	defer f.Close()

	vocab := make(map[string]uint32)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	id := uint32(0)
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		vocab[token] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.ConfigurationError("failed to read "+path, err)
	}

	if len(vocab) == 0 {
		return nil, errors.ConfigurationError("empty vocabulary in "+path, nil)
	}

	return vocab, nil
}

// resolveSpecials locates the reserved tokens in the vocabulary.
func resolveSpecials(vocab map[string]uint32) (specialTokens, error) {
	var sp specialTokens

	for _, required := range []struct {
		token string
		dst   *uint32
	}{
		{unkToken, &sp.unk},
		{clsToken, &sp.cls},
		{sepToken, &sp.sep},
	} {
		id, ok := vocab[required.token]
		if !ok {
			return sp, errors.ConfigurationError(
				"vocabulary missing required token "+required.token, nil)
		}
		*required.dst = id
	}

	// PAD is conventionally id 0; tolerate vocabularies without it.
	if id, ok := vocab[padToken]; ok {
		sp.pad = id
	}

	return sp, nil
}

// readLowercaseFlag reads do_lower_case from tokenizer_config.json.
// Defaults to true, matching uncased BERT-family checkpoints.
func readLowercaseFlag(modelDir string) bool {
	data, err := os.ReadFile(filepath.Join(modelDir, "tokenizer_config.json"))
	if err != nil {
		return true
	}

	var doc struct {
		DoLowerCase *bool `json:"do_lower_case"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.DoLowerCase == nil {
		return true
	}
	return *doc.DoLowerCase
}

func (w *wordpieceTokenizer) tokenize(text string) ([]uint32, []string, error) {
	words := basicTokenize(text, w.lowercase)

	var ids []uint32
	var tokens []string
	for _, word := range words {
		pieceIDs, pieceTokens := w.wordPiece(word)
		ids = append(ids, pieceIDs...)
		tokens = append(tokens, pieceTokens...)
	}

	return ids, tokens, nil
}

// wordPiece splits a single word into the longest matching vocabulary
// subwords. A word with any unmatchable remainder becomes [UNK].
func (w *wordpieceTokenizer) wordPiece(word string) ([]uint32, []string) {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []uint32{w.special.unk}, []string{unkToken}
	}

	var ids []uint32
	var tokens []string

	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		var foundID uint32
		var foundToken string

		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := w.vocab[sub]; ok {
				found = true
				foundID = id
				foundToken = sub
				break
			}
			end--
		}

		if !found {
			return []uint32{w.special.unk}, []string{unkToken}
		}

		ids = append(ids, foundID)
		tokens = append(tokens, foundToken)
		start = end
	}

	return ids, tokens
}

func (w *wordpieceTokenizer) decode(ids []uint32, skipSpecialTokens bool) string {
	var b strings.Builder
	for _, id := range ids {
		token, ok := w.invVocab[id]
		if !ok {
			token = unkToken
		}
		if skipSpecialTokens && isSpecialToken(token) {
			continue
		}
		if cont, ok := strings.CutPrefix(token, "##"); ok {
			b.WriteString(cont)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(token)
	}
	return b.String()
}

func isSpecialToken(token string) bool {
	return strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]")
}

func (w *wordpieceTokenizer) specials() specialTokens {
	return w.special
}

func (w *wordpieceTokenizer) vocabSize() int {
	return len(w.vocab)
}

func (w *wordpieceTokenizer) close() error {
	return nil
}

// basicTokenize splits text into words. Punctuation and CJK characters
// become standalone tokens, matching BERT's basic tokenizer.
func basicTokenize(text string, lowercase bool) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		if lowercase {
			r = unicode.ToLower(r)
		}

		switch {
		case unicode.IsSpace(r):
			flush()
		case isWordPunct(r) || isCJK(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return words
}

func isWordPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// isCJK reports whether the rune is in the main CJK unified ideograph
// blocks.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x20000 && r <= 0x2A6DF)
}
