package chunker

import "strings"

// Tokenizer turns text into the token stream used for sizing chunks and
// reporting token counts. The default WhitespaceTokenizer approximates the
// embedding model's subword tokenizer closely enough for chunk boundaries;
// callers that need exact accounting against a specific model can supply
// their own Tokenizer.
type Tokenizer interface {
	Tokenize(text string) []string
	Detokenize(tokens []string) string
}

// WhitespaceTokenizer splits on runs of whitespace and rejoins with a single
// space. No third-party tokenizer in the dependency set exposes a stable
// token count for arbitrary embedding models, so this stays on the standard
// library: see DESIGN.md.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Tokenize(text string) []string {
	return strings.Fields(text)
}

func (WhitespaceTokenizer) Detokenize(tokens []string) string {
	return strings.Join(tokens, " ")
}

var _ Tokenizer = WhitespaceTokenizer{}
