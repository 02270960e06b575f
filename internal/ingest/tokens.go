package ingest

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

// TokenCapper truncates page text so a single embedding request stays under the model's
// input limit.
type TokenCapper struct {
	enc *tiktoken.Tiktoken
	max int
}

func NewTokenCapper(maxTokens int) (*TokenCapper, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", tokenEncoding, err)
	}
	return &TokenCapper{enc: enc, max: maxTokens}, nil
}

// Cap returns text unchanged when it fits, otherwise its first max tokens. The second
// result reports whether truncation happened. A nil capper never truncates.
func (c *TokenCapper) Cap(text string) (string, bool) {
	if c == nil || c.enc == nil || c.max <= 0 {
		return text, false
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= c.max {
		return text, false
	}
	return c.enc.Decode(tokens[:c.max]), true
}
