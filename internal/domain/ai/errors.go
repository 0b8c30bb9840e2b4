package ai

import "errors"

// ErrEmptyCompletion indicates the backend answered without any usable text
// (no choices, or an empty message). Treated like a transport failure by the
// analyzer, which degrades to the rule-based fallback.
var ErrEmptyCompletion = errors.New("ai completion empty")
