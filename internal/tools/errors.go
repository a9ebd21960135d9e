package tools

import "fmt"

// ScopeError reports a request for a card the inquiry did not mention.
type ScopeError struct {
	Card string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("Error: Can only search rulings for cards mentioned in the question. '%s' is not in the provided list of cards.", e.Card)
}

// NotFoundError reports a card name that matches none of the inquiry's cards.
type NotFoundError struct {
	Card string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Card '%s' not found in the provided list.", e.Card)
}

func errorResult(err error) ToolResult {
	return ToolResult{Content: err.Error(), IsError: true}
}
