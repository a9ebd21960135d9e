package agent

import (
	"strings"
)

const (
	prefixThought = "Thought:"
	prefixAction  = "Action:"
	prefixAnswer  = "Answer:"
	markerRuling  = "Ruling:"
	linePause     = "PAUSE"
)

// Parser turns raw model text into a TurnResult using the line-prefix
// grammar the system prompt teaches. Malformed fields are left unset.
type Parser struct {
	known map[string]struct{}
}

// NewParser accepts actions naming one of tools. With no tools every
// well-formed action is accepted.
func NewParser(tools ...string) *Parser {
	p := &Parser{}
	if len(tools) > 0 {
		p.known = make(map[string]struct{}, len(tools))
		for _, t := range tools {
			p.known[t] = struct{}{}
		}
	}
	return p
}

func (p *Parser) Parse(text string) TurnResult {
	var result TurnResult

	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == linePause:
			return result

		case strings.HasPrefix(line, prefixThought):
			result.Thought = &Thought{Content: strings.TrimSpace(line[len(prefixThought):])}

		case strings.HasPrefix(line, prefixAction):
			if action, ok := p.parseAction(line[len(prefixAction):]); ok {
				result.Action = action
			}

		case strings.HasPrefix(line, prefixAnswer):
			rest := strings.Join(append([]string{line[len(prefixAnswer):]}, lines[i+1:]...), "\n")
			if answer, ok := parseAnswer(rest); ok {
				result.Answer = answer
			}
		}
	}
	return result
}

func (p *Parser) parseAction(rest string) (*Action, bool) {
	name, input, found := strings.Cut(strings.TrimSpace(rest), ":")
	if !found {
		return nil, false
	}
	name = strings.TrimSpace(name)
	input = strings.TrimSpace(input)
	if name == "" {
		return nil, false
	}
	if p.known != nil {
		if _, ok := p.known[name]; !ok {
			return nil, false
		}
	}
	return &Action{Name: name, Input: input}, true
}

func parseAnswer(rest string) (*Answer, bool) {
	explanation, ruling, found := strings.Cut(rest, markerRuling)
	if !found {
		return nil, false
	}
	return &Answer{
		Explanation: strings.TrimSpace(explanation),
		Ruling:      strings.TrimSpace(ruling),
	}, true
}
