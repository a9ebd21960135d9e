package agent

import (
	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/internal/llm"
)

// Phase is the loop's position in its state machine.
type Phase int

const (
	PhaseActing Phase = iota
	PhaseReflecting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseActing:
		return "acting"
	case PhaseReflecting:
		return "reflecting"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

type Thought struct {
	Content string `json:"content"`
}

// Action is a tool request: Name is the tool, Input its single argument.
type Action struct {
	Name  string `json:"name"`
	Input string `json:"input"`
}

type Observation struct {
	Content string `json:"content"`
}

type Answer struct {
	Explanation string `json:"explanation"`
	Ruling      string `json:"ruling"`
}

// TurnResult is one element of the inquiry stream. Any subset of the fields
// may be set; consumers tell elements apart by which ones are present.
type TurnResult struct {
	Thought     *Thought     `json:"thought,omitempty"`
	Action      *Action      `json:"action,omitempty"`
	Observation *Observation `json:"observation,omitempty"`
	Answer      *Answer      `json:"answer,omitempty"`
}

// Empty reports whether no field is set.
func (r TurnResult) Empty() bool {
	return r.Thought == nil && r.Action == nil && r.Observation == nil && r.Answer == nil
}

// Final reports whether r terminates the stream.
func (r TurnResult) Final() bool {
	return r.Answer != nil
}

// ActionRecord is one executed tool call. Two records are equal when both
// the tool and the input match.
type ActionRecord struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// Inquiry is one question bound to the cards it is about.
type Inquiry struct {
	Question string       `json:"question"`
	Cards    []cards.Card `json:"cards"`
}

// Event is delivered on the inquiry stream: either a result or, once, the
// error that aborted the inquiry.
type Event struct {
	Result *TurnResult
	Err    error
}

// LoopState is owned by a single Loop and never shared.
type LoopState struct {
	Messages     []llm.Message
	ActionLog    []ActionRecord
	TurnCount    int
	ActionCount  int
	ThinkingTurn int
	Phase        Phase
}

// Outcome classifies how an inquiry ended.
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeInconclusive Outcome = "inconclusive"
	OutcomeActionBudget Outcome = "action_budget"
	OutcomeTurnBudget   Outcome = "turn_budget"
	OutcomeFailed       Outcome = "failed"
	OutcomeAbandoned    Outcome = "abandoned"
)
