// Package mechanics derives a rough breakdown of a card's effect from its
// Problem-Solving Card Text: colons separate activation conditions, semicolons
// separate costs from resolutions.
package mechanics

import (
	"fmt"
	"strings"

	"github.com/MimeLyc/ygo-judge/internal/cards"
)

const (
	EffectTrigger    = "Trigger"
	EffectIgnition   = "Ignition"
	EffectQuick      = "Quick"
	EffectContinuous = "Continuous"
)

const (
	TimingQuickEffect  = "Quick Effect"
	TimingEitherPlayer = "Either Player's Turn"
	TimingOpponent     = "Opponent's Turn"
	TimingYours        = "Your Turn"
)

type Breakdown struct {
	EffectType          string `json:"effect_type"`
	ActivationCondition string `json:"activation_condition"`
	Cost                string `json:"cost"`
	Resolution          string `json:"resolution"`
	Timing              string `json:"timing"`
	Targeting           bool   `json:"targeting"`
	OncePerChain        bool   `json:"once_per_chain"`
	OncePerTurn         bool   `json:"once_per_turn"`
	HardOncePerTurn     bool   `json:"hard_once_per_turn"`
	OncePerDuel         bool   `json:"once_per_duel"`
}

// Analyze inspects the card's effect text.
func Analyze(card cards.Card) Breakdown {
	text := card.Description
	lower := strings.ToLower(text)

	return Breakdown{
		EffectType:          effectType(text, lower),
		ActivationCondition: activationCondition(text),
		Cost:                cost(text),
		Resolution:          resolution(text),
		Timing:              timing(lower),
		Targeting:           strings.Contains(lower, "target"),
		OncePerChain:        strings.Contains(lower, "once per chain"),
		OncePerTurn:         strings.Contains(lower, "once per turn"),
		HardOncePerTurn:     strings.Contains(lower, "you can only use this effect of"),
		OncePerDuel:         strings.Contains(lower, "once per duel"),
	}
}

func effectType(text, lower string) string {
	switch {
	case strings.Contains(text, ":"):
		if strings.Contains(lower, "when") || strings.Contains(lower, "if") {
			return EffectTrigger
		}
		return EffectIgnition
	case strings.Contains(text, ";"):
		if strings.Contains(lower, "during") || strings.Contains(lower, "quick effect") {
			return EffectQuick
		}
		return EffectIgnition
	default:
		return EffectContinuous
	}
}

func activationCondition(text string) string {
	before, _, found := strings.Cut(text, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(before)
}

func cost(text string) string {
	before, _, found := strings.Cut(text, ";")
	if !found {
		return ""
	}
	if i := strings.LastIndex(before, ":"); i >= 0 {
		before = before[i+1:]
	}
	return strings.TrimSpace(before)
}

func resolution(text string) string {
	if i := strings.LastIndex(text, ";"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	if i := strings.LastIndex(text, ":"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return text
}

func timing(lower string) string {
	switch {
	case strings.Contains(lower, "quick effect"):
		return TimingQuickEffect
	case strings.Contains(lower, "during either player's"):
		return TimingEitherPlayer
	case strings.Contains(lower, "during your opponent's"):
		return TimingOpponent
	default:
		return TimingYours
	}
}

// String renders the breakdown as the observation text shown to the model.
func (b Breakdown) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Effect type: %s\n", b.EffectType)
	fmt.Fprintf(&sb, "Activation condition: %s\n", orNone(b.ActivationCondition))
	fmt.Fprintf(&sb, "Cost: %s\n", orNone(b.Cost))
	fmt.Fprintf(&sb, "Resolution: %s\n", orNone(b.Resolution))
	fmt.Fprintf(&sb, "Timing: %s\n", b.Timing)
	fmt.Fprintf(&sb, "Targets: %s\n", yesNo(b.Targeting))
	fmt.Fprintf(&sb, "Once per chain: %s\n", yesNo(b.OncePerChain))
	fmt.Fprintf(&sb, "Once per turn: %s\n", yesNo(b.OncePerTurn))
	fmt.Fprintf(&sb, "Hard once per turn: %s\n", yesNo(b.HardOncePerTurn))
	fmt.Fprintf(&sb, "Once per duel: %s", yesNo(b.OncePerDuel))
	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
