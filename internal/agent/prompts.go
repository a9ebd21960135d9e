package agent

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = `You are a Yu-Gi-Oh! judge AI. Your job is to answer questions about card interactions and provide rulings. You run in a loop of Thought, Action, PAUSE, Observation. At the end of the loop, you output an Answer with a Ruling.

1. Use Thought to describe your thoughts about the question you have been asked.
2. Use Action to run one of the actions available to you, then return PAUSE.
3. You will receive an Observation, which is the result of running the action.
4. Repeat steps 1-3 until you have enough information to provide an Answer, or until you've taken {{ .MaxActions }} turns.
5. End with an Answer that includes an explanation and a Ruling.

Your available actions are:
{{ .Tools }}

Important guidelines:
- Do not repeat the same action with the same input.
- Only search for rulings of the specific cards mentioned in the question.
- Use every one of these actions at least once before answering: {{ .Required | join ", " }}.
- If you're unsure after {{ .MaxActions }} turns, provide your best answer based on the information you have, or state that you're unsure.

Example:

Question: Can Ash Blossom negate Shaddoll Fusion if there are no Extra Deck monsters on the field?
Thought: I need to understand how both Ash Blossom and Shaddoll Fusion work, and if Shaddoll Fusion's effect can be negated by Ash Blossom under these conditions.
Action: analyze_mechanics: Ash Blossom & Joyous Spring
PAUSE
Observation: (You'll receive the mechanics of Ash Blossom here)
Thought: Now that I understand Ash Blossom's mechanics, I need to check Shaddoll Fusion's mechanics.
Action: analyze_mechanics: Shaddoll Fusion
PAUSE
Observation: (You'll receive the mechanics of Shaddoll Fusion here)
Thought: I have the mechanics for both cards. Now I should check if there are any specific rulings about this interaction.
Action: search_rulings: Ash Blossom & Joyous Spring
PAUSE
Observation: (You'll receive relevant rulings here)
Thought: I should confirm how the rulebook treats sending cards from the Deck.
Action: search_rulebook: sending cards from the Deck to the GY
PAUSE
Observation: (You'll receive rulebook context here)
Thought: I've gathered information about both cards, relevant rulings and the rulebook. I can now determine if Ash Blossom can negate Shaddoll Fusion in this scenario.
Answer: Ash Blossom & Joyous Spring can negate Shaddoll Fusion even if there are no Extra Deck monsters on the field. Shaddoll Fusion always includes an effect to send cards from the Deck to the GY (as Fusion Materials), which is one of the effects that Ash Blossom can negate. The condition of having an opponent's Extra Deck monster on the field only allows for additional uses of the card, but doesn't change its core effect that Ash Blossom responds to.
Ruling: Ash Blossom & Joyous Spring can negate Shaddoll Fusion regardless of whether there are Extra Deck monsters on the field or not.`

var defaultReflectionPrompts = []string{
	"Based on the information gathered, what new knowledge have you gained that's relevant to the question? How does this information contribute to forming a ruling?",
	"Considering the mechanics of the cards and the relevant rulings, what are the key points that support or contradict a potential ruling? Are there any ambiguities or conflicts in the information?",
	"Given all the information gathered and your analysis, what is your current leaning towards a ruling? Decide if you have enough information to draw a conclusion, or if you don't know the answer.",
}

const defaultFinalInstruction = "You have gathered and analyzed all necessary information. Please provide a final answer and ruling based on your analysis. Be decisive and explain your reasoning clearly. If there are any remaining uncertainties, acknowledge them but provide the most likely ruling based on the available information."

const defaultCoverageReminder = "Do not answer yet. Before answering you must still use: {{ .Missing | join \", \" }}."

// Prompts holds every canned text the loop sends to the model. System and
// CoverageReminder are text/template sources with sprig functions.
type Prompts struct {
	System           string   `yaml:"system"`
	Reflection       []string `yaml:"reflection"`
	FinalInstruction string   `yaml:"final_instruction"`
	CoverageReminder string   `yaml:"coverage_reminder"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		System:           defaultSystemPrompt,
		Reflection:       append([]string(nil), defaultReflectionPrompts...),
		FinalInstruction: defaultFinalInstruction,
		CoverageReminder: defaultCoverageReminder,
	}
}

// LoadPrompts reads a YAML file and overlays its non-empty fields on the defaults.
func LoadPrompts(path string) (Prompts, error) {
	prompts := DefaultPrompts()
	if strings.TrimSpace(path) == "" {
		return prompts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read prompts file: %w", err)
	}
	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts file: %w", err)
	}
	if override.System != "" {
		prompts.System = override.System
	}
	if len(override.Reflection) > 0 {
		prompts.Reflection = override.Reflection
	}
	if override.FinalInstruction != "" {
		prompts.FinalInstruction = override.FinalInstruction
	}
	if override.CoverageReminder != "" {
		prompts.CoverageReminder = override.CoverageReminder
	}
	if err := prompts.Validate(); err != nil {
		return Prompts{}, err
	}
	return prompts, nil
}

// Validate checks that both templates parse.
func (p Prompts) Validate() error {
	if _, err := parseTemplate("system", p.System); err != nil {
		return err
	}
	if _, err := parseTemplate("coverage_reminder", p.CoverageReminder); err != nil {
		return err
	}
	return nil
}

// ReflectionPrompt returns the prompt for reflection turn n (1-based),
// cycling when there are more turns than prompts.
func (p Prompts) ReflectionPrompt(n int) string {
	if len(p.Reflection) == 0 {
		return defaultReflectionPrompts[(n-1)%len(defaultReflectionPrompts)]
	}
	return p.Reflection[(n-1)%len(p.Reflection)]
}

type systemData struct {
	Tools      string
	Required   []string
	MaxActions int
}

func (p Prompts) renderSystem(data systemData) (string, error) {
	return render("system", p.System, data)
}

func (p Prompts) renderCoverageReminder(missing []string) (string, error) {
	return render("coverage_reminder", p.CoverageReminder, struct{ Missing []string }{missing})
}

func parseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s prompt: %w", name, err)
	}
	return tmpl, nil
}

func render(name, text string, data any) (string, error) {
	tmpl, err := parseTemplate(name, text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
