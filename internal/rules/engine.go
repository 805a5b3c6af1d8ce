package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

type compiledRule interface {
	Apply(input string) (output string, changed bool)
}

// RuleParser parses one line into a compiled rule.
type RuleParser interface {
	CanParse(line string) bool
	Parse(line string) (compiledRule, error)
}

// Engine rewrites recognized transcripts before interpretation, e.g. to fold
// "n b c" into "nbc" or "primetime" into "prime time". Rules are reloadable.
type Engine struct {
	path      string
	loopLimit int
	parsers   []RuleParser

	mu    sync.RWMutex
	rules []compiledRule
}

// NewEngine loads and compiles rules from a file using built-in parsers.
func NewEngine(path string, loopLimit int) (*Engine, error) {
	return NewEngineWithParsers(path, loopLimit, defaultRuleParsers())
}

// NewEngineWithParsers allows parser extension without engine changes.
func NewEngineWithParsers(path string, loopLimit int, parsers []RuleParser) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = 30
	}
	if len(parsers) == 0 {
		parsers = defaultRuleParsers()
	}

	engine := &Engine{path: strings.TrimSpace(path), loopLimit: loopLimit, parsers: parsers}
	if err := engine.Reload(); err != nil {
		return nil, err
	}
	return engine, nil
}

// Path is the rules file backing the engine; empty means no rules.
func (e *Engine) Path() string {
	return e.path
}

// Reload re-reads the rules file. On error the previous rules stay active.
func (e *Engine) Reload() error {
	if e.path == "" {
		return nil
	}

	contents, err := os.ReadFile(e.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.swap(nil)
			return nil
		}
		return fmt.Errorf("failed to read rules file %q: %w", e.path, err)
	}

	rules, err := parseRules(string(contents), e.parsers)
	if err != nil {
		return fmt.Errorf("failed to parse rules file %q: %w", e.path, err)
	}
	e.swap(rules)
	return nil
}

func (e *Engine) swap(rules []compiledRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
}

// Len reports how many rules are loaded.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Apply rewrites text until no rule changes it or the loop limit is hit.
func (e *Engine) Apply(text string) (string, error) {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	if len(rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < e.loopLimit; i++ {
		changed := false
		for _, rule := range rules {
			next, ruleChanged := rule.Apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}

	return result, nil
}

func parseRules(contents string, parsers []RuleParser) ([]compiledRule, error) {
	lines := strings.Split(contents, "\n")
	rules := make([]compiledRule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseLine(line, parsers)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseLine(line string, parsers []RuleParser) (compiledRule, error) {
	for _, parser := range parsers {
		if parser.CanParse(line) {
			return parser.Parse(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}
