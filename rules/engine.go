package rules

import (
	"embed"
	"encoding/hex"
	"fmt"
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/shimmeringbee/zwa/descriptor"
	"gopkg.in/yaml.v3"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

//go:embed default/*.yaml
var Embedded embed.FS

type Engine struct {
	RuleSets map[string]RuleSet
	Rules    []CompiledRule
}

func New() *Engine {
	return &Engine{RuleSets: map[string]RuleSet{}}
}

type Poll struct {
	Command         string `yaml:"command"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	Count           int    `yaml:"count"`
}

type Actions struct {
	Poll   map[string]Poll `yaml:"poll"`
	NoPoll []string        `yaml:"no_poll"`
}

type Rule struct {
	Description string  `yaml:"description"`
	Filter      string  `yaml:"filter"`
	Actions     Actions `yaml:"actions"`
	Children    []Rule  `yaml:"children"`
}

type CompiledPoll struct {
	Command  []byte
	Interval time.Duration
	Count    uint32
}

type CompiledActions struct {
	Poll   map[string]CompiledPoll
	NoPoll []string
}

type CompiledRule struct {
	Description string
	Filter      *vm.Program
	Actions     CompiledActions
	Children    []CompiledRule
}

type RuleSet struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
	Rules     []Rule   `yaml:"rules"`
}

type InputNode struct {
	ID        int
	Listening bool
	Beam      bool
	Basic     int
	Generic   int
	Specific  int
}

type InputEndpoint struct {
	ID       int
	Generic  int
	Specific int
}

type InputInterface struct {
	CommandClass int
	Version      int
	Secure       bool
}

// Input is the environment filters are evaluated against, one interface at a time.
type Input struct {
	Node      InputNode
	Endpoint  InputEndpoint
	Interface InputInterface
}

func InputFor(n descriptor.NodeDescriptor, ep descriptor.EndpointDescriptor, i descriptor.InterfaceDescriptor) Input {
	return Input{
		Node: InputNode{
			ID:        int(n.NodeID),
			Listening: n.Listening,
			Beam:      n.Beam,
			Basic:     int(n.Basic),
			Generic:   int(n.Generic),
			Specific:  int(n.Specific),
		},
		Endpoint: InputEndpoint{
			ID:       int(ep.Endpoint),
			Generic:  int(ep.Generic),
			Specific: int(ep.Specific),
		},
		Interface: InputInterface{
			CommandClass: int(i.CommandClass),
			Version:      int(i.Version),
			Secure:       i.Secure,
		},
	}
}

type Output struct {
	Polls map[string]CompiledPoll
}

func (e *Engine) LoadString(s string) error {
	return e.LoadReader(strings.NewReader(s))
}

func (e *Engine) LoadReader(r io.Reader) error {
	var rs RuleSet

	if err := yaml.NewDecoder(r).Decode(&rs); err != nil {
		return fmt.Errorf("ruleset decode: %w", err)
	}

	if rs.Name == "" {
		return fmt.Errorf("ruleset has no name")
	}

	if e.RuleSets == nil {
		e.RuleSets = map[string]RuleSet{}
	}

	e.RuleSets[rs.Name] = rs
	return nil
}

// LoadFS loads every yaml or json file in fsys as a rule set.
func (e *Engine) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		switch path.Ext(p) {
		case ".yaml", ".yml", ".json":
		default:
			return nil
		}

		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := e.LoadReader(f); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		return nil
	})
}

func (e *Engine) CompileRules() error {
	alreadyLoaded := map[string]bool{}

	for k := range e.RuleSets {
		alreadyLoaded[k] = false
	}

	e.Rules = nil

	for _, k := range sortedKeys(e.RuleSets) {
		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, []string{}, k); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) compileRuleSet(alreadyLoaded map[string]bool, trail []string, name string) error {
	rs, ok := e.RuleSets[name]
	if !ok {
		return fmt.Errorf("ruleset missing dependency: %s->%s", strings.Join(trail, "->"), name)
	}

	trail = append(trail, rs.Name)

	for _, k := range rs.DependsOn {
		for _, t := range trail {
			if k == t {
				return fmt.Errorf("ruleset circular dependency: %s->%s", strings.Join(trail, "->"), k)
			}
		}

		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, trail, k); err != nil {
				return err
			}
		}
	}

	if cr, err := compileRules(rs.Rules); err != nil {
		return fmt.Errorf("ruleset compilation: %s: %w", strings.Join(trail, "->"), err)
	} else {
		e.Rules = append(e.Rules, cr...)
	}

	alreadyLoaded[name] = true

	return nil
}

func compileRules(rules []Rule) ([]CompiledRule, error) {
	var compiledRules []CompiledRule

	for _, rule := range rules {
		cf, err := expr.Compile(rule.Filter, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("filter compilation: %w", err)
		}

		ca, err := compileActions(rule.Actions)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Description, err)
		}

		if childCompiledRules, err := compileRules(rule.Children); err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Description, err)
		} else {
			compiledRules = append(compiledRules, CompiledRule{
				Description: rule.Description,
				Filter:      cf,
				Actions:     ca,
				Children:    childCompiledRules,
			})
		}
	}

	return compiledRules, nil
}

func compileActions(a Actions) (CompiledActions, error) {
	ca := CompiledActions{Poll: map[string]CompiledPoll{}, NoPoll: a.NoPoll}

	for name, p := range a.Poll {
		cmd, err := hex.DecodeString(p.Command)
		if err != nil {
			return CompiledActions{}, fmt.Errorf("poll %s command: %w", name, err)
		}

		if len(cmd) < 2 {
			return CompiledActions{}, fmt.Errorf("poll %s command: too short", name)
		}

		if p.IntervalSeconds <= 0 {
			return CompiledActions{}, fmt.Errorf("poll %s: interval must be positive", name)
		}

		if p.Count < 0 {
			return CompiledActions{}, fmt.Errorf("poll %s: count must not be negative", name)
		}

		ca.Poll[name] = CompiledPoll{
			Command:  cmd,
			Interval: time.Duration(p.IntervalSeconds) * time.Second,
			Count:    uint32(p.Count),
		}
	}

	return ca, nil
}

// Execute evaluates every rule against i, children only where their parent matched. Polls added by a later rule
// replace those of the same name, no_poll removes them.
func (e *Engine) Execute(i Input) (Output, error) {
	o := Output{Polls: map[string]CompiledPoll{}}

	if err := executeRules(e.Rules, i, &o); err != nil {
		return Output{}, err
	}

	return o, nil
}

func executeRules(rules []CompiledRule, i Input, o *Output) error {
	for _, r := range rules {
		out, err := expr.Run(r.Filter, i)
		if err != nil {
			return fmt.Errorf("%s: filter execution: %w", r.Description, err)
		}

		if matched, ok := out.(bool); !ok || !matched {
			continue
		}

		for name, p := range r.Actions.Poll {
			o.Polls[name] = p
		}

		for _, name := range r.Actions.NoPoll {
			delete(o.Polls, name)
		}

		if err := executeRules(r.Children, i, o); err != nil {
			return err
		}
	}

	return nil
}

func sortedKeys(m map[string]RuleSet) []string {
	keys := make([]string, 0, len(m))

	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)
	return keys
}
