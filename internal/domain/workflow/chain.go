package workflow

import (
	"strings"
	"unicode/utf8"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
)

// DefaultChain is used when no chain is configured
var DefaultChain = []string{"PEER_REVIEW", "MANAGER_APPROVAL", "COMPLIANCE"}

// ChainBuilder resolves the ordered step sequence for a proposal being submitted
type ChainBuilder struct {
	defaultChain    []string
	allowDuplicates bool
}

// NewChainBuilder validates the default chain and returns a builder.
// The default chain must satisfy the same rules as a custom one.
func NewChainBuilder(defaultChain []string, allowDuplicates bool) (*ChainBuilder, error) {
	b := &ChainBuilder{allowDuplicates: allowDuplicates}
	if defaultChain == nil {
		defaultChain = DefaultChain
	}

	names, err := b.normalize(defaultChain)
	if err != nil {
		return nil, err
	}
	b.defaultChain = names

	return b, nil
}

// DefaultChain returns a copy of the configured default chain
func (b *ChainBuilder) DefaultChain() []string {
	return append([]string(nil), b.defaultChain...)
}

// Build produces PENDING steps for the given chain. A nil chain means the
// caller omitted it and the default is used; an empty non-nil chain is rejected.
func (b *ChainBuilder) Build(custom []string) ([]entity.Step, error) {
	names := b.defaultChain
	if custom != nil {
		normalized, err := b.normalize(custom)
		if err != nil {
			return nil, err
		}
		names = normalized
	}

	steps := make([]entity.Step, len(names))
	for i, name := range names {
		steps[i] = entity.Step{
			Order:  i,
			Name:   name,
			Status: entity.StepStatusPending,
		}
	}
	return steps, nil
}

func (b *ChainBuilder) normalize(chain []string) ([]string, error) {
	if len(chain) == 0 {
		return nil, errs.Validation("approval chain must contain at least one step")
	}

	seen := make(map[string]bool, len(chain))
	names := make([]string, 0, len(chain))
	for i, raw := range chain {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, errs.Validation("approval chain step %d has a blank name", i)
		}
		if utf8.RuneCountInString(name) > entity.MaxStepNameLength {
			return nil, errs.Validation("approval chain step %d exceeds %d characters", i, entity.MaxStepNameLength)
		}
		if seen[name] && !b.allowDuplicates {
			return nil, errs.Validation("approval chain contains duplicate step %q", name)
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}
