package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

// Handler executes one validated tool call against a business service.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Precondition runs before the handler for tools whose execution causes an
// irreversible external effect; it must fail with ErrPrecondition when the
// target entity is not in an executable state.
type Precondition func(ctx context.Context, args map[string]any) error

// Definition describes one registered tool. Immutable after registration.
type Definition struct {
	Name   string
	Desc   string
	Params map[string]*schema.ParameterInfo

	Handler      Handler
	Precondition Precondition

	// RequiresApproval marks tools gated by prior human approval; the flag is
	// copied onto the audit entry of every successful invocation.
	RequiresApproval bool

	// RefParam names the argument recorded as the audit entity reference.
	RefParam string
}

// Registry is the process-wide tool catalog. It is populated once at startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	defs  map[string]Definition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition, 32)}
}

func (r *Registry) Register(def Definition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: tool %s has no handler", contractx.ErrValidation, name)
	}
	if _, ok := r.defs[name]; ok {
		return fmt.Errorf("%w: %s", contractx.ErrDuplicateTool, name)
	}
	def.Name = name
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Resolve(name string) (Definition, error) {
	def, ok := r.defs[strings.TrimSpace(name)]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)
	}
	return def, nil
}

// Infos returns the tool schemas in registration order. The order is stable
// across calls so backend prompts stay deterministic.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		infos = append(infos, &schema.ToolInfo{
			Name:        def.Name,
			Desc:        def.Desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(def.Params),
		})
	}
	return infos
}

func (r *Registry) Len() int {
	return len(r.order)
}
