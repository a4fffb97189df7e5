package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	agentnode "github.com/arvidstrom/storeagent/agent/nodes"
)

func (o *Orchestrator) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[agentnode.GraphInput, agentnode.GraphOutput], error) {
	graph := compose.NewGraph[agentnode.GraphInput, agentnode.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in agentnode.GraphInput) (*agentnode.GraphState, error) {
			return agentnode.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_history",
		compose.InvokableLambda(func(ctx context.Context, in *agentnode.GraphState) (*agentnode.GraphState, error) {
			return agentnode.LoadHistory(ctx, in, o.manager)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_history: %w", err)
	}

	if err := graph.AddLambdaNode("run_tool_loop",
		compose.InvokableLambda(func(ctx context.Context, in *agentnode.GraphState) (*agentnode.GraphState, error) {
			return agentnode.RunToolLoop(ctx, in, o.backend, o.invoker, o.resolver, o.maxRounds)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_tool_loop: %w", err)
	}

	if err := graph.AddLambdaNode("persist_turns",
		compose.InvokableLambda(func(ctx context.Context, in *agentnode.GraphState) (*agentnode.GraphState, error) {
			return agentnode.PersistTurns(ctx, in, o.manager)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist_turns: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *agentnode.GraphState) (agentnode.GraphOutput, error) {
			return agentnode.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_history"},
		{"load_history", "run_tool_loop"},
		{"run_tool_loop", "persist_turns"},
		{"persist_turns", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("agent.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile handle turn graph: %w", err)
	}
	return runner, nil
}
