package agentnode

import (
	"fmt"
	"strings"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Failure != nil {
		return GraphOutput{}, in.Failure
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: backend returned empty reply", contractx.ErrBackend)
	}
	return GraphOutput{
		Reply:        reply,
		ContextReset: in.WasReset,
		Artifacts:    in.Artifacts,
	}, nil
}
