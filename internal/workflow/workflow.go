package workflow

import (
	"context"
	"fmt"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/scrivenerhq/scrivener/internal/extraction"
)

// Execute runs the extraction pipeline against the working copy at path. It
// builds the state graph (load → tokens → classify? → finalize), executes it,
// and extracts the ExtractionResult from the final state.
func Execute(ctx context.Context, rt *Runtime, path string) (*ExtractionResult, error) {
	graph, err := buildGraph(rt)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initialState := state.New(nil)
	initialState = initialState.Set(KeyDocumentPath, path)

	finalState, err := graph.Execute(ctx, initialState)
	if err != nil {
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return extractResult(finalState)
}

func buildGraph(rt *Runtime) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("scrivener-extract")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	if err := graph.AddNode("load", LoadNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("tokens", TokensNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("classify", ClassifyNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("finalize", FinalizeNode(rt)); err != nil {
		return nil, err
	}

	// load → tokens (unconditional)
	if err := graph.AddEdge("load", "tokens", nil); err != nil {
		return nil, err
	}

	// tokens → classify (when any token was found)
	if err := graph.AddEdge("tokens", "classify", hasTokens); err != nil {
		return nil, err
	}

	// tokens → finalize (when the document has no placeholders)
	if err := graph.AddEdge("tokens", "finalize", state.Not(hasTokens)); err != nil {
		return nil, err
	}

	// classify → finalize (unconditional)
	if err := graph.AddEdge("classify", "finalize", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("load"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("finalize"); err != nil {
		return nil, err
	}

	return graph, nil
}

func extractResult(s state.State) (*ExtractionResult, error) {
	val, ok := s.Get(KeyResult)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s in final state", ErrFinalizeFailed, KeyResult)
	}

	result, ok := val.(ExtractionResult)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not ExtractionResult", ErrFinalizeFailed, KeyResult)
	}

	return &result, nil
}

func hasTokens(s state.State) bool {
	val, ok := s.Get(KeyTokens)
	if !ok {
		return false
	}

	tokens, ok := val.([]extraction.Token)
	if !ok {
		return false
	}

	return len(tokens) > 0
}
