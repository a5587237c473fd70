package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/worldstate"
)

// QueryClient is a thin client over the in-process MCP server, connected
// via an in-memory transport pair rather than a spawned subprocess. It
// implements promptctx.FactRetriever so the Context Assembler's retrieved-
// facts section can be served through typed tool calls.
type QueryClient struct {
	session *mcp.ClientSession
}

// Connect wires a client directly to server over an in-memory transport
// pair, with no process boundary.
func Connect(ctx context.Context, server *mcp.Server) (*QueryClient, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "tilecrawler-assembler",
		Version: "v1.0.0",
	}, nil)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	go func() {
		_, _ = server.Connect(ctx, serverTransport, nil)
	}()

	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect: %w", err)
	}
	return &QueryClient{session: session}, nil
}

// Close ends the session.
func (c *QueryClient) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// RetrieveFacts implements promptctx.FactRetriever: for NPC_DIALOGUE it
// looks up NPC facts for any NPC present in room; for QUEST_GENERATION it
// is a no-op today (no template id is known ahead of generation), by design
// left for a future caller that already knows which template it is
// enriching.
func (c *QueryClient) RetrieveFacts(ctx context.Context, kind reqkind.Kind, room *worldstate.Room) ([]string, error) {
	if kind != reqkind.NPCDialogue || room == nil || len(room.NPCs) == 0 {
		return nil, nil
	}
	var facts []string
	for _, npc := range room.NPCs {
		result, err := c.callNPCFacts(ctx, npc.ID)
		if err != nil {
			return nil, err
		}
		facts = append(facts, result.Facts...)
	}
	return facts, nil
}

func (c *QueryClient) callNPCFacts(ctx context.Context, npcID string) (NPCFactsResult, error) {
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "lookup_npc_facts",
		Arguments: map[string]any{"npc_id": npcID},
	})
	if err != nil {
		return NPCFactsResult{}, fmt.Errorf("mcp: call lookup_npc_facts: %w", err)
	}
	if res.IsError || len(res.Content) == 0 {
		return NPCFactsResult{}, nil
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		return NPCFactsResult{}, nil
	}
	var out NPCFactsResult
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		return NPCFactsResult{}, fmt.Errorf("mcp: decode lookup_npc_facts result: %w", err)
	}
	return out, nil
}
