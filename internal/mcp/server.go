// Package mcp adapts the Model Context Protocol Go SDK into an in-process,
// read-only query server for the Context Assembler's "optional retrieved
// facts" section (spec.md §4.3). This replaces the external
// subprocess-backed world-state client a prior iteration of this codebase
// used: Tile-Crawler's action model is a deterministic tagged union
// (internal/action), not free-text player intent routed through tool
// calls, so MCP's contribution here is narrowed to typed, introspectable
// read-only retrieval — the one place a future out-of-process client could
// usefully attach.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tilecrawler/internal/worldstate"
)

// NPCFactsArgs is the input to the lookup_npc_facts tool.
type NPCFactsArgs struct {
	NPCID string `json:"npc_id"`
}

// NPCFactsResult is the output of lookup_npc_facts.
type NPCFactsResult struct {
	Facts []string `json:"facts"`
}

// QuestTemplateArgs is the input to the lookup_quest_template tool.
type QuestTemplateArgs struct {
	TemplateID string `json:"template_id"`
}

// QuestTemplateResult is the output of lookup_quest_template.
type QuestTemplateResult struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Objectives  []string `json:"objectives"`
	Found       bool     `json:"found"`
}

// WorldQuerySource is the read-only view into live session state the
// server's tool handlers consult; the World State Store itself satisfies
// this narrow interface.
type WorldQuerySource interface {
	RoomAt(worldstate.Coordinate) (*worldstate.Room, bool)
	Discovered() []worldstate.Coordinate
}

// QuestCatalog is the closed set of quest templates known to the session.
type QuestCatalog map[string]QuestTemplateResult

// NewServer builds the in-process MCP server exposing the two read-only
// query tools.
func NewServer(source WorldQuerySource, catalog QuestCatalog) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tilecrawler-worldquery",
		Version: "v1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lookup_npc_facts",
		Description: "Look up known facts and memory for an NPC by id across discovered rooms.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args NPCFactsArgs) (*mcp.CallToolResult, NPCFactsResult, error) {
		for _, coord := range source.Discovered() {
			room, ok := source.RoomAt(coord)
			if !ok {
				continue
			}
			for _, npc := range room.NPCs {
				if npc.ID == args.NPCID {
					facts := append([]string(nil), npc.Personality.Facts...)
					facts = append(facts, npc.Memory...)
					return nil, NPCFactsResult{Facts: facts}, nil
				}
			}
		}
		return nil, NPCFactsResult{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lookup_quest_template",
		Description: "Look up a known quest template by id.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args QuestTemplateArgs) (*mcp.CallToolResult, QuestTemplateResult, error) {
		if tpl, ok := catalog[args.TemplateID]; ok {
			tpl.Found = true
			return nil, tpl, nil
		}
		return nil, QuestTemplateResult{Found: false}, nil
	})

	return server
}
