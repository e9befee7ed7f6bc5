package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Query string `json:"query" jsonschema:"the question or keywords to look up"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of context blocks (default from settings)"`
	Range string `json:"range,omitempty" jsonschema:"optional time filter such as last7d, 2024-03 or 2024-01-01~2024-02-01"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Blocks   []BlockOutput `json:"blocks"`
	Count    int           `json:"count"`
	Empty    bool          `json:"empty"`
	Methods  []string      `json:"methods,omitempty"`
	Degraded bool          `json:"degraded,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// BlockOutput is one parent-scoped context block.
type BlockOutput struct {
	ArchiveID string         `json:"archive_id"`
	Header    map[string]any `json:"header,omitempty"`
	Score     float64        `json:"score"`
	Coarse    bool           `json:"coarse,omitempty"`
	Chunks    []ChunkOutput  `json:"chunks"`
}

// ChunkOutput is one matched span inside a block.
type ChunkOutput struct {
	NodeID     string  `json:"node_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ListProposalsInput is the input schema for the list_proposals tool.
type ListProposalsInput struct {
	Status    string `json:"status,omitempty" jsonschema:"PENDING, APPROVED or REJECTED (default PENDING)"`
	ArchiveID string `json:"archive_id,omitempty" jsonschema:"only proposals targeting this archive"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of proposals (default 20)"`
}

// ListProposalsOutput is the output schema for the list_proposals tool.
type ListProposalsOutput struct {
	Proposals []ProposalOutput `json:"proposals"`
	Count     int              `json:"count"`
}

// ProposalOutput summarises a proposal.
type ProposalOutput struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	TargetArchiveID string     `json:"target_archive_id"`
	Status          string     `json:"status"`
	Reasoning       string     `json:"reasoning,omitempty"`
	Chunks          int        `json:"chunks"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// ProposalIDInput identifies a proposal to resolve.
type ProposalIDInput struct {
	ID string `json:"id" jsonschema:"the proposal id"`
}

// CreateProposalInput is the input schema for the create_proposal tool.
type CreateProposalInput struct {
	Type        string       `json:"type" jsonschema:"dedup, enrich or split"`
	ArchiveID   string       `json:"archive_id" jsonschema:"the archive the proposal targets"`
	DuplicateOf string       `json:"duplicate_of,omitempty" jsonschema:"for dedup: the archive this one duplicates"`
	Similarity  float64      `json:"similarity,omitempty" jsonschema:"for dedup: how similar the two archives are, 0 to 1"`
	Chunks      []ChunkInput `json:"chunks,omitempty" jsonschema:"for enrich and split: the replacement chunks in order"`
	Reasoning   string       `json:"reasoning,omitempty" jsonschema:"why the change is proposed"`
}

// ChunkInput is one proposed chunk.
type ChunkInput struct {
	Content  string `json:"content" jsonschema:"the text that will be indexed"`
	Original string `json:"original,omitempty" jsonschema:"the source text before enrichment"`
}

// RefineInput is the input schema for the refine tool.
type RefineInput struct {
	ArchiveID string `json:"archive_id,omitempty" jsonschema:"refine only this archive; omit to sweep all unrefined archives"`
}

// RefineOutput is the output schema for the refine tool.
type RefineOutput struct {
	Scanned     int            `json:"scanned"`
	Proposed    int            `json:"proposed"`
	Skipped     int            `json:"skipped"`
	Deferred    int            `json:"deferred"`
	Failed      int            `json:"failed"`
	Fallbacks   map[string]int `json:"fallbacks,omitempty"`
	ProposalIDs []string       `json:"proposal_ids"`
}

const defaultProposalLimit = 20

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "query",
		Description: "Retrieve context blocks for a question. Each block is one source " +
			"archive with its most relevant chunks. An empty result means nothing relevant was found.",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_proposals",
		Description: "List refinement proposals awaiting review",
	}, s.handleListProposals)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "create_proposal",
		Description: "Queue a dedup or enrich proposal for human review. " +
			"Nothing changes in the index until the proposal is approved.",
	}, s.handleCreateProposal)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "approve_proposal",
		Description: "Approve a proposal, replacing the archive's searchable chunks",
	}, s.handleApproveProposal)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reject_proposal",
		Description: "Reject a proposal without changing the index",
	}, s.handleRejectProposal)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "refine",
		Description: "Run the refinement engine now and create proposals for unrefined archives",
	}, s.handleRefine)
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	tr, err := domain.ParseTimeRange(input.Range, s.now())
	if err != nil {
		return nil, QueryOutput{}, toolError("parse range", err)
	}

	result, err := s.ports.Retrieval.Query(ctx, domain.RetrievalQuery{
		Text:      input.Query,
		TimeRange: tr,
		K:         input.K,
	})
	if err != nil {
		return nil, QueryOutput{}, toolError("query", err)
	}

	output := QueryOutput{
		Blocks:   make([]BlockOutput, len(result.Blocks)),
		Count:    len(result.Blocks),
		Empty:    result.Empty(),
		Degraded: result.Degraded,
		Warnings: result.Warnings,
	}
	for _, m := range result.Methods {
		output.Methods = append(output.Methods, string(m))
	}
	for i, b := range result.Blocks {
		block := BlockOutput{
			ArchiveID: b.ArchiveID,
			Header:    b.Header,
			Score:     b.Score,
			Coarse:    b.Coarse,
			Chunks:    make([]ChunkOutput, len(b.Chunks)),
		}
		for j, c := range b.Chunks {
			block.Chunks[j] = ChunkOutput{
				NodeID:     c.NodeID,
				ChunkIndex: c.ChunkIndex,
				Content:    c.Content,
				Score:      c.Score,
			}
		}
		output.Blocks[i] = block
	}

	return nil, output, nil
}

// handleListProposals handles the list_proposals tool invocation.
func (s *Server) handleListProposals(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListProposalsInput,
) (*mcp.CallToolResult, ListProposalsOutput, error) {
	if s.ports.Proposals == nil {
		return nil, ListProposalsOutput{}, toolError("list proposals", errNotConfigured)
	}

	status := domain.ProposalStatus(input.Status)
	if status == "" {
		status = domain.ProposalStatusPending
	}
	if !status.IsValid() {
		return nil, ListProposalsOutput{}, toolError("list proposals",
			invalidInputf("unknown status %q", input.Status))
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultProposalLimit
	}

	proposals, err := s.ports.Proposals.List(ctx, domain.ProposalFilter{
		Status:    status,
		ArchiveID: input.ArchiveID,
		Limit:     limit,
	})
	if err != nil {
		return nil, ListProposalsOutput{}, toolError("list proposals", err)
	}

	output := ListProposalsOutput{
		Proposals: make([]ProposalOutput, len(proposals)),
		Count:     len(proposals),
	}
	for i, p := range proposals {
		output.Proposals[i] = proposalOutput(p)
	}
	return nil, output, nil
}

// handleCreateProposal handles the create_proposal tool invocation.
func (s *Server) handleCreateProposal(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CreateProposalInput,
) (*mcp.CallToolResult, ProposalOutput, error) {
	if s.ports.Proposals == nil {
		return nil, ProposalOutput{}, toolError("create proposal", errNotConfigured)
	}

	var payload domain.Payload
	switch kind := domain.ProposalType(input.Type); kind {
	case domain.ProposalTypeDedup:
		payload = domain.DedupPayload{DuplicateOf: input.DuplicateOf, Similarity: input.Similarity}
	case domain.ProposalTypeEnrich, domain.ProposalTypeSplit:
		if len(input.Chunks) == 0 {
			return nil, ProposalOutput{}, toolError("create proposal", invalidInputf("%s proposals need chunks", kind))
		}
		chunks := make([]domain.ProposedChunk, len(input.Chunks))
		for i, c := range input.Chunks {
			chunks[i] = domain.ProposedChunk{ChunkIndex: i, Content: c.Content, Original: c.Original}
		}
		if kind == domain.ProposalTypeSplit {
			payload = domain.SplitPayload{Chunks: chunks}
		} else {
			payload = domain.EnrichPayload{Chunks: chunks}
		}
	default:
		return nil, ProposalOutput{}, toolError("create proposal", invalidInputf("unknown proposal type %q", input.Type))
	}

	payload, err := domain.BindPayload(payload, input.ArchiveID)
	if err != nil {
		return nil, ProposalOutput{}, toolError("create proposal", err)
	}
	p := &domain.Proposal{
		Type:            payload.Kind(),
		TargetArchiveID: input.ArchiveID,
		Payload:         payload,
		Reasoning:       input.Reasoning,
	}
	if err := s.ports.Proposals.Create(ctx, p); err != nil {
		return nil, ProposalOutput{}, toolError("create proposal", err)
	}
	return nil, proposalOutput(p), nil
}

// handleApproveProposal handles the approve_proposal tool invocation.
func (s *Server) handleApproveProposal(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProposalIDInput,
) (*mcp.CallToolResult, ProposalOutput, error) {
	if s.ports.Proposals == nil {
		return nil, ProposalOutput{}, toolError("approve proposal", errNotConfigured)
	}
	p, err := s.ports.Proposals.Approve(ctx, input.ID)
	if err != nil {
		return nil, ProposalOutput{}, toolError("approve proposal", err)
	}
	return nil, proposalOutput(p), nil
}

// handleRejectProposal handles the reject_proposal tool invocation.
func (s *Server) handleRejectProposal(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProposalIDInput,
) (*mcp.CallToolResult, ProposalOutput, error) {
	if s.ports.Proposals == nil {
		return nil, ProposalOutput{}, toolError("reject proposal", errNotConfigured)
	}
	p, err := s.ports.Proposals.Reject(ctx, input.ID)
	if err != nil {
		return nil, ProposalOutput{}, toolError("reject proposal", err)
	}
	return nil, proposalOutput(p), nil
}

// handleRefine handles the refine tool invocation.
func (s *Server) handleRefine(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RefineInput,
) (*mcp.CallToolResult, RefineOutput, error) {
	if s.ports.Refinement == nil {
		return nil, RefineOutput{}, toolError("refine", errNotConfigured)
	}

	if input.ArchiveID != "" {
		p, err := s.ports.Refinement.RefineArchive(ctx, input.ArchiveID)
		if err != nil {
			return nil, RefineOutput{}, toolError("refine", err)
		}
		return nil, RefineOutput{Scanned: 1, Proposed: 1, ProposalIDs: []string{p.ID}}, nil
	}

	report, err := s.ports.Refinement.Sweep(ctx)
	if err != nil {
		return nil, RefineOutput{}, toolError("refine", err)
	}
	return nil, refineOutput(report), nil
}

func proposalOutput(p *domain.Proposal) ProposalOutput {
	return ProposalOutput{
		ID:              p.ID,
		Type:            string(p.Type),
		TargetArchiveID: p.TargetArchiveID,
		Status:          string(p.Status),
		Reasoning:       p.Reasoning,
		Chunks:          len(payloadChunks(p.Payload)),
		CreatedAt:       p.CreatedAt,
		ResolvedAt:      p.ResolvedAt,
	}
}

func refineOutput(r *domain.SweepReport) RefineOutput {
	out := RefineOutput{
		Scanned:     r.Scanned,
		Proposed:    r.Proposed,
		Skipped:     r.Skipped,
		Deferred:    r.Deferred,
		Failed:      r.Failed,
		ProposalIDs: r.ProposalIDs,
	}
	if out.ProposalIDs == nil {
		out.ProposalIDs = []string{}
	}
	if len(r.Fallbacks) > 0 {
		out.Fallbacks = make(map[string]int, len(r.Fallbacks))
		for reason, n := range r.Fallbacks {
			out.Fallbacks[string(reason)] = n
		}
	}
	return out
}

// payloadChunks returns the proposed chunks of split and enrich payloads.
func payloadChunks(p domain.Payload) []domain.ProposedChunk {
	switch v := p.(type) {
	case domain.SplitPayload:
		return v.Chunks
	case domain.EnrichPayload:
		return v.Chunks
	default:
		return nil
	}
}
