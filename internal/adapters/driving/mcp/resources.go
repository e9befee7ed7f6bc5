package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/memex/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for memex resources.
	uriScheme = "memex://"

	mimeJSON = "application/json"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "archives/{archiveId}",
		Name:        "archive",
		Description: "An archive with its metadata, status and full text",
		MIMEType:    mimeJSON,
	}, s.handleArchiveResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "archives/{archiveId}/nodes",
		Name:        "archive-nodes",
		Description: "The searchable chunks of an archive in order",
		MIMEType:    mimeJSON,
	}, s.handleNodesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "proposals/{proposalId}",
		Name:        "proposal",
		Description: "A refinement proposal with its proposed chunks",
		MIMEType:    mimeJSON,
	}, s.handleProposalResource)
}

type archiveResource struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	MetaData     map[string]any `json:"meta_data,omitempty"`
	SemanticDate time.Time      `json:"semantic_date"`
	HasEmbedding bool           `json:"has_embedding"`
	CreatedAt    time.Time      `json:"created_at"`
	FullText     string         `json:"full_text"`
}

type nodeResource struct {
	ID         string         `json:"id"`
	ChunkIndex int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

type proposalResource struct {
	ProposalOutput
	Payload domain.Payload `json:"payload"`
}

// handleArchiveResource returns one archive.
func (s *Server) handleArchiveResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := archiveIDFromURI(req.Params.URI)
	if !ok || s.ports.Archives == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	archive, err := s.ports.Archives.Get(ctx, id)
	if err != nil {
		return nil, resourceError(req.Params.URI, "getting archive", err)
	}

	return jsonResource(req.Params.URI, archiveResource{
		ID:           archive.ID,
		Status:       string(archive.Status),
		MetaData:     archive.MetaData,
		SemanticDate: archive.SemanticDate(),
		HasEmbedding: len(archive.Embedding) > 0,
		CreatedAt:    archive.CreatedAt,
		FullText:     archive.FullText,
	})
}

// handleNodesResource returns the nodes of one archive.
func (s *Server) handleNodesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := nodesArchiveIDFromURI(req.Params.URI)
	if !ok || s.ports.Archives == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	nodes, err := s.ports.Archives.Nodes(ctx, id)
	if err != nil {
		return nil, resourceError(req.Params.URI, "listing nodes", err)
	}

	out := make([]nodeResource, len(nodes))
	for i, n := range nodes {
		out[i] = nodeResource{ID: n.ID, ChunkIndex: n.ChunkIndex, Content: n.Content, Meta: n.Meta}
	}
	return jsonResource(req.Params.URI, out)
}

// handleProposalResource returns one proposal with its payload.
func (s *Server) handleProposalResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := proposalIDFromURI(req.Params.URI)
	if !ok || s.ports.Proposals == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	p, err := s.ports.Proposals.Get(ctx, id)
	if err != nil {
		return nil, resourceError(req.Params.URI, "getting proposal", err)
	}

	return jsonResource(req.Params.URI, proposalResource{
		ProposalOutput: proposalOutput(p),
		Payload:        p.Payload,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(data),
		}},
	}, nil
}

func resourceError(uri, op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return mcp.ResourceNotFoundError(uri)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// archiveIDFromURI extracts the id from memex://archives/{id}.
func archiveIDFromURI(uri string) (string, bool) {
	id, ok := strings.CutPrefix(uri, uriScheme+"archives/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// nodesArchiveIDFromURI extracts the id from memex://archives/{id}/nodes.
func nodesArchiveIDFromURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, uriScheme+"archives/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/nodes")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// proposalIDFromURI extracts the id from memex://proposals/{id}.
func proposalIDFromURI(uri string) (string, bool) {
	id, ok := strings.CutPrefix(uri, uriScheme+"proposals/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
