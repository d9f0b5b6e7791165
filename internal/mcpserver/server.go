// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes skill index tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/frontmatter"
	"github.com/dagster-io/skills/internal/skillservice"
)

const formatURI = "skills://frontmatter-format"

// Server wraps the MCP server with skill index tools.
type Server struct {
	mcp *server.MCPServer
	svc *skillservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *skillservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"skillindex",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List the configured skills and their root directories."),
	), s.listSkills)

	s.mcp.AddTool(mcp.NewTool("validate_frontmatter",
		mcp.WithDescription("Validate the YAML frontmatter of every reference document of a skill."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill name")),
	), s.validateFrontmatter)

	s.mcp.AddTool(mcp.NewTool("check_drift",
		mcp.WithDescription("Report which generated index regions of a skill are out of date. Nothing is written."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill name")),
	), s.checkDrift)

	s.mcp.AddTool(mcp.NewTool("generate_index",
		mcp.WithDescription("Regenerate the reference index of a skill and write every changed file."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill name")),
	), s.generateIndex)

	s.mcp.AddTool(mcp.NewTool("link_report",
		mcp.WithDescription("Broken links and files unreachable from the skill entry file."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill name")),
	), s.linkReport)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find every markdown link of a skill that points at the given file."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill name")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Target path relative to the skill root (e.g. references/assets.md)")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("search_references",
		mcp.WithDescription("Full-text search through reference descriptions, triggers and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchReferences)

	s.mcp.AddTool(mcp.NewTool("create_reference",
		mcp.WithDescription("Create a new reference document and regenerate the skill index. "+
			"The frontmatter MUST follow the contract; read it first via the "+
			"get_frontmatter_contract tool or the "+formatURI+" resource."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill name")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the references directory (must end with .md)")),
		mcp.WithString("description", mcp.Required(), mcp.Description("One-line description shown in the index")),
		mcp.WithArray("triggers", mcp.Required(), mcp.Description("Non-empty list of trigger phrases"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("body", mcp.Description("Markdown body")),
		mcp.WithString("type", mcp.Description(`Set to "index" for a deferred index file`)),
	), s.createReference)

	s.mcp.AddTool(mcp.NewTool("get_frontmatter_contract",
		mcp.WithDescription("Returns the reference frontmatter contract. "+
			"Call this before creating reference documents."),
	), s.getFrontmatterContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Frontmatter Format Contract",
			mcp.WithResourceDescription("Frontmatter schema every reference document must satisfy."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSkills(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Skills())
}

func (s *Server) validateFrontmatter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("skill")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issues, err := s.svc.Validate(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(issues) == 0 {
		return mcp.NewToolResultText("All front matter is valid."), nil
	}
	return issuesResult(issues)
}

func (s *Server) checkDrift(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("skill")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Drift(ctx, name)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (s *Server) generateIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("skill")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Generate(ctx, name)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

type linkReport struct {
	Skill   string        `json:"skill"`
	Links   int           `json:"links"`
	Files   int           `json:"files"`
	Orphans []string      `json:"orphans"`
	Issues  apperr.Issues `json:"issues"`
}

func (s *Server) linkReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("skill")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.svc.Report(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := linkReport{
		Skill:   name,
		Links:   len(rep.Links),
		Files:   len(rep.Files),
		Orphans: rep.Orphans(),
		Issues:  rep.Issues(),
	}
	if out.Orphans == nil {
		out.Orphans = []string{}
	}
	if out.Issues == nil {
		out.Issues = apperr.Issues{}
	}
	return jsonResult(out)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("skill")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, name, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(bl)
}

func (s *Server) searchReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) createReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("skill")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	triggers, err := stringSlice(req.GetArguments()["triggers"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fm := frontmatter.Frontmatter{
		Description: desc,
		Triggers:    triggers,
		Type:        req.GetString("type", ""),
	}

	res, err := s.svc.CreateReference(ctx, name, path, fm, req.GetString("body", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (s *Server) getFrontmatterContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontmatterFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FrontmatterFormatContract,
		},
	}, nil
}

// errorResult turns validation failures into a readable issue list and
// everything else into a plain error message.
func errorResult(err error) (*mcp.CallToolResult, error) {
	var issues apperr.Issues
	if errors.As(err, &issues) {
		return issuesResult(issues)
	}
	var se *frontmatter.SchemaError
	if errors.As(err, &se) {
		return mcp.NewToolResultError("invalid front matter: " + se.Error()), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func issuesResult(issues apperr.Issues) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(issues, "", "  ")
	return mcp.NewToolResultError(string(out)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func stringSlice(v any) ([]string, error) {
	switch items := v.(type) {
	case nil:
		return nil, errors.New(`required argument "triggers" not found`)
	case []string:
		return items, nil
	case []any:
		out := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("triggers[%d] must be a string", i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New("triggers must be an array of strings")
	}
}
