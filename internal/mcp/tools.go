package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/sprite-ai/lexisafe/internal/analysis"
	"github.com/sprite-ai/lexisafe/internal/model"
	"github.com/sprite-ai/lexisafe/internal/review"
)

// ParseInput is the input schema for the parse_risks tool.
type ParseInput struct {
	Raw string `json:"raw" jsonschema:"model response with records separated by ### and fields by |"`
}

// ReviewOutput describes the risks found in a contract or a raw response.
type ReviewOutput struct {
	Document    string      `json:"document,omitempty"`
	Summary     string      `json:"summary"`
	MaxSeverity string      `json:"max_severity,omitempty"`
	Total       int         `json:"total"`
	Risks       RiskBuckets `json:"risks"`
	Warnings    []string    `json:"warnings,omitempty"`
	Dropped     int         `json:"dropped_segments"`
}

// RiskBuckets holds risks by severity.
type RiskBuckets struct {
	High   []RiskOutput `json:"high"`
	Medium []RiskOutput `json:"medium"`
	Low    []RiskOutput `json:"low"`
}

// RiskOutput is one risky or safe clause.
type RiskOutput struct {
	Title          string `json:"title"`
	Severity       string `json:"severity" jsonschema:"High, Medium or Low"`
	Explanation    string `json:"explanation"`
	RecommendedFix string `json:"recommended_fix,omitempty"`
}

// ContractInput is the input schema for tools that read a contract from disk.
type ContractInput struct {
	Path string `json:"path" jsonschema:"path to the contract PDF"`
}

// EmailOutput is the output schema for the draft_negotiation_email tool.
type EmailOutput struct {
	Document string `json:"document"`
	Summary  string `json:"summary"`
	Email    string `json:"email"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parse_risks",
		Description: "Parse a delimited risk analysis response into Critical, Warning and Safe buckets",
	}, s.handleParse)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_contract",
		Description: "Extract a contract PDF and list its risky and safe clauses",
	}, s.handleAnalyze)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "draft_negotiation_email",
		Description: "Analyze a contract PDF and draft a negotiation email for its High and Medium risks",
	}, s.handleDraftEmail)
}

func newReviewOutput(document string, risks model.RiskCollection, stats analysis.Stats, warnings []string) ReviewOutput {
	out := ReviewOutput{
		Document: document,
		Summary:  risks.Summary(),
		Total:    risks.Total(),
		Risks: RiskBuckets{
			High:   toOutput(risks.High),
			Medium: toOutput(risks.Medium),
			Low:    toOutput(risks.Low),
		},
		Warnings: warnings,
		Dropped:  stats.Dropped(),
	}
	if sev, ok := risks.MaxSeverity(); ok {
		out.MaxSeverity = sev.String()
	}
	return out
}

func toOutput(records []model.RiskRecord) []RiskOutput {
	out := make([]RiskOutput, len(records))
	for i, r := range records {
		out[i] = RiskOutput{
			Title:          r.Title,
			Severity:       r.Severity.String(),
			Explanation:    r.Explanation,
			RecommendedFix: r.RecommendedFix,
		}
	}
	return out
}

// handleParse handles the parse_risks tool invocation.
func (s *Server) handleParse(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ParseInput,
) (*mcp.CallToolResult, ReviewOutput, error) {
	risks, stats := analysis.ParseWithStats(input.Raw)
	return nil, newReviewOutput("", risks, stats, nil), nil
}

// analyze loads the contract at path into a fresh orchestrator and analyzes it.
func (s *Server) analyze(ctx context.Context, path string) (*review.Orchestrator, review.Analysis, error) {
	if path == "" {
		return nil, review.Analysis{}, ErrMissingPath
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, review.Analysis{}, fmt.Errorf("reading contract: %w", err)
	}

	o := s.newSession()
	if _, err := o.Upload(filepath.Base(path), content); err != nil {
		return nil, review.Analysis{}, err
	}
	result, err := o.RunAnalysis(ctx)
	if err != nil {
		s.log.Warn("tool analysis failed", zap.String("path", path), zap.Error(err))
		return nil, review.Analysis{}, fmt.Errorf("analyzing %s: %w", filepath.Base(path), err)
	}
	return o, result, nil
}

// handleAnalyze handles the analyze_contract tool invocation.
func (s *Server) handleAnalyze(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ContractInput,
) (*mcp.CallToolResult, ReviewOutput, error) {
	o, result, err := s.analyze(ctx, input.Path)
	if err != nil {
		return nil, ReviewOutput{}, err
	}
	snap := o.Session().Snapshot()
	return nil, newReviewOutput(snap.DocumentName, result.Risks, result.Stats, snap.Warnings), nil
}

// handleDraftEmail handles the draft_negotiation_email tool invocation.
func (s *Server) handleDraftEmail(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ContractInput,
) (*mcp.CallToolResult, EmailOutput, error) {
	o, result, err := s.analyze(ctx, input.Path)
	if err != nil {
		return nil, EmailOutput{}, err
	}

	email, err := o.DraftEmail(ctx)
	if err != nil {
		return nil, EmailOutput{}, err
	}
	return nil, EmailOutput{
		Document: o.Session().Document().Name,
		Summary:  result.Risks.Summary(),
		Email:    email,
	}, nil
}
