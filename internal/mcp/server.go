// Package mcp exposes the diagnosis matching engine and the reference
// catalog as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
)

// Predictor answers prediction requests.
type Predictor interface {
	PredictRaw(ctx context.Context, raw json.RawMessage) ([]domain.Prediction, error)
}

// Catalog serves reference data.
type Catalog interface {
	ListSymptoms(ctx context.Context) ([]domain.Symptom, error)
	DiagnosisDetail(ctx context.Context, id int64) (*domain.DiagnosisDetail, error)
	ClinicDetail(ctx context.Context, id int64) (*domain.ClinicDetail, error)
}

// Server represents the MCP server
type Server struct {
	mcpServer *mcp.Server
	predictor Predictor
	catalog   Catalog
	logger    *logrus.Logger
}

// NewServer creates an MCP server and registers its tools.
func NewServer(cfg domain.MCPConfig, predictor Predictor, catalog Catalog, logger *logrus.Logger) *Server {
	name := cfg.ServerName
	if name == "" {
		name = "ontani-mcp-server"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "v0.1.0"
	}

	server := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		predictor: predictor,
		catalog:   catalog,
		logger:    logger,
	}
	server.registerTools()

	return server
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves over the given transport.
func (s *Server) RunTransport(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting MCP server")
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// registerTools registers every tool with the SDK.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "predict_diagnoses",
		Description: "Rank up to five candidate diagnoses for a list of symptom ids (belirtiler). " +
			"Each result carries matched symptoms, all symptoms of the diagnosis and the clinics that treat it.",
	}, s.handlePredict)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_symptoms",
		Description: "List every known symptom with its id, to build input for predict_diagnoses.",
	}, s.handleListSymptoms)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_diagnosis",
		Description: "Describe one diagnosis: its clinics and complete symptom list.",
	}, s.handleGetDiagnosis)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_clinic",
		Description: "Describe one clinic and the diagnoses it treats.",
	}, s.handleGetClinic)

	s.logger.WithField("tool_count", 4).Debug("Registered MCP tools")
}
