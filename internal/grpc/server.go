package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Billy-Davies-2/mitzi/internal/editor"
	"github.com/Billy-Davies-2/mitzi/internal/fonts"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/pubsub"
	"github.com/Billy-Davies-2/mitzi/internal/render"
	"github.com/Billy-Davies-2/mitzi/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DegradedHeader is sent as response metadata when a change was applied but not persisted
const DegradedHeader = "x-persistence-degraded"

// Server implements the gRPC SheetService
type Server struct {
	store    *store.Store
	tiers    *editor.TierEditor
	rules    *editor.RuleEditor
	renderer *render.Renderer
	pubsub   *pubsub.PubSub
}

// NewServer creates a new gRPC server
func NewServer(s *store.Store, renderer *render.Renderer, ps *pubsub.PubSub) *Server {
	return &Server{
		store:    s,
		tiers:    editor.NewTierEditor(s),
		rules:    editor.NewRuleEditor(s),
		renderer: renderer,
		pubsub:   ps,
	}
}

// toStatus maps domain errors onto gRPC codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, editor.ErrTierNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrInvalidDocument),
		errors.Is(err, editor.ErrDuplicateTier),
		errors.Is(err, editor.ErrInvalidTier),
		errors.Is(err, editor.ErrEmptyRule),
		errors.Is(err, render.ErrUnsupportedFormat):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, fonts.ErrFontLoadFailed):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// result answers a mutation. A degraded commit succeeds and flags the response header.
func result(ctx context.Context, method string, doc models.Document, err error) (*structpb.Struct, error) {
	if err != nil && !store.IsDegraded(err) {
		logger.Warn("gRPC: Request failed", "method", method, "error", err)
		return nil, toStatus(err)
	}
	if err != nil {
		logger.Warn("gRPC: Change not persisted", "method", method, "error", err)
		grpc.SetHeader(ctx, metadata.Pairs(DegradedHeader, "true"))
	}
	return toStruct(doc)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("malformed message: %v", err))
	}
	return nil
}

// GetSheet returns the current sheet
func (s *Server) GetSheet(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Debug("gRPC: Getting sheet")
	return toStruct(s.store.Get())
}

// AddTier appends a tier, assigning an id when none is given
func (s *Server) AddTier(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var tier models.Tier
	if err := fromStruct(req, &tier); err != nil {
		return nil, err
	}

	added, doc, err := s.tiers.Add(ctx, tier)
	if err == nil || store.IsDegraded(err) {
		logger.Info("gRPC: Added tier", "id", added.ID, "name", added.Name)
	}
	return result(ctx, "AddTier", doc, err)
}

// UpdateTier replaces the tier with the same id
func (s *Server) UpdateTier(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var tier models.Tier
	if err := fromStruct(req, &tier); err != nil {
		return nil, err
	}
	doc, err := s.tiers.Update(ctx, tier)
	return result(ctx, "UpdateTier", doc, err)
}

// RemoveTier deletes a tier by id
func (s *Server) RemoveTier(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	logger.Info("gRPC: Removing tier", "id", req.GetValue())
	doc, err := s.tiers.Remove(ctx, req.GetValue())
	return result(ctx, "RemoveTier", doc, err)
}

// AddRule appends a rule
func (s *Server) AddRule(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	doc, err := s.rules.Add(ctx, req.GetValue())
	return result(ctx, "AddRule", doc, err)
}

// RemoveRule removes the first rule with the given text
func (s *Server) RemoveRule(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	doc, err := s.rules.Remove(ctx, req.GetValue())
	return result(ctx, "RemoveRule", doc, err)
}

// ExportPNG renders the sheet as a PNG image
func (s *Server) ExportPNG(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	a, err := s.renderer.Export(ctx, s.store.Get(), models.ExportPNG, "grpc")
	if err != nil {
		logger.Error("gRPC: Export failed", "error", err)
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(a.Data), nil
}

// StreamEvents streams change events to clients
func (s *Server) StreamEvents(_ *emptypb.Empty, stream grpc.ServerStream) error {
	logger.Debug("gRPC: New client connected to event stream")
	eventChan := s.pubsub.Subscribe()
	defer s.pubsub.Unsubscribe(eventChan)

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return nil
			}
			msg, err := toStruct(event)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(msg); err != nil {
				logger.Error("gRPC: Failed to send event to stream", "error", err)
				return err
			}
		case <-stream.Context().Done():
			logger.Debug("gRPC: Client disconnected from event stream")
			return nil
		}
	}
}
