// Package mcp exposes the person graph and the index to MCP clients over
// stdio.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"chartedroots/internal/dupes"
	"chartedroots/internal/graph"
	"chartedroots/internal/store"
)

// PersonGraph is the cached graph the tools read from. *graph.Graph
// satisfies it.
type PersonGraph interface {
	Snapshot(ctx context.Context) (*graph.Snapshot, error)
}

// Index is the query side of the index store.
type Index interface {
	Search(ctx context.Context, query, collection string) ([]store.SearchResult, error)
	GetRelationships(ctx context.Context, id, relType, direction string, depth int) ([]store.Relationship, error)
	ListDanglingEdges(ctx context.Context) ([]store.Edge, error)
}

type Options struct {
	Version        string
	Duplicates     dupes.Options
	MaxGenerations int
	Logger         *logrus.Logger
}

type Server struct {
	people PersonGraph
	index  Index
	opts   Options
	log    *logrus.Logger
	mcp    *sdk.Server
}

// NewServer registers the tools. index may be nil, in which case the index
// backed tools report that no index is configured.
func NewServer(people PersonGraph, index Index, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.MaxGenerations <= 0 {
		opts.MaxGenerations = 10
	}
	s := &Server{
		people: people,
		index:  index,
		opts:   opts,
		log:    log,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "chartedroots",
			Version: opts.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	s.log.WithField("version", s.opts.Version).Info("mcp server starting")
	return s.mcp.Run(ctx, transport)
}
