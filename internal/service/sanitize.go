package service

import (
	"caseboard-sync-server/internal/domain"
)

const (
	defaultMaxNodes     = 2000
	defaultMaxEdges     = 5000
	defaultMaxBodyBytes = 262144
	maxTitleBytes       = 1024
)

// Sanitizer enforces referential integrity and payload limits on incoming
// snapshots. Policy is partial acceptance: a bad edge or node is dropped
// rather than failing the whole save.
type Sanitizer struct {
	maxNodes     int
	maxEdges     int
	maxBodyBytes int
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		maxNodes:     defaultMaxNodes,
		maxEdges:     defaultMaxEdges,
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

func validNodeType(t domain.NodeType) bool {
	switch t {
	case domain.NodeTypeText, domain.NodeTypeImage, domain.NodeTypeLink:
		return true
	}
	return false
}

// Clean returns a sanitized copy of the snapshot. Nodes with blank ids,
// unknown types, or duplicate ids (first occurrence wins) are dropped.
// Edges are kept only when both endpoints survive and source != target.
func (s *Sanitizer) Clean(snap *domain.Snapshot) *domain.Snapshot {
	out := &domain.Snapshot{
		Board:   snap.Board,
		Version: snap.Version,
	}

	seen := make(map[string]bool, len(snap.Nodes))
	for _, node := range snap.Nodes {
		if len(out.Nodes) >= s.maxNodes {
			break
		}
		if node.ID == "" || seen[node.ID] || !validNodeType(node.Type) {
			continue
		}
		seen[node.ID] = true

		if len(node.Title) > maxTitleBytes {
			node.Title = node.Title[:maxTitleBytes]
		}
		if len(node.Body) > s.maxBodyBytes {
			node.Body = node.Body[:s.maxBodyBytes]
		}
		out.Nodes = append(out.Nodes, node)
	}

	for _, edge := range snap.Edges {
		if len(out.Edges) >= s.maxEdges {
			break
		}
		if edge.SourceID == edge.TargetID {
			continue
		}
		if !seen[edge.SourceID] || !seen[edge.TargetID] {
			continue
		}
		out.Edges = append(out.Edges, edge)
	}

	if len(out.Board.Title) > maxTitleBytes {
		out.Board.Title = out.Board.Title[:maxTitleBytes]
	}

	return out
}
