package domain

import "time"

type NodeType string

const (
	NodeTypeText  NodeType = "text"
	NodeTypeImage NodeType = "image"
	NodeTypeLink  NodeType = "link"
)

// Board holds the metadata of an evidence board. Nodes and edges live in
// the board's Snapshot, not here.
type Board struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	IsPublic  bool      `json:"is_public"`
	OwnerID   *string   `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`

	X float64  `json:"x"`
	Y float64  `json:"y"`
	W *float64 `json:"w,omitempty"`
	H *float64 `json:"h,omitempty"`

	Title string   `json:"title,omitempty"`
	Body  string   `json:"body,omitempty"`
	Tags  []string `json:"tags,omitempty"`

	ImageURL     string `json:"image_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	LinkURL         string `json:"link_url,omitempty"`
	LinkTitle       string `json:"link_title,omitempty"`
	LinkDescription string `json:"link_description,omitempty"`
	LinkImage       string `json:"link_image,omitempty"`
}

type Edge struct {
	SourceID string  `json:"source"`
	TargetID string  `json:"target"`
	Label    string  `json:"label,omitempty"`
	Color    string  `json:"color,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Dash     bool    `json:"dash,omitempty"`
	Curve    string  `json:"curve,omitempty"`
	Animated bool    `json:"animated,omitempty"`
}

// Snapshot is the atomic unit of persistence and synchronization: the full
// board state plus the version tag it was read or written at.
type Snapshot struct {
	Board   Board      `json:"board"`
	Nodes   []Node     `json:"nodes"`
	Edges   []Edge     `json:"edges"`
	Version VersionTag `json:"version"`
}

// BoardSummary is the light listing shape: no nodes or edges.
type BoardSummary struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	IsPublic  bool       `json:"is_public"`
	NodeCount int        `json:"node_count"`
	Version   VersionTag `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SaveBoardRequest is the body of POST/PUT /boards/{id}. Version is the
// caller's expected tag; empty means unconditional (hydration writes only).
// ClientID identifies the writing session so the fanout can exclude it.
type SaveBoardRequest struct {
	Board    Board      `json:"board"`
	Nodes    []Node     `json:"nodes" validate:"dive"`
	Edges    []Edge     `json:"edges" validate:"dive"`
	Version  VersionTag `json:"version"`
	ClientID string     `json:"client_id"`
}

func (r *SaveBoardRequest) Snapshot() *Snapshot {
	return &Snapshot{
		Board:   r.Board,
		Nodes:   r.Nodes,
		Edges:   r.Edges,
		Version: r.Version,
	}
}
