package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"caseboard-sync-server/internal/domain"
)

// API is the HTTP side of the sync protocol: snapshot get, create and
// conditional replace against the board endpoints.
type API struct {
	baseURL  string
	clientID string
	client   *http.Client
}

func NewAPI(baseURL, clientID string) *API {
	return &API{
		baseURL:  baseURL,
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *API) ClientID() string {
	return a.clientID
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type conflictData struct {
	CurrentVersion domain.VersionTag `json:"currentVersion"`
}

func (a *API) boardURL(boardID string) string {
	return fmt.Sprintf("%s/api/v1/boards/%s", a.baseURL, boardID)
}

func (a *API) GetBoard(ctx context.Context, boardID string) (*domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.boardURL(boardID), nil)
	if err != nil {
		return nil, err
	}

	return a.doSnapshot(req, boardID)
}

func (a *API) CreateBoard(ctx context.Context, boardID string, snap *domain.Snapshot) (*domain.Snapshot, error) {
	req, err := a.saveRequest(ctx, http.MethodPost, boardID, snap, domain.NoVersion)
	if err != nil {
		return nil, err
	}

	return a.doSnapshot(req, boardID)
}

// ReplaceBoard performs the conditional write. expected is the version tag
// the caller read or last wrote; an empty tag forces the write.
func (a *API) ReplaceBoard(ctx context.Context, boardID string, snap *domain.Snapshot, expected domain.VersionTag) (*domain.Snapshot, error) {
	req, err := a.saveRequest(ctx, http.MethodPut, boardID, snap, expected)
	if err != nil {
		return nil, err
	}

	return a.doSnapshot(req, boardID)
}

func (a *API) DeleteBoard(ctx context.Context, boardID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.boardURL(boardID), nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete board %s: status %d", boardID, resp.StatusCode)
	}
	return nil
}

func (a *API) saveRequest(ctx context.Context, method, boardID string, snap *domain.Snapshot, expected domain.VersionTag) (*http.Request, error) {
	body := domain.SaveBoardRequest{
		Board:    snap.Board,
		Nodes:    snap.Nodes,
		Edges:    snap.Edges,
		Version:  expected,
		ClientID: a.clientID,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, a.boardURL(boardID), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func (a *API) doSnapshot(req *http.Request, boardID string) (*domain.Snapshot, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("bad response for board %s: %w", boardID, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var snap domain.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			return nil, fmt.Errorf("bad snapshot for board %s: %w", boardID, err)
		}
		return &snap, nil

	case http.StatusNotFound:
		return nil, domain.ErrBoardNotFound

	case http.StatusConflict:
		if env.Error == "version_conflict" {
			var data conflictData
			json.Unmarshal(env.Data, &data)
			return nil, &domain.VersionConflictError{
				BoardID: boardID,
				Current: data.CurrentVersion,
			}
		}
		return nil, domain.ErrBoardExists

	default:
		return nil, fmt.Errorf("board %s: status %d: %s", boardID, resp.StatusCode, env.Error)
	}
}
