package session

import "github.com/tcorreia/wine-rater/internal/types"

// CreateSessionRequest is the create session request body.
type CreateSessionRequest struct {
	WineName        string             `json:"wineName"`
	WineDetails     *types.WineDetails `json:"wineDetails,omitempty"`
	CreatedBy       string             `json:"createdBy"`
	CreatorUsername string             `json:"creatorUsername"`
}
