package identity

// RegisterRequest is the register request body.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthRequest is the authenticate request body.
type AuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RevokeRequest is the token revocation request body.
type RevokeRequest struct {
	Token string `json:"token"`
}
