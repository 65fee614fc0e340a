package domain

// Operator authentication types. The authenticated operator identity is
// the actor threaded explicitly through every core call.

// LoginRequest carries operator credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns a signed access token for the API.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Operator    string `json:"operator"`
}
