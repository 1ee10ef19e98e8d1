package identity

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid ABHA ID or phone number")
	ErrUserNotFound       = errors.New("user not found")
)

// Profile is an ABHA account holder from the mock user directory. Dates are
// kept exactly as the directory spells them.
type Profile struct {
	ABHAID    string `json:"abha_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	DOB       string `json:"dob"`
	Gender    string `json:"gender"`
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
}

// LoginRequest is the body of POST /abha/login.
type LoginRequest struct {
	ABHAID string `json:"abha_id"`
	Phone  string `json:"phone"`
}

type LoginResponse struct {
	Message     string   `json:"message"`
	ABHAUser    *Profile `json:"abha_user"`
	AccessToken string   `json:"access_token"`
}
