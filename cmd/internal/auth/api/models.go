package authapi

import "time"

type registerRequest struct {
	Name            string  `json:"name"`
	Mobile          string  `json:"mobile"`
	Age             *int    `json:"age,omitempty"`
	Gender          *string `json:"gender,omitempty"`
	Password        string  `json:"password"`
	ConfirmPassword *string `json:"confirm_password,omitempty"`
}

type loginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`

	// Some clients echo the password confirmation on login too; accepted
	// and checked when present.
	ConfirmPassword *string `json:"confirm_password,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sendMessageRequest struct {
	To          string `json:"to"`
	ClientMsgID string `json:"client_msg_id"`
	Text        string `json:"text"`

	FileID   *string `json:"file_id,omitempty"`
	FileName *string `json:"file_name,omitempty"`
	FileMime *string `json:"file_mime,omitempty"`
	FileSize *int64  `json:"file_size,omitempty"`
}

type userResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Mobile         string     `json:"mobile"`
	Age            *int       `json:"age,omitempty"`
	Gender         *string    `json:"gender,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type registerResponse struct {
	User userResponse `json:"user"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type usersResponse struct {
	Users []userResponse `json:"users"`
}

type messageResponse struct {
	MessageID   string    `json:"message_id"`
	ClientMsgID string    `json:"client_msg_id,omitempty"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Text        string    `json:"text"`
	FileID      *string   `json:"file_id,omitempty"`
	FileName    *string   `json:"file_name,omitempty"`
	FileMime    *string   `json:"file_mime,omitempty"`
	FileSize    *int64    `json:"file_size,omitempty"`
	ServerTS    time.Time `json:"server_ts"`
	Delivered   bool      `json:"delivered"`
}

type historyResponse struct {
	Messages []messageResponse `json:"messages"`
	HasMore  bool              `json:"has_more"`
}
