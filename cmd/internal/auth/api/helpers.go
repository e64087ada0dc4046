package authapi

import (
	"ripple/cmd/identity"
	"ripple/cmd/internal/auth/session"
	"ripple/cmd/internal/realtime"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Name:           u.Name,
		Mobile:         u.Mobile,
		Age:            u.Age,
		Gender:         u.Gender,
		CreatedAt:      u.CreatedAt,
		LastLoginAt:    u.LastLoginAt,
		LastActivityAt: u.LastActivityAt,
	}
}

func toTokenPairResponse(issued session.Issued) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      issued.AccessToken,
		RefreshToken:     issued.RefreshToken,
		TokenType:        "bearer",
		AccessExpiresAt:  issued.AccessExp,
		RefreshExpiresAt: issued.RefreshExp,
	}
}

func toMessageResponse(m realtime.StoredMessage, delivered bool) messageResponse {
	return messageResponse{
		MessageID:   m.ID,
		ClientMsgID: m.ClientMsgID,
		From:        m.SenderID,
		To:          m.RecipientID,
		Text:        m.Text,
		FileID:      m.FileID,
		FileName:    m.FileName,
		FileMime:    m.FileMime,
		FileSize:    m.FileSize,
		ServerTS:    m.ServerTS,
		Delivered:   delivered,
	}
}
