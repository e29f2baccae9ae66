// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/presencewatch/internal/models"
)

// PresenceSource fetches presence from the gaming platform on behalf of one
// account session token.
type PresenceSource interface {
	CurrentUser(ctx context.Context, token string) (*models.Account, error)
	Friends(ctx context.Context, token string) ([]models.Friend, error)
}

// Platform operation labels.
const (
	OpCurrentUser = "current_user"
	OpFriends     = "friends"
)

// PlatformClient implements PresenceSource over the platform REST API.
type PlatformClient struct {
	client *Client
}

// NewPlatformClient wraps client.
func NewPlatformClient(client *Client) *PlatformClient {
	return &PlatformClient{client: client}
}

// wirePresence is the platform's presence object.
type wirePresence struct {
	State     string    `json:"state"`
	UpdatedAt int64     `json:"updatedAt"`
	LogoutAt  int64     `json:"logoutAt"`
	Game      *wireGame `json:"game"`
}

type wireGame struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	ImageURI             string `json:"imageUri"`
	ModeTag              string `json:"modeTag"`
	SysDescription       string `json:"sysDescription"`
	TotalPlayTimeMinutes int64  `json:"totalPlayTime"`
	FirstPlayedAt        int64  `json:"firstPlayedAt"`
}

type wireUser struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	ImageURI string       `json:"imageUri"`
	Presence wirePresence `json:"presence"`
}

type wireFriends struct {
	Friends []wireUser `json:"friends"`
}

// CurrentUser fetches the account behind token.
func (p *PlatformClient) CurrentUser(ctx context.Context, token string) (*models.Account, error) {
	var u wireUser
	if err := p.client.Get(ctx, OpCurrentUser, "/v1/users/me", token, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, &Error{Kind: KindMalformed, Op: OpCurrentUser, Err: fmt.Errorf("user has no id")}
	}
	presence, err := u.Presence.toModel()
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Op: OpCurrentUser, Err: err}
	}
	return &models.Account{
		ID:       u.ID,
		Name:     u.Name,
		ImageURL: u.ImageURI,
		Presence: presence,
	}, nil
}

// Friends fetches the friend list of the account behind token.
func (p *PlatformClient) Friends(ctx context.Context, token string) ([]models.Friend, error) {
	var resp wireFriends
	if err := p.client.Get(ctx, OpFriends, "/v1/friends", token, &resp); err != nil {
		return nil, err
	}

	friends := make([]models.Friend, 0, len(resp.Friends))
	for _, f := range resp.Friends {
		presence, err := f.Presence.toModel()
		if err != nil {
			return nil, &Error{Kind: KindMalformed, Op: OpFriends, Err: fmt.Errorf("friend %s: %w", f.ID, err)}
		}
		friends = append(friends, models.Friend{
			ID:       f.ID,
			Name:     f.Name,
			ImageURL: f.ImageURI,
			Presence: presence,
		})
	}
	return friends, nil
}

func (w wirePresence) toModel() (models.Presence, error) {
	state := models.PresenceState(strings.ToLower(w.State))
	if !state.Valid() {
		return models.Presence{}, fmt.Errorf("unknown presence state %q", w.State)
	}

	p := models.Presence{
		State:     state,
		UpdatedAt: unixTime(w.UpdatedAt),
		LogoutAt:  unixTime(w.LogoutAt),
	}
	if w.Game != nil && w.Game.ID != "" {
		p.Game = &models.Game{
			ID:             w.Game.ID,
			Name:           w.Game.Name,
			ImageURL:       w.Game.ImageURI,
			ModeTag:        w.Game.ModeTag,
			SysDescription: w.Game.SysDescription,
			TotalPlayTime:  time.Duration(w.Game.TotalPlayTimeMinutes) * time.Minute,
			FirstPlayedAt:  unixTime(w.Game.FirstPlayedAt),
		}
	}
	return p, nil
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
