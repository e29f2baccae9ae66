// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/tenant"
)

// accountToken resolves the {key} route parameter to its upstream token.
func (h *Handler) accountToken(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	key := chi.URLParam(r, "key")
	token, ok := h.accounts.Token(key)
	if !ok {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Unknown account", nil)
		return "", "", false
	}
	return key, token, true
}

// friends fetches the account's friend list through the tenant cache. The
// presence loops use the same key, so API reads and polling share fetches.
func (h *Handler) friends(ctx context.Context, key, token string) ([]models.Friend, tenant.Result, error) {
	return tenant.Get(ctx, h.cache, tenant.Key{Account: key, Resource: tenant.ResourceFriends},
		func(ctx context.Context) ([]models.Friend, error) {
			return h.source.Friends(ctx, token)
		})
}

// AccountUser returns the account's own user record.
func (h *Handler) AccountUser(w http.ResponseWriter, r *http.Request) {
	key, token, ok := h.accountToken(w, r)
	if !ok {
		return
	}

	started := time.Now()
	user, res, err := tenant.Get(r.Context(), h.cache, tenant.Key{Account: key, Resource: tenant.ResourceUser},
		func(ctx context.Context) (*models.Account, error) {
			return h.source.CurrentUser(ctx, token)
		})
	if err != nil {
		respondUpstreamError(w, r, err)
		return
	}

	out := *user
	out.Key = key
	respondData(w, out, cacheMeta(res, started))
}

// AccountFriends returns the account's friend list.
func (h *Handler) AccountFriends(w http.ResponseWriter, r *http.Request) {
	key, token, ok := h.accountToken(w, r)
	if !ok {
		return
	}

	started := time.Now()
	friends, res, err := h.friends(r.Context(), key, token)
	if err != nil {
		respondUpstreamError(w, r, err)
		return
	}
	if friends == nil {
		friends = []models.Friend{}
	}
	respondData(w, friends, cacheMeta(res, started))
}

// AccountFriend returns one friend from the account's friend list.
func (h *Handler) AccountFriend(w http.ResponseWriter, r *http.Request) {
	key, token, ok := h.accountToken(w, r)
	if !ok {
		return
	}

	started := time.Now()
	friends, res, err := h.friends(r.Context(), key, token)
	if err != nil {
		respondUpstreamError(w, r, err)
		return
	}

	f, found := models.FindFriend(friends, chi.URLParam(r, "id"))
	if !found {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Friend not found", nil)
		return
	}
	respondData(w, f, cacheMeta(res, started))
}
