// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package routing

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	dispatch "github.com/wneessen/go-mail-dispatch"
	"github.com/wneessen/go-mail-dispatch/log"
)

// UnsubscribedKey is the Redis set holding the ID hashes of unsubscribed contacts
const UnsubscribedKey = "unsubscribed"

// UnsubscribeStore records unsubscribe requests. Implementations must be safe for
// concurrent use.
type UnsubscribeStore interface {
	Unsubscribe(ctx context.Context, idHash string) error
	IsUnsubscribed(ctx context.Context, idHash string) (bool, error)
}

// RedisUnsubscribes is an UnsubscribeStore backed by a Redis set.
type RedisUnsubscribes struct {
	client *redis.Client
}

// NewRedisUnsubscribes returns a new RedisUnsubscribes using the given client.
func NewRedisUnsubscribes(client *redis.Client) *RedisUnsubscribes {
	return &RedisUnsubscribes{client: client}
}

// Unsubscribe satisfies the UnsubscribeStore interface.
func (r *RedisUnsubscribes) Unsubscribe(ctx context.Context, idHash string) error {
	return r.client.SAdd(ctx, UnsubscribedKey, idHash).Err()
}

// IsUnsubscribed satisfies the UnsubscribeStore interface.
func (r *RedisUnsubscribes) IsUnsubscribed(ctx context.Context, idHash string) (bool, error) {
	return r.client.SIsMember(ctx, UnsubscribedKey, idHash).Result()
}

// Handler serves the unsubscribe endpoint.
type Handler struct {
	store   UnsubscribeStore
	logger  log.Logger
	origins []string
}

// NewHandler returns a new Handler. If no allowed origins are given, all origins are allowed.
func NewHandler(store UnsubscribeStore, logger log.Logger, origins ...string) *Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{store: store, logger: logger, origins: origins}
}

// Router returns the HTTP handler with the unsubscribe route and the health checks.
//
// GET requests are the links clicked by the recipient. They only render a form asking for
// confirmation, so link scanners and prefetching clients do not unsubscribe anyone. The
// unsubscribe is recorded by POST requests, either the submitted form or a one-click
// unsubscribe sent by a mail client as described in RFC 8058, which is answered without content.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	r.Use(c.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get(UnsubscribePattern, h.unsubscribePage)
	r.Post(UnsubscribePattern, h.unsubscribePost)
	return r
}

const (
	// confirmField is the form field submitted by the confirmation page
	confirmField = "confirm"

	confirmPage = `<!DOCTYPE html><html><body><form method="post">` +
		`<p>Do you want to unsubscribe from these emails?</p>` +
		`<input type="hidden" name="` + confirmField + `" value="yes">` +
		`<button type="submit">Unsubscribe</button></form></body></html>`
	donePage = `<!DOCTYPE html><html><body><p>You have been unsubscribed.</p></body></html>`
)

func idHash(r *http.Request) (string, error) {
	hash := chi.URLParam(r, dispatch.ParamIDHash)
	if strings.TrimSpace(hash) == "" {
		return "", fmt.Errorf("missing id hash")
	}
	return hash, nil
}

func (h *Handler) unsubscribe(r *http.Request) (int, error) {
	hash, err := idHash(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	if err = h.store.Unsubscribe(r.Context(), hash); err != nil {
		h.logger.Errorf(log.Log{Component: log.CompHTTP, Format: "failed to record unsubscribe for %s: %s",
			Messages: []interface{}{hash, err}})
		return http.StatusInternalServerError, err
	}
	h.logger.Infof(log.Log{Component: log.CompHTTP, Format: "contact %s unsubscribed",
		Messages: []interface{}{hash}})
	return http.StatusOK, nil
}

func writePage(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func (h *Handler) unsubscribePage(w http.ResponseWriter, r *http.Request) {
	if _, err := idHash(r); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	writePage(w, confirmPage)
}

func (h *Handler) unsubscribePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	oneClick := r.PostForm.Get("List-Unsubscribe") == "One-Click"
	if !oneClick && r.PostForm.Get(confirmField) != "yes" {
		http.Error(w, "Invalid unsubscribe request", http.StatusBadRequest)
		return
	}
	status, err := h.unsubscribe(r)
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if oneClick {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writePage(w, donePage)
}
