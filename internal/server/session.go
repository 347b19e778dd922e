// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionCookie names the cookie carrying the client session id.
const SessionCookie = "pagetutor_session"

// ClientSession is the per-browser state kept between requests.
type ClientSession struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId,omitempty"`
	LastQuestion string    `json:"lastQuestion,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// sessionStore keeps client sessions in memory until they expire.
type sessionStore struct {
	cache *cache.Cache
	ttl   time.Duration
	mu    sync.Mutex
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &sessionStore{cache: cache.New(ttl, ttl/2), ttl: ttl}
}

// load returns the request's session, creating one and setting the cookie
// when the request has none or it expired.
func (s *sessionStore) load(w http.ResponseWriter, r *http.Request) ClientSession {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if v, ok := s.cache.Get(c.Value); ok {
			return v.(ClientSession)
		}
	}

	sess := ClientSession{ID: uuid.NewString(), UpdatedAt: time.Now()}
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// update applies fn to the stored session and refreshes its expiry.
func (s *sessionStore) update(id string, fn func(*ClientSession)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := ClientSession{ID: id}
	if v, ok := s.cache.Get(id); ok {
		sess = v.(ClientSession)
	}
	fn(&sess)
	sess.UpdatedAt = time.Now()
	s.cache.Set(id, sess, cache.DefaultExpiration)
}

func (s *sessionStore) len() int {
	return s.cache.ItemCount()
}
