package handlers

import (
	"github.com/zfogg/sidechain/profiles/internal/cache"
	"github.com/zfogg/sidechain/profiles/internal/profile"
	"github.com/zfogg/sidechain/profiles/internal/repository"
	"gorm.io/gorm"
)

// Handlers contains all HTTP handlers for the profile API
type Handlers struct {
	db     *gorm.DB
	users  repository.UserRepository
	cache  cache.ProfileCache
	mirror profile.Mirror
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *gorm.DB, users repository.UserRepository) *Handlers {
	return &Handlers{
		db:    db,
		users: users,
		cache: cache.Noop{},
	}
}

// SetProfileCache sets the read-through profile cache
func (h *Handlers) SetProfileCache(c cache.ProfileCache) {
	if c == nil {
		c = cache.Noop{}
	}
	h.cache = c
}

// SetMirror sets the system that receives committed profile changes
func (h *Handlers) SetMirror(m profile.Mirror) {
	h.mirror = m
}
