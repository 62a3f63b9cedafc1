package services

import (
	"context"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/cache"
)

const profileMeKey = "profile:me"

// ProfileService serves the current user's server-side profile.
type ProfileService interface {
	// Me returns the identity as the server currently sees it, cached
	// briefly to keep repeated view renders from refetching.
	Me(ctx context.Context) (*api.Identity, error)

	// Invalidate drops the cached profile; call after a profile mutation.
	Invalidate()
}

type profileService struct {
	client api.Client
	cache  *cache.Cache
}

func NewProfileService(client api.Client, c *cache.Cache) ProfileService {
	return &profileService{client: client, cache: c}
}

func (s *profileService) Me(ctx context.Context) (*api.Identity, error) {
	if v, ok := s.cache.Get(profileMeKey); ok {
		return v.(*api.Identity), nil
	}

	id, err := s.client.Me(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(profileMeKey, id)
	return id, nil
}

func (s *profileService) Invalidate() {
	s.cache.ClearByPrefix(profileMeKey)
}
