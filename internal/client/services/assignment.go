// Package services contains application services for the teaching-assistant
// client. Services sit between the views and the API gateway: reads go
// through the response cache, mutations invalidate the affected key prefix.
package services

import (
	"context"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/cache"
)

// Cache key prefix for all assignment reads; cleared after any assignment
// mutation.
const assignmentKeyPrefix = "assignment:"

// AssignmentService exposes assignment reads and submissions.
//
// Contract:
//   - List/Get: cached reads with lazy TTL expiry.
//   - Submit: forwards the submission and invalidates every cached
//     assignment read.
//
// All methods must honor context cancellation/timeouts.
type AssignmentService interface {
	List(ctx context.Context) ([]api.Assignment, error)
	Get(ctx context.Context, id string) (*api.Assignment, error)
	Submit(ctx context.Context, id string, sub api.Submission) error
}

type assignmentService struct {
	client api.Client
	cache  *cache.Cache
}

// NewAssignmentService constructs an AssignmentService bound to the given
// API client and response cache.
func NewAssignmentService(client api.Client, c *cache.Cache) AssignmentService {
	return &assignmentService{client: client, cache: c}
}

func (s *assignmentService) List(ctx context.Context) ([]api.Assignment, error) {
	key := assignmentKeyPrefix + "list"
	if v, ok := s.cache.Get(key); ok {
		return v.([]api.Assignment), nil
	}

	list, err := s.client.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, list)
	return list, nil
}

func (s *assignmentService) Get(ctx context.Context, id string) (*api.Assignment, error) {
	key := assignmentKeyPrefix + id
	if v, ok := s.cache.Get(key); ok {
		return v.(*api.Assignment), nil
	}

	a, err := s.client.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, a)
	return a, nil
}

func (s *assignmentService) Submit(ctx context.Context, id string, sub api.Submission) error {
	if err := s.client.SubmitAssignment(ctx, id, sub); err != nil {
		return err
	}
	s.cache.ClearByPrefix(assignmentKeyPrefix)
	return nil
}
