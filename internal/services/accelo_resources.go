package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"accelo-slack-notifier/internal/models"
)

// AcceloResource exposes get/list/count/update/create for one Accelo
// collection. Every resource, nested or not, is an instance of this type.
type AcceloResource[T any] struct {
	client *AcceloClient
	path   string
}

// NewAcceloResource binds a collection path such as "requests" or
// "activities/threads".
func NewAcceloResource[T any](client *AcceloClient, collectionPath string) *AcceloResource[T] {
	return &AcceloResource[T]{client: client, path: collectionPath}
}

// NestedAcceloResource binds a sub-resource of one object, e.g.
// ("activities", "12", "interacts") -> activities/12/interacts.
func NestedAcceloResource[T any](client *AcceloClient, parentType, parentID, subPath string) *AcceloResource[T] {
	return NewAcceloResource[T](client, path.Join(parentType, parentID, subPath))
}

// Path returns the collection path relative to the API base.
func (r *AcceloResource[T]) Path() string {
	return r.path
}

func fieldsQuery(fields string) url.Values {
	if fields == "" {
		return nil
	}
	return url.Values{"_fields": {fields}}
}

// Get fetches one object by id.
func (r *AcceloResource[T]) Get(ctx context.Context, id, fields string) (*T, error) {
	var out T
	if err := r.client.Do(ctx, http.MethodGet, path.Join(r.path, id), fieldsQuery(fields), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", r.path, id, err)
	}
	return &out, nil
}

// List returns every object matching q, draining all pages.
func (r *AcceloResource[T]) List(ctx context.Context, q AcceloQuery) ([]T, error) {
	return FetchAll[T](ctx, r.client, r.path, q)
}

// Count returns the size of the collection matching q's filters and search.
func (r *AcceloResource[T]) Count(ctx context.Context, q AcceloQuery) (int, error) {
	var count models.Count
	query := url.Values{"_method": {"get"}}
	if err := r.client.Do(ctx, http.MethodPost, path.Join(r.path, "count"), query, listPayload(q, false), &count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.path, err)
	}
	return count.Int()
}

// Update applies a partial update. Accelo decides which fields are writable.
func (r *AcceloResource[T]) Update(ctx context.Context, id string, payload any, fields string) (*T, error) {
	var out T
	if err := r.client.Do(ctx, http.MethodPut, path.Join(r.path, id), fieldsQuery(fields), payload, &out); err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", r.path, id, err)
	}
	return &out, nil
}

// Create posts a new object to the collection and returns it.
func (r *AcceloResource[T]) Create(ctx context.Context, payload any, fields string) (*T, error) {
	var out T
	if err := r.client.Do(ctx, http.MethodPost, r.path, fieldsQuery(fields), payload, &out); err != nil {
		return nil, fmt.Errorf("failed to create in %s: %w", r.path, err)
	}
	return &out, nil
}

// Delete removes (or, for contacts, deactivates) one object.
func (r *AcceloResource[T]) Delete(ctx context.Context, id string) error {
	if err := r.client.Do(ctx, http.MethodDelete, path.Join(r.path, id), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", r.path, id, err)
	}
	return nil
}

// ActivityInteracts returns the interactions of one activity.
func (c *AcceloClient) ActivityInteracts(activityID string) *AcceloResource[models.Object] {
	return NestedAcceloResource[models.Object](c, "activities", activityID, "interacts")
}

// ActivityThreads returns the activity thread collection.
func (c *AcceloClient) ActivityThreads() *AcceloResource[models.Object] {
	return NewAcceloResource[models.Object](c, "activities/threads")
}

// RequestThreads returns the request thread collection.
func (c *AcceloClient) RequestThreads() *AcceloResource[models.Object] {
	return NewAcceloResource[models.Object](c, "requests/threads")
}

// ProfileValues returns the profile field values of one object, e.g.
// ("issues", "42") -> issues/42/profiles/values.
func (c *AcceloClient) ProfileValues(objectType, objectID string) *AcceloResource[models.ProfileValue] {
	return NestedAcceloResource[models.ProfileValue](c, objectType, objectID, "profiles/values")
}

// AllProfileValues returns the profile values of every object of one type.
func (c *AcceloClient) AllProfileValues(objectType string) *AcceloResource[models.ProfileValue] {
	return NewAcceloResource[models.ProfileValue](c, path.Join(objectType, "profiles/values"))
}

// ProfileFields returns the profile field definitions of one object type.
func (c *AcceloClient) ProfileFields(objectType string) *AcceloResource[models.Object] {
	return NewAcceloResource[models.Object](c, path.Join(objectType, "profiles/fields"))
}
