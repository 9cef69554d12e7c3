package api

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/nhle/taskhub/internal/model"
)

// ListOptions controls pagination for list endpoints. Zero values are
// omitted from the query string.
type ListOptions struct {
	Page  int
	Limit int
}

// Values converts the options into query parameters.
func (o ListOptions) Values() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

// Page is one page of a list response. Pagination is nil when the server
// answered with a bare array.
type Page[T any] struct {
	Items      []T
	Pagination *model.Pagination
}

// pagedBody is the current list response shape.
type pagedBody[T any] struct {
	Items      []T               `json:"items"`
	Data       []T               `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
}

// DecodeList accepts either a bare JSON array (legacy endpoints) or an
// {items, pagination} object.
func DecodeList[T any](data []byte) (*Page[T], error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &Page[T]{Items: []T{}}, nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding list array: %w", err)
		}
		return &Page[T]{Items: items}, nil
	}

	var body pagedBody[T]
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, fmt.Errorf("decoding paged list: %w", err)
	}
	if body.Items == nil {
		body.Items = body.Data
	}
	if body.Items == nil {
		body.Items = []T{}
	}
	return &Page[T]{Items: body.Items, Pagination: body.Pagination}, nil
}

// GetList fetches a list endpoint and decodes it with DecodeList. extra
// query parameters are merged with the pagination options.
func GetList[T any](
	ctx context.Context,
	c *Client,
	path string,
	opts ListOptions,
	extra url.Values,
) (*Page[T], error) {
	q := opts.Values()
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	var raw json.RawMessage
	if err := c.Get(ctx, path, q, &raw); err != nil {
		return nil, err
	}
	return DecodeList[T](raw)
}
