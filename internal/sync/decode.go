package sync

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/realtime"
)

// decodeCollection reads a push snapshot holding either a JSON array or an
// object keyed by document id. setID fills in the key when the document
// omits its own id.
func decodeCollection[T any](snap realtime.Snapshot, setID func(*T, string)) ([]T, error) {
	if !snap.Exists {
		return nil, nil
	}
	data := bytes.TrimSpace(snap.Data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var list []T
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", snap.Path, err)
		}
		return list, nil
	}

	var keyed map[string]T
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", snap.Path, err)
	}
	list := make([]T, 0, len(keyed))
	for key, v := range keyed {
		setID(&v, key)
		list = append(list, v)
	}
	return list, nil
}

func decodeNotifications(snap realtime.Snapshot) ([]model.Notification, error) {
	return decodeCollection(snap, func(n *model.Notification, key string) {
		if n.ID == "" {
			n.ID = key
		}
	})
}

func decodeComments(snap realtime.Snapshot) ([]model.TaskComment, error) {
	return decodeCollection(snap, func(c *model.TaskComment, key string) {
		if c.ID == "" {
			c.ID = key
		}
	})
}

// decodeCount accepts the counter as {"unread": n}, {"count": n} or a bare
// number.
func decodeCount(snap realtime.Snapshot) (int, bool, error) {
	if !snap.Exists {
		return 0, false, nil
	}
	data := bytes.TrimSpace(snap.Data)

	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return n, true, nil
	}

	var body struct {
		Unread *int `json:"unread"`
		Count  *int `json:"count"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, false, fmt.Errorf("decoding %s: %w", snap.Path, err)
	}
	switch {
	case body.Unread != nil:
		return *body.Unread, true, nil
	case body.Count != nil:
		return *body.Count, true, nil
	}
	return 0, false, nil
}
