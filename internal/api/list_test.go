package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/nhle/taskhub/internal/model"
)

func TestDecodeListAcceptsBothShapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLen   int
		wantPages int
	}{
		{"bare array", `[{"id":"p1"},{"id":"p2"}]`, 2, 0},
		{"paged object", `{"items":[{"id":"p1"}],"pagination":{"page":1,"limit":10,"total":11,"pages":2}}`, 1, 2},
		{"data object", `{"data":[{"id":"p1"},{"id":"p2"},{"id":"p3"}]}`, 3, 0},
		{"null", `null`, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodeList[model.Project]([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeList: %v", err)
			}
			if len(page.Items) != tt.wantLen {
				t.Errorf("expected %d items, got %d", tt.wantLen, len(page.Items))
			}
			if tt.wantPages > 0 {
				if page.Pagination == nil || page.Pagination.Pages != tt.wantPages {
					t.Errorf("expected %d pages, got %+v", tt.wantPages, page.Pagination)
				}
			}
		})
	}
}

func TestGetListSendsPagination(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := GetList[model.Project](context.Background(), c, "/projects",
		ListOptions{Page: 2, Limit: 25}, nil)
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if gotQuery != "limit=25&page=2" {
		t.Errorf("unexpected query %q", gotQuery)
	}
}
