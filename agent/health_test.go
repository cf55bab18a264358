package agent

import (
	"context"
	"testing"

	"github.com/Xerpa/gorpo/transport"
)

func TestServices_Decode(t *testing.T) {
	reply := `[{"Node":{"ID":"c","Address":"h"},` +
		`"Service":{"ID":"s","Name":"n","Address":""},` +
		`"Checks":[{"CheckID":"service:s","Status":"passing"}]}]`

	var seen transport.Request
	c := New("http://a", echoFunc(200, reply, &seen))

	results, err := c.Services(context.Background(), "n", Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.URL != "http://a/v1/health/service/n" {
		t.Errorf("unexpected URL %q", seen.URL)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.Node.ID != "c" || got.Node.Address != "h" {
		t.Errorf("unexpected node %+v", got.Node)
	}
	if got.Service.ID != "s" || got.Service.Name != "n" {
		t.Errorf("unexpected service %+v", got.Service)
	}
	if got.Service.Address != "h" {
		t.Errorf("expected address fallback to node, got %q", got.Service.Address)
	}
	if got.Status == nil || got.Status.Status != HealthPassing {
		t.Errorf("unexpected status %+v", got.Status)
	}
}

func TestServices_NameFallbackAndTags(t *testing.T) {
	reply := `[{"Node":{"ID":"c","Address":"h"},"Service":{"ID":"s"},"Checks":[]}]`
	c := New("http://a", echoFunc(200, reply, nil))

	results, err := c.Services(context.Background(), "web", Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Service.Name != "web" {
		t.Errorf("expected fallback name, got %q", results[0].Service.Name)
	}
	if results[0].Service.Tags == nil || len(results[0].Service.Tags) != 0 {
		t.Errorf("expected empty tags, got %v", results[0].Service.Tags)
	}
	if results[0].Status != nil {
		t.Errorf("expected no status without a matching check, got %+v", results[0].Status)
	}
}

func TestServices_IgnoresForeignChecks(t *testing.T) {
	reply := `[{"Node":{"ID":"c","Address":"h"},` +
		`"Service":{"ID":"s","Name":"n"},` +
		`"Checks":[{"CheckID":"serfHealth","Status":"passing"},` +
		`{"CheckID":"service:s","Status":"critical"}]}]`
	c := New("http://a", echoFunc(200, reply, nil))

	results, err := c.Services(context.Background(), "n", Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Status == nil || results[0].Status.Status != HealthCritical {
		t.Errorf("expected the service's own check, got %+v", results[0].Status)
	}
}

func TestFiltersEncode(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    []transport.Param
	}{
		{"empty", Filters{}, nil},
		{"near", Filters{Near: true}, []transport.Param{{Key: "near", Value: "_agent"}}},
		{"tag and dc", Filters{Tag: "prod", DC: "east"}, []transport.Param{
			{Key: "tag", Value: "prod"}, {Key: "dc", Value: "east"},
		}},
		// passing replaces everything else that was accumulated.
		{"passing wins", Filters{Near: true, Tag: "prod", Passing: true}, []transport.Param{
			{Key: "passing"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filters.encode()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("param %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}
