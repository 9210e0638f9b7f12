package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// planChatResponse wraps a plan envelope the way the chat completions API
// returns structured output: as a JSON string in the message content.
func planChatResponse(t *testing.T, notes []types.TopicNote) []byte {
	t.Helper()
	content, err := json.Marshal(planEnvelope{Notes: notes})
	if err != nil {
		t.Fatal(err)
	}
	resp := openaiResponse{
		Choices: []openaiChoice{
			{Message: openaiMessage{Role: "assistant", Content: string(content)}},
		},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestOpenAIBackend_Plan(t *testing.T) {
	want := []types.TopicNote{
		{ID: "root", Title: "Main", Instructions: "cover the basics", Level: 0},
		{ID: "a", Title: "Sub", Instructions: "go deeper", ParentID: strptr("root"), Level: 1},
	}

	var gotReq openaiRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write(planChatResponse(t, want))
	}))
	defer ts.Close()

	oldURL := openaiAPIURL
	openaiAPIURL = ts.URL
	defer func() { openaiAPIURL = oldURL }()

	backend := NewOpenAIBackend(types.PlanningConfig{
		AIConfig: types.AIConfig{Model: "o4-mini", APIKey: "test-key"},
	})
	backend.Client = ts.Client()

	notes, err := backend.Plan(context.Background(), "quantum error correction")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(notes) != 2 || notes[0].ID != "root" || notes[1].ParentID == nil {
		t.Errorf("Plan() = %+v, want %+v", notes, want)
	}
	if gotReq.Model != "o4-mini" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_schema" {
		t.Errorf("request response_format = %+v, want json_schema", gotReq.ResponseFormat)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "quantum error correction" {
		t.Errorf("request messages = %+v", gotReq.Messages)
	}
}

func TestOpenAIBackend_PlanErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "quota exceeded", http.StatusPaymentRequired)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"choices": []}`))
			},
		},
		{
			name: "content is not plan JSON",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "not json"}}]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			oldURL := openaiAPIURL
			openaiAPIURL = ts.URL
			defer func() { openaiAPIURL = oldURL }()

			backend := NewOpenAIBackend(types.PlanningConfig{
				AIConfig: types.AIConfig{Model: "o4-mini", APIKey: "k"},
			})
			backend.Client = ts.Client()

			if _, err := backend.Plan(context.Background(), "q"); err == nil {
				t.Error("Plan() succeeded, want error")
			}
		})
	}
}

// failNTimesPlanner fails the first N calls, then succeeds.
type failNTimesPlanner struct {
	failures  int
	callCount int
	notes     []types.TopicNote
}

func (f *failNTimesPlanner) Plan(_ context.Context, _ string) ([]types.TopicNote, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return nil, fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return f.notes, nil
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	backend := &failNTimesPlanner{failures: 2, notes: wellFormedPlan()}

	p, warnings, err := Generate(context.Background(), backend, "q",
		types.PlanningConfig{AIConfig: types.AIConfig{MaxRetries: 3}}, false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if backend.callCount != 3 {
		t.Errorf("backend called %d times, want 3", backend.callCount)
	}
	if len(p.Notes) != 13 {
		t.Errorf("plan has %d notes, want 13", len(p.Notes))
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestGenerate_ExhaustsRetries(t *testing.T) {
	backend := &failNTimesPlanner{failures: 100}

	_, _, err := Generate(context.Background(), backend, "q",
		types.PlanningConfig{AIConfig: types.AIConfig{MaxRetries: 2}}, false)
	if err == nil {
		t.Fatal("Generate() succeeded, want error")
	}
	if backend.callCount != 3 {
		t.Errorf("backend called %d times, want 3", backend.callCount)
	}
}

func TestGenerate_InvalidPlanIsNotRetried(t *testing.T) {
	backend := &failNTimesPlanner{notes: []types.TopicNote{
		{ID: "dup", Title: "One", Level: 0},
		{ID: "dup", Title: "Two", ParentID: strptr("dup"), Level: 1},
	}}

	_, _, err := Generate(context.Background(), backend, "q",
		types.PlanningConfig{}, false)
	if err == nil {
		t.Fatal("Generate() succeeded, want structural error")
	}
	if backend.callCount != 1 {
		t.Errorf("backend called %d times, want 1 (validation failures are not retried)", backend.callCount)
	}
}
