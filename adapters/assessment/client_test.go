package assessment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/aieducate/livesession/internal/auth"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, UserID: "7"},
		auth.NewTokenManager("test-secret"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestGenerateQuestions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-questions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["material_id"] != "m-9" || body["study_session_id"] != "42" {
			t.Errorf("Unexpected request body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":             true,
			"questions_generated": 10,
			"message":             "ok",
		})
	})

	count, err := client.GenerateQuestions(context.Background(), "m-9", "42", "7")
	if err != nil {
		t.Fatalf("GenerateQuestions failed: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected 10 questions, got %d", count)
	}
}

func TestStartAndMarkAssessment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start-assessment":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "assessment_id": "a-1", "message": "started",
			})
		case "/mark-assessment":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "assessment_id": "a-1",
				"score": 8, "total_questions": 10, "percentage": 80.0,
				"summary": "solid grasp of the material",
			})
		default:
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
	})

	id, err := client.StartAssessment(context.Background(), "m-9", "7")
	if err != nil {
		t.Fatalf("StartAssessment failed: %v", err)
	}
	if id != "a-1" {
		t.Errorf("Expected assessment a-1, got %s", id)
	}

	result, err := client.MarkAssessment(context.Background(), id)
	if err != nil {
		t.Fatalf("MarkAssessment failed: %v", err)
	}
	if result.Score != 8 || result.TotalQuestions != 10 || result.Percentage != 80.0 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if result.Feedback == "" {
		t.Error("Expected feedback from the marking summary")
	}
}

func TestQuestionsPassthrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/questions/m-9" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"questions": []map[string]interface{}{
				{"id": "q-1", "prompt": "What is 2+2?", "options": []string{"3", "4"}, "position": 1},
			},
		})
	})

	questions, err := client.Questions(context.Background(), "m-9")
	if err != nil {
		t.Fatalf("Questions failed: %v", err)
	}
	if len(questions) != 1 || questions[0].ID != "q-1" {
		t.Errorf("Unexpected questions: %+v", questions)
	}
}

func TestSaveAnswerRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false, "message": "assessment already marked",
		})
	})

	if err := client.SaveAnswer(context.Background(), "a-1", "q-1", "4"); err == nil {
		t.Error("Expected error when the service rejects the answer")
	}
}
