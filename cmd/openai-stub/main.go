package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}
	topic := os.Getenv("TOPIC")
	if strings.TrimSpace(topic) == "" {
		topic = "housing"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		user := req.Messages[len(req.Messages)-1].Content
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "stub-1",
			"object": "chat.completion",
			"model":  model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": reply(user, topic)}},
			},
		})
	})

	log.Printf("openai-stub listening on %s (model=%s topic=%s)", addr, model, topic)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

// reply echoes the first excerpt sentence mentioning topic, or the
// no-topic phrase when none does.
func reply(user, topic string) string {
	excerpt := user
	if i := strings.Index(user, "Excerpt:"); i >= 0 {
		excerpt = user[i+len("Excerpt:"):]
	}
	for _, s := range strings.FieldsFunc(excerpt, func(r rune) bool { return r == '.' || r == '\n' }) {
		if strings.Contains(strings.ToLower(s), strings.ToLower(topic)) {
			return fmt.Sprintf("The minutes note: %s.", strings.TrimSpace(s))
		}
	}
	return fmt.Sprintf("No %s topics found.", topic)
}
