package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

const baseURL = "http://localhost:3000/api/chat/v1"

// Simplified DTOs for the script
type askRequest struct {
	ConversationID string `json:"conversation_id"`
	Question       string `json:"question"`
}

type askAck struct {
	Data struct {
		ConversationID string `json:"conversation_id"`
		Status         string `json:"status"`
	} `json:"data"`
}

type historyResponse struct {
	Data []struct {
		Role               string `json:"role"`
		Chat               string `json:"chat"`
		Category           string `json:"category"`
		VerificationStatus string `json:"verification_status"`
	} `json:"data"`
}

func main() {
	title := color.New(color.FgCyan, color.Bold)
	userC := color.New(color.FgGreen)
	botC := color.New(color.FgYellow)
	metaC := color.New(color.FgHiBlack)
	errC := color.New(color.FgRed)

	title.Println("=== Admissions Chatbot Simulation Client ===")

	visitorID := uuid.NewString()
	provisionalID := uuid.NewString()
	metaC.Printf("Visitor: %s\nProvisional conversation: %s\n", visitorID, provisionalID)

	conversationID := provisionalID

	testCases := []string{
		"How much is tuition for the Computer Science major?",
		"Compare tuition and scholarships between Computer Science and Business Administration, and what does a dorm cost?",
		"What's your favourite football team?",
	}

	for _, question := range testCases {
		fmt.Println()
		userC.Printf("USER: %s\n", question)

		start := time.Now()
		durableID, err := ask(visitorID, conversationID, question)
		if err != nil {
			errC.Printf("Error: %v\n", err)
			continue
		}
		conversationID = durableID
		metaC.Printf("Accepted in %v, conversation %s\n", time.Since(start), durableID)

		answer, category, status, err := waitForAnswer(visitorID, durableID, 90*time.Second)
		if err != nil {
			errC.Printf("Error: %v\n", err)
			continue
		}
		botC.Printf("BOT (%v): %s\n", time.Since(start), answer)
		metaC.Printf("category=%s verification=%s\n", category, status)
	}
}

func ask(visitorID, conversationID, question string) (string, error) {
	payload, _ := json.Marshal(askRequest{ConversationID: conversationID, Question: question})

	req, _ := http.NewRequest("POST", baseURL+"/question", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Visitor-Id", visitorID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var ack askAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", err
	}
	return ack.Data.ConversationID, nil
}

// waitForAnswer polls the history endpoint until a model turn shows up. A
// real client would subscribe to the websocket instead; polling keeps the
// script dependency-free.
func waitForAnswer(visitorID, conversationID string, timeout time.Duration) (answer, category, status string, err error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		time.Sleep(2 * time.Second)

		req, _ := http.NewRequest("GET", baseURL+"/conversation/"+conversationID+"/history", nil)
		req.Header.Set("X-Visitor-Id", visitorID)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Printf("poll error: %v", err)
			continue
		}

		var history historyResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&history)
		resp.Body.Close()
		if decodeErr != nil {
			continue
		}

		for i := len(history.Data) - 1; i >= 0; i-- {
			turn := history.Data[i]
			if turn.Role == "model" {
				return turn.Chat, turn.Category, turn.VerificationStatus, nil
			}
		}
	}

	return "", "", "", fmt.Errorf("no answer within %v", timeout)
}
