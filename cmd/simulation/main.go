package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Simplified DTOs for the script
type LoginResponse struct {
	Data struct {
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

type CreateSessionResponse struct {
	Data struct {
		SessionID string `json:"session_id"`
	} `json:"data"`
}

type RunRoundRequest struct {
	Question string `json:"question"`
}

type RunRoundResponse struct {
	Data struct {
		Round     int     `json:"round"`
		Coverage  float64 `json:"coverage"`
		Converged bool    `json:"converged"`
		Forced    bool    `json:"forced_convergence"`
		Degraded  bool    `json:"degraded"`
		Refusal   string  `json:"refusal"`
		Diagnosis *struct {
			Pattern     string   `json:"pattern"`
			Narrative   string   `json:"narrative"`
			MissingInfo []string `json:"missing_info"`
		} `json:"diagnosis"`
		Presentation *struct {
			Text      string   `json:"text"`
			FollowUps []string `json:"follow_ups"`
		} `json:"presentation"`
	} `json:"data"`
}

func main() {
	fmt.Println("=== Spiral Diagnosis Simulation Client ===")

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("Set ADMIN_EMAIL and ADMIN_PASSWORD to run the simulation")
	}

	token, err := login(email, password)
	if err != nil {
		log.Fatalf("Failed to login: %v", err)
	}
	color.Green("Logged in as %s", email)

	sessionID, err := createSession(token)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	fmt.Printf("Session Created: %s\n", sessionID)

	// One progressive consultation. Each entry adds detail the way a
	// practitioner would answer the engine's follow-up questions.
	rounds := []string{
		"最近三個月常常心悸，晚上睡不好，多夢易醒",
		"食慾也不太好，吃一點就脹，人整天都很疲倦",
		"家人說我臉色蒼白，沒有盜汗也不覺得燥熱",
	}

	for _, question := range rounds {
		color.Cyan("\nPRACTITIONER: %s", question)

		start := time.Now()
		res, err := runRound(token, sessionID, question)
		elapsed := time.Since(start)

		if err != nil {
			color.Red("Error: %v", err)
			continue
		}

		d := res.Data
		if d.Refusal != "" {
			color.Red("REFUSED (round %d): %s", d.Round, d.Refusal)
			continue
		}

		fmt.Printf("Round %d (%v) coverage=%.2f converged=%v\n", d.Round, elapsed, d.Coverage, d.Converged)
		if d.Diagnosis != nil {
			color.Yellow("Pattern: %s", d.Diagnosis.Pattern)
		}
		if d.Presentation != nil {
			fmt.Printf("ENGINE: %s\n", d.Presentation.Text)
			for _, q := range d.Presentation.FollowUps {
				fmt.Printf("  follow-up: %s\n", q)
			}
		}

		if d.Converged {
			if d.Forced {
				color.Yellow("Converged at the round ceiling with thin evidence.")
			} else {
				color.Green("Converged.")
			}
			break
		}

		// Small delay to allow async audit logs to flush on server side
		time.Sleep(1 * time.Second)
	}
}

func login(email, password string) (string, error) {
	payload := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	jsonBytes, _ := json.Marshal(payload)

	resp, err := http.Post(baseURL+"/auth/login", "application/json", bytes.NewBuffer(jsonBytes))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	return res.Data.AccessToken, nil
}

func createSession(token string) (string, error) {
	req, _ := http.NewRequest("POST", baseURL+"/spiral/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res CreateSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	return res.Data.SessionID, nil
}

func runRound(token, sessionID, question string) (*RunRoundResponse, error) {
	jsonBytes, _ := json.Marshal(RunRoundRequest{Question: question})

	req, _ := http.NewRequest("POST", baseURL+"/spiral/sessions/"+sessionID+"/rounds", bytes.NewBuffer(jsonBytes))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res RunRoundResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
