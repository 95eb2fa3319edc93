// Command seed_curriculum loads a curriculum plan from a JSON file and pushes
// it into a running API instance through the admin endpoints. It is idempotent
// over phases and weeks: conflicts on already seeded entries are skipped.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type question struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Points        int      `json:"points,omitempty"`
}

type weekPlan struct {
	WeekNumber       int    `json:"week_number"`
	Title            string `json:"title"`
	VideoPoints      int    `json:"video_points,omitempty"`
	AssignmentPoints int    `json:"assignment_points,omitempty"`

	Body                  string     `json:"body,omitempty"`
	VideoURL              string     `json:"video_url,omitempty"`
	AssignmentDescription string     `json:"assignment_description,omitempty"`
	AssignmentDeadline    *time.Time `json:"assignment_deadline,omitempty"`
	Questions             []question `json:"questions,omitempty"`
}

type phasePlan struct {
	Number                   int        `json:"number"`
	Title                    string     `json:"title"`
	Description              string     `json:"description,omitempty"`
	StartWeek                int        `json:"start_week"`
	EndWeek                  int        `json:"end_week"`
	RequiredPointsPercentage float64    `json:"required_points_percentage"`
	Weeks                    []weekPlan `json:"weeks"`
}

type plan struct {
	Phases []phasePlan `json:"phases"`
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func main() {
	var (
		base     string
		planPath string
		email    string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&planPath, "plan", filepath.Join("scripts", "seed_curriculum", "plan.json"), "Path to the curriculum plan")
	flag.StringVar(&email, "email", "", "Admin email")
	flag.StringVar(&password, "password", "", "Admin password")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if email == "" || password == "" {
		log.Fatal("admin -email and -password are required")
	}

	p, err := loadPlan(planPath)
	if err != nil {
		log.Fatalf("failed to load plan: %v", err)
	}

	c := &client{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
	if err := c.login(email, password); err != nil {
		log.Fatalf("login failed: %v", err)
	}

	var created, skipped, failed int
	for _, phase := range p.Phases {
		phaseID, err := c.seedPhase(phase)
		if err != nil {
			log.Printf("phase %d: %v", phase.Number, err)
			failed++
			continue
		}
		for _, week := range phase.Weeks {
			ok, err := c.seedWeek(phaseID, week)
			switch {
			case err != nil:
				log.Printf("phase %d week %d: %v", phase.Number, week.WeekNumber, err)
				failed++
			case ok:
				created++
			default:
				skipped++
			}
		}
	}

	fmt.Printf("Seed complete: %d created, %d skipped, %d failed\n", created, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func loadPlan(path string) (*plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if len(p.Phases) == 0 {
		return nil, fmt.Errorf("no phases defined in %s", path)
	}
	return &p, nil
}

func (c *client) login(email, password string) error {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	status, err := c.do(http.MethodPost, "/auth/login", body, &out)
	if err != nil {
		return err
	}
	if status != http.StatusOK || out.Data.AccessToken == "" {
		return fmt.Errorf("unexpected login response: status %d", status)
	}
	c.token = out.Data.AccessToken
	return nil
}

// seedPhase creates the phase or, on conflict, resolves the existing one.
func (c *client) seedPhase(p phasePlan) (string, error) {
	body := map[string]interface{}{
		"number":                     p.Number,
		"title":                      p.Title,
		"start_week":                 p.StartWeek,
		"end_week":                   p.EndWeek,
		"required_points_percentage": p.RequiredPointsPercentage,
	}
	if p.Description != "" {
		body["description"] = p.Description
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	status, err := c.do(http.MethodPost, "/phases", body, &out)
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusCreated:
		return out.Data.ID, nil
	case http.StatusConflict:
		return c.findPhaseID(p.Number)
	default:
		return "", fmt.Errorf("create phase: status %d", status)
	}
}

func (c *client) findPhaseID(number int) (string, error) {
	var out struct {
		Data []struct {
			ID     string `json:"id"`
			Number int    `json:"number"`
		} `json:"data"`
	}
	status, err := c.do(http.MethodGet, "/phases", nil, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("list phases: status %d", status)
	}
	for _, p := range out.Data {
		if p.Number == number {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("phase %d not found after conflict", number)
}

// seedWeek creates the week and uploads its content. Returns false when the
// week already existed.
func (c *client) seedWeek(phaseID string, w weekPlan) (bool, error) {
	body := map[string]interface{}{
		"week_number": w.WeekNumber,
		"title":       w.Title,
	}
	if w.VideoPoints > 0 || w.AssignmentPoints > 0 {
		body["video_points"] = w.VideoPoints
		body["assignment_points"] = w.AssignmentPoints
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	status, err := c.do(http.MethodPost, "/phases/"+phaseID+"/weeks", body, &out)
	if err != nil {
		return false, err
	}
	if status == http.StatusConflict {
		return false, nil
	}
	if status != http.StatusCreated {
		return false, fmt.Errorf("create week: status %d", status)
	}

	if w.Body == "" {
		return true, nil
	}

	content := map[string]interface{}{"body": w.Body}
	if w.VideoURL != "" {
		content["video_url"] = w.VideoURL
	}
	if w.AssignmentDescription != "" {
		content["assignment_description"] = w.AssignmentDescription
	}
	if w.AssignmentDeadline != nil {
		content["assignment_deadline"] = w.AssignmentDeadline
	}
	if len(w.Questions) > 0 {
		content["multiple_choice_questions"] = w.Questions
	}

	status, err = c.do(http.MethodPut, "/weeks/"+out.Data.ID+"/content", content, nil)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("upsert content: status %d", status)
	}
	return true, nil
}

func (c *client) do(method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}
