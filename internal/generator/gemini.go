// Package generator builds learning-path drafts by prompting Google's
// Gemini generateContent endpoint and repairing its JSON reply into the
// internal curriculum shape.
//
// The model's output is treated as unreliable input: level count and field
// presence are always validated, missing arrays degrade to empty ones, and
// only an unparseable top-level document fails the request. A draft is
// never persisted here — the user reviews it and saves it through the
// learning-path endpoints.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/learnpath/internal/apperror"
	"github.com/sakif/learnpath/internal/model"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"

	// ModulesPerLevel is the module count the prompt asks for per level.
	ModulesPerLevel = 8

	levelCount = 3
)

// Placeholders substituted for missing project fields in a model reply.
const (
	placeholderTitle       = "Untitled Project"
	placeholderDescription = "No description provided."
	placeholderURL         = "#"
)

// fenceRe strips a markdown code fence wrapping the whole reply. Gemini is
// asked for raw JSON but sometimes wraps it anyway.
var fenceRe = regexp.MustCompile("(?s)^```(?:\\w*)?\\s*\n?(.*?)\n?\\s*```$")

// Draft is a generated curriculum awaiting user approval. The shapes are
// the same inbound types the create-path endpoint accepts, so the UI can
// submit an approved draft unchanged.
type Draft struct {
	Topic  string           `json:"topic"`
	Levels []model.NewLevel `json:"levels"`
}

// Client calls the Gemini REST API. Tests point BaseURL at an httptest
// server.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Config holds the generation client settings read from the environment.
type Config struct {
	APIKey  string
	Model   string // default "gemini-2.0-flash"
	BaseURL string // default production endpoint; tests override
}

// New creates a Client. An empty API key is an error — the server treats an
// unconfigured generator as an optional, absent dependency and starts
// without it.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generator: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: 90 * time.Second},
		logger:  logger,
	}, nil
}

// request/response shapes for the generateContent call. Gemini returns far
// more than this; we only unmarshal what we read.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	Temperature      float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// rawCurriculum is the shape we ask the model to produce. Arrays use
// json.RawMessage deliberately: a level whose "modules" is a string or an
// object must degrade to an empty slice, not fail the whole parse.
type rawCurriculum struct {
	Topic  string     `json:"topic"`
	Levels []rawLevel `json:"levels"`
}

type rawLevel struct {
	Name     string          `json:"name"`
	Modules  json.RawMessage `json:"modules"`
	Projects json.RawMessage `json:"projects"`
}

type rawModule struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	YoutubeURL  string `json:"youtubeUrl"`
	GithubURL   string `json:"githubUrl"`
}

type rawProject struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	GithubURL   string `json:"githubUrl"`
}

// Generate produces a draft curriculum for the topic.
//
// One blocking request, no retries, no streaming: a failure surfaces
// immediately and the user resubmits. Shape problems below the top level
// are repaired; an unparseable document or a wrong level count is a
// format error.
func (c *Client) Generate(ctx context.Context, topic string) (*Draft, error) {
	text, err := c.complete(ctx, buildPrompt(topic))
	if err != nil {
		return nil, err
	}
	return c.parseDraft(topic, text)
}

// complete sends the prompt and returns the model's raw text reply.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      0.4,
		},
	})
	if err != nil {
		return "", fmt.Errorf("generator: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("generator: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator: calling Gemini API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Gemini error payloads are short JSON documents; keep a
		// snippet for the log line.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("Gemini API error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return "", fmt.Errorf("generator: Gemini API returned status %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("generator: decoding Gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", apperror.FormatInvalid("the generator returned no content")
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// parseDraft turns the model's text reply into a Draft, repairing what can
// be repaired.
func (c *Client) parseDraft(topic, text string) (*Draft, error) {
	text = stripFence(strings.TrimSpace(text))

	var raw rawCurriculum
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, apperror.FormatInvalid("the generator response was not valid JSON")
	}
	if len(raw.Levels) != levelCount {
		return nil, apperror.FormatInvalid(
			fmt.Sprintf("expected %d levels, got %d", levelCount, len(raw.Levels)))
	}

	draft := &Draft{
		Topic:  topic,
		Levels: make([]model.NewLevel, 0, levelCount),
	}
	for _, rl := range raw.Levels {
		if strings.TrimSpace(rl.Name) == "" {
			return nil, apperror.FormatInvalid("a level is missing its name")
		}

		level := model.NewLevel{
			Name:     rl.Name,
			Modules:  []model.NewModule{},
			Projects: []model.NewProject{},
		}

		var modules []rawModule
		if len(rl.Modules) == 0 || json.Unmarshal(rl.Modules, &modules) != nil {
			c.logger.Warn("level has missing or malformed modules array",
				slog.String("level", rl.Name))
		}
		for _, m := range modules {
			// isCompleted and notes are user state the model never
			// produces; the zero values are exactly right.
			level.Modules = append(level.Modules, model.NewModule{
				Title:       m.Title,
				Description: m.Description,
				YoutubeURL:  m.YoutubeURL,
				GithubURL:   m.GithubURL,
			})
		}

		var projects []rawProject
		if len(rl.Projects) == 0 || json.Unmarshal(rl.Projects, &projects) != nil {
			c.logger.Warn("level has missing or malformed projects array",
				slog.String("level", rl.Name))
		}
		for _, p := range projects {
			level.Projects = append(level.Projects, model.NewProject{
				Title:       withDefault(p.Title, placeholderTitle),
				Description: withDefault(p.Description, placeholderDescription),
				GithubURL:   withDefault(p.GithubURL, placeholderURL),
			})
		}

		draft.Levels = append(draft.Levels, level)
	}

	return draft, nil
}

func stripFence(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

func withDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// buildPrompt fills the fixed curriculum-request template. The YouTube
// constraint matters: search-query URLs stay valid indefinitely, while the
// model hallucinates direct video links.
func buildPrompt(topic string) string {
	return fmt.Sprintf(`
You are an expert learning path generator. Given a topic, create a comprehensive learning path with three levels: Beginner, Intermediate, and Advanced.
Each level must contain exactly %[1]d modules.
For each module, provide:
1. A concise module title (3-7 words).
2. A brief module description (1-2 sentences).
3. A YouTube link. For this, you MUST provide a highly specific YouTube search query URL that will lead the user to relevant videos for the module's topic. For example, if the module is about "Advanced JavaScript Closures", a good search query URL would be "https://www.youtube.com/results?search_query=advanced+javascript+closures+tutorial". Do NOT provide direct links to YouTube channels or individual videos. The link must be a YouTube search results page URL and provided in the "youtubeUrl" field.
4. One relevant GitHub repository link (e.g., for a project, library, or collection of resources related to the module topic). If no specific repository fits, provide a link to a relevant GitHub topic page (e.g., https://github.com/topics/react).

Additionally, for each level (Beginner, Intermediate, Advanced), provide 4 to 5 distinct projects.
For each project, provide:
1. A concise project title (3-7 words).
2. A brief project description (2-3 sentences) explaining what the project is about and its learning objectives.
3. A direct GitHub repository link that contains the source code for the project. This should be a link to an actual code repository, not a general GitHub topic page or user profile.

The topic is: %[2]q

Please provide the output STRICTLY in the following JSON format. Do not include any explanatory text, markdown code fences, or comments before or after the JSON block. The entire response should be only the JSON object.

{
  "topic": %[2]q,
  "levels": [
    {
      "name": "Beginner",
      "modules": [
        {
          "title": "Module Title Example",
          "description": "Module description example.",
          "youtubeUrl": "https://www.youtube.com/results?search_query=example+search",
          "githubUrl": "https://github.com/example/repo"
        }
      ],
      "projects": [
        {
          "title": "Beginner Project Example",
          "description": "A simple project to practice basic concepts.",
          "githubUrl": "https://github.com/example/beginner-project-source-code"
        }
      ]
    },
    { "name": "Intermediate", "modules": [], "projects": [] },
    { "name": "Advanced", "modules": [], "projects": [] }
  ]
}
`, ModulesPerLevel, topic)
}
