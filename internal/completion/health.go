package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alienxp03/botdebate/internal/bot"
)

const healthTimeout = 10 * time.Second

// ModelsURL derives the model listing URL from a chat completions
// endpoint: ".../v1/chat/completions" becomes ".../v1/models".
func ModelsURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: scheme and host are required", endpoint)
	}
	if base, ok := strings.CutSuffix(strings.TrimRight(u.Path, "/"), "/chat/completions"); ok {
		u.Path = base + "/models"
	} else {
		u.Path = "/v1/models"
	}
	u.RawQuery = ""
	return u.String(), nil
}

// Health lists the models served by the bot's endpoint.
func (c *Client) Health(ctx context.Context, profile bot.Profile) HealthStatus {
	start := time.Now()
	status := HealthStatus{Bot: profile.Name(), Endpoint: profile.Endpoint()}
	fail := func(err error) HealthStatus {
		status.ResponseTime = time.Since(start)
		status.Error = err.Error()
		status.CheckedAt = time.Now()
		return status
	}

	modelsURL, err := ModelsURL(profile.Endpoint())
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL, nil)
	if err != nil {
		return fail(err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fail(&APIError{Bot: profile.Name(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}
	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return fail(fmt.Errorf("failed to decode model list: %w", err))
	}
	for _, m := range models.Data {
		status.Models = append(status.Models, m.ID)
	}
	if model := profile.Model(); model != "" && !contains(status.Models, model) {
		return fail(fmt.Errorf("model %q is not served by %s", model, profile.Name()))
	}

	status.Available = true
	status.ResponseTime = time.Since(start)
	status.CheckedAt = time.Now()
	return status
}

// HealthAll checks every profile concurrently. Results keep the order of
// profiles.
func (c *Client) HealthAll(ctx context.Context, profiles []bot.Profile) []HealthStatus {
	out := make([]HealthStatus, len(profiles))
	var g errgroup.Group
	for i, p := range profiles {
		g.Go(func() error {
			out[i] = c.Health(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
