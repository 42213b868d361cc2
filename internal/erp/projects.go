package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const projectPageSize = 500

// Project is one entry from the remote project register.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListProjects fetches the full project register through the remote OData
// surface, paging until a short page signals the end.
func (c *Client) ListProjects(ctx context.Context, cred *Credential) ([]Project, error) {
	header, err := authHeaders(cred)
	if err != nil {
		return nil, err
	}

	var projects []Project
	for skip := 0; ; skip += projectPageSize {
		url := fmt.Sprintf(
			"%s/projectmanagement/publicapi/project/1.0?$select=Id,ProjectName&$orderBy=ProjectName&$skip=%d&$top=%d",
			strings.TrimRight(cred.BaseURL, "/"), skip, projectPageSize,
		)

		page, err := c.fetchProjectPage(ctx, url, header)
		if err != nil {
			return nil, err
		}

		projects = append(projects, page...)
		if len(page) < projectPageSize {
			return projects, nil
		}
	}
}

func (c *Client) fetchProjectPage(ctx context.Context, url string, header http.Header) ([]Project, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("erp: build project request: %w", err)
	}
	req.Header = header.Clone()

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erp: project request: %w", err)
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("erp: read project response: %w", err)
	}
	if rsp.StatusCode != http.StatusOK {
		return nil, &AuthError{StatusCode: rsp.StatusCode, Signal: truncateSignal(string(body))}
	}

	return decodeProjectRows(body)
}

// decodeProjectRows accepts both the OData envelope form {"value":[...]}
// and a bare array, since the remote has shipped both.
func decodeProjectRows(body []byte) ([]Project, error) {
	type row struct {
		ID   json.Number `json:"Id"`
		Name string      `json:"ProjectName"`
	}

	var rows []row
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("erp: decode project rows: %w", err)
		}
	} else {
		var envelope struct {
			Value []row `json:"value"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("erp: decode project envelope: %w", err)
		}
		rows = envelope.Value
	}

	projects := make([]Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, Project{ID: r.ID.String(), Name: r.Name})
	}
	return projects, nil
}
