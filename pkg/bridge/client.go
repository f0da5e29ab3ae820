package bridge

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/config"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

const sessionHeader = "Bridge-Session"

// Client is a resty-backed Bridge worker API client. It is safe for concurrent use.
type Client struct {
	httpClient *resty.Client
	study      string
	email      string
	password   string
	pageSize   int

	mu      sync.Mutex
	session string
}

// NewClient builds a Bridge client using the provided configuration values.
func NewClient(cfg config.BridgeConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", fmt.Sprintf("%s/%d", cfg.AppName, cfg.AppVersion)).
		SetTimeout(timeout)

	return &Client{
		httpClient: restyClient,
		study:      cfg.Study,
		email:      cfg.Email,
		password:   cfg.Password,
		pageSize:   pageSize,
	}
}

type signInRequest struct {
	Study    string `json:"study"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	SessionToken string `json:"sessionToken"`
}

// apiError represents a Bridge error payload.
type apiError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Type       string `json:"entityClass"`
}

// SignIn authenticates the worker account and stores the session token.
func (c *Client) SignIn(ctx context.Context) error {
	result := new(signInResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetBody(signInRequest{Study: c.study, Email: c.email, Password: c.password}).
		SetResult(result).
		SetError(apiErr).
		Post("/v3/auth/signIn")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrDataAccess, "bridge sign in")
	}
	if resp.IsError() {
		return responseError("bridge sign in", resp, apiErr)
	}
	if result.SessionToken == "" {
		return appErrors.Clone(appErrors.ErrDataAccess, "bridge sign in returned no session token")
	}

	c.mu.Lock()
	c.session = result.SessionToken
	c.mu.Unlock()
	return nil
}

func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.session
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if err := c.SignIn(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, nil
}

func (c *Client) invalidate(token string) {
	c.mu.Lock()
	if c.session == token {
		c.session = ""
	}
	c.mu.Unlock()
}

// call runs an authenticated request, signing in again once if the session expired.
func (c *Client) call(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.sessionToken(ctx)
		if err != nil {
			return err
		}

		apiErr := new(apiError)
		req := c.httpClient.R().
			SetContext(ctx).
			SetHeader(sessionHeader, token).
			ForceContentType("application/json").
			SetError(apiErr)

		resp, err := send(req)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrDataAccess, op)
		}
		if resp.StatusCode() == http.StatusUnauthorized && attempt == 0 {
			c.invalidate(token)
			continue
		}
		if resp.IsError() {
			return responseError(op, resp, apiErr)
		}
		return nil
	}
	return appErrors.Clone(appErrors.ErrDataAccess, op+": session rejected after sign in")
}

func responseError(op string, resp *resty.Response, apiErr *apiError) error {
	message := ""
	if apiErr != nil {
		message = apiErr.Message
	}
	return appErrors.Wrap(
		fmt.Errorf("bridge api error: code=%d, message=%s", resp.StatusCode(), message),
		appErrors.ErrDataAccess,
		op,
	)
}

type studyList struct {
	Items []models.Study `json:"items"`
}

// ListStudies returns the summaries of every study on the server.
func (c *Client) ListStudies(ctx context.Context) ([]models.Study, error) {
	result := new(studyList)
	err := c.call(ctx, "list studies", func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("summary", "true").SetResult(result).Get("/v3/studies")
	})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

type accountSummaryPage struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
	Total int `json:"total"`
}

// GetParticipantsForStudy pages through the participants created in [start, end)
// and loads each one for its status and sharing scope.
func (c *Client) GetParticipantsForStudy(ctx context.Context, studyID string, start, end time.Time) ([]models.StudyParticipant, error) {
	var ids []string
	for offset := 0; ; {
		page := new(accountSummaryPage)
		err := c.call(ctx, "list participants for "+studyID, func(r *resty.Request) (*resty.Response, error) {
			return r.
				SetPathParam("studyId", studyID).
				SetQueryParams(map[string]string{
					"offsetBy":  strconv.Itoa(offset),
					"pageSize":  strconv.Itoa(c.pageSize),
					"startTime": start.Format(time.RFC3339),
					"endTime":   end.Format(time.RFC3339),
				}).
				SetResult(page).
				Get("/v3/studies/{studyId}/participants")
		})
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			ids = append(ids, item.ID)
		}
		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.Total {
			break
		}
	}

	participants := make([]models.StudyParticipant, 0, len(ids))
	for _, id := range ids {
		participant := new(models.StudyParticipant)
		err := c.call(ctx, "get participant for "+studyID, func(r *resty.Request) (*resty.Response, error) {
			return r.
				SetPathParams(map[string]string{"studyId": studyID, "userId": id}).
				SetResult(participant).
				Get("/v3/studies/{studyId}/participants/{userId}")
		})
		if err != nil {
			return nil, err
		}
		participants = append(participants, *participant)
	}
	return participants, nil
}

type uploadPage struct {
	Items             []models.Upload `json:"items"`
	NextPageOffsetKey string          `json:"nextPageOffsetKey"`
}

// GetUploadsForStudy pages through the uploads requested in [start, end).
func (c *Client) GetUploadsForStudy(ctx context.Context, studyID string, start, end time.Time) ([]models.Upload, error) {
	var uploads []models.Upload
	offsetKey := ""
	for {
		page := new(uploadPage)
		params := map[string]string{
			"startTime": start.Format(time.RFC3339),
			"endTime":   end.Format(time.RFC3339),
			"pageSize":  strconv.Itoa(c.pageSize),
		}
		if offsetKey != "" {
			params["offsetKey"] = offsetKey
		}
		err := c.call(ctx, "list uploads for "+studyID, func(r *resty.Request) (*resty.Response, error) {
			return r.
				SetPathParam("studyId", studyID).
				SetQueryParams(params).
				SetResult(page).
				Get("/v3/studies/{studyId}/uploads")
		})
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, page.Items...)
		if page.NextPageOffsetKey == "" {
			break
		}
		offsetKey = page.NextPageOffsetKey
	}
	return uploads, nil
}

type reportDataPayload struct {
	Date string            `json:"date"`
	Data models.ReportData `json:"data"`
}

// SaveReport stores report under (study, report id, date). Bridge overwrites an
// existing entry for the same key, so repeated calls are safe.
func (c *Client) SaveReport(ctx context.Context, report *models.Report) error {
	payload := reportDataPayload{Date: report.Date.String(), Data: report.Data}
	return c.call(ctx, "save report "+report.ReportID+" for "+report.StudyID, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetPathParams(map[string]string{"studyId": report.StudyID, "reportId": report.ReportID}).
			SetBody(payload).
			Post("/v3/studies/{studyId}/reports/{reportId}")
	})
}
