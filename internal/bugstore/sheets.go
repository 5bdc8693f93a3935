// internal/bugstore/sheets.go
package bugstore

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/config"
)

// Bug sheet columns, in order. Trailing empty cells are omitted by the API,
// so readers must tolerate short rows.
const (
	colID = iota
	colTitle
	colDescription
	colSteps
	colURL
	colExpected
	colActual
	colStatus
	colPriority
	colNote
)

const (
	sheetsScope   = "https://www.googleapis.com/auth/spreadsheets"
	jwtGrantType  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	runsSheet     = "Runs"
	bugRange      = "A2:J"
	tokenLifetime = time.Hour
	// tokenSlack refreshes the bearer a little before the server-side expiry
	// so in-flight calls never race it.
	tokenSlack = 30 * time.Second
)

// Sheets keeps bug records as rows of a spreadsheet, one sheet for bugs and
// one for appended run rows. Requests authenticate with a service-account
// bearer token obtained through an RS256 JWT grant and are paced by a rate
// limiter.
type Sheets struct {
	cfg     config.SheetsConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
	key     *rsa.PrivateKey
	now     func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewSheets reads the service-account key and builds the client. A nil
// httpClient gets a default one with a decompressing transport.
func NewSheets(cfg config.SheetsConfig, httpClient *http.Client, logger *zap.Logger) (*Sheets, error) {
	pemBytes, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &Sheets{
		cfg:     cfg,
		client:  httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		log:     logger.Named("bugstore"),
		key:     key,
		now:     time.Now,
	}, nil
}

// GetBug scans the bug sheet for the row whose ID cell matches.
func (s *Sheets) GetBug(ctx context.Context, id string) (*schemas.Bug, error) {
	_, row, err := s.findRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return &schemas.Bug{
		ID:          cell(row, colID),
		Title:       cell(row, colTitle),
		Description: cell(row, colDescription),
		Steps:       splitSteps(cell(row, colSteps)),
		TargetURL:   cell(row, colURL),
		Expected:    cell(row, colExpected),
		Actual:      cell(row, colActual),
		Status:      statusOrRaw(cell(row, colStatus)),
		Priority:    cell(row, colPriority),
	}, nil
}

// UpdateStatus writes the status cell of the bug's row, and the note cell
// when a note is given.
func (s *Sheets) UpdateStatus(ctx context.Context, id string, status schemas.BugStatus, note string) error {
	rowNum, _, err := s.findRow(ctx, id)
	if err != nil {
		return err
	}
	if err := s.writeCell(ctx, columnLetter(colStatus), rowNum, string(status)); err != nil {
		return fmt.Errorf("failed to update status of bug %q: %w", id, err)
	}
	if note != "" {
		if err := s.writeCell(ctx, columnLetter(colNote), rowNum, note); err != nil {
			return fmt.Errorf("failed to write note for bug %q: %w", id, err)
		}
	}

	s.log.Info("Bug status updated",
		zap.String("bug_id", id),
		zap.String("status", string(status)))
	return nil
}

// AttachReport appends one row to the runs sheet: run ID, bug ID, mode,
// overall outcome, start time, and the full report as JSON.
func (s *Sheets) AttachReport(ctx context.Context, id string, report *schemas.RunReport) error {
	if _, _, err := s.findRow(ctx, id); err != nil {
		return err
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", report.RunID, err)
	}

	endpoint := s.valuesEndpoint(runsSheet+"!A1") + ":append?valueInputOption=RAW"
	payload := map[string][][]string{"values": {{
		report.RunID,
		id,
		string(report.Mode),
		string(report.Overall),
		report.StartedAt.UTC().Format(time.RFC3339),
		string(raw),
	}}}
	if err := s.call(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
		return fmt.Errorf("failed to append run %s: %w", report.RunID, err)
	}

	s.log.Info("Run report attached",
		zap.String("bug_id", id),
		zap.String("run_id", report.RunID),
		zap.String("overall", string(report.Overall)))
	return nil
}

// Close drops idle connections. The bearer token is left to expire on its
// own.
func (s *Sheets) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// findRow locates the row holding id. The returned index is the absolute
// spreadsheet row number; data starts at row 2 under the header.
func (s *Sheets) findRow(ctx context.Context, id string) (int, []string, error) {
	rng := fmt.Sprintf("%s!%s", s.cfg.Sheet, bugRange)
	var body struct {
		Values [][]string `json:"values"`
	}
	if err := s.call(ctx, http.MethodGet, s.valuesEndpoint(rng), nil, &body); err != nil {
		return 0, nil, fmt.Errorf("failed to fetch bug rows: %w", err)
	}
	for i, row := range body.Values {
		if cell(row, colID) == id {
			return i + 2, row, nil
		}
	}
	return 0, nil, fmt.Errorf("bug %q: %w", id, ErrBugNotFound)
}

// writeCell PUTs one RAW value into a single cell, e.g. Bugs!H7.
func (s *Sheets) writeCell(ctx context.Context, column string, row int, value string) error {
	rng := fmt.Sprintf("%s!%s%d", s.cfg.Sheet, column, row)
	endpoint := s.valuesEndpoint(rng) + "?valueInputOption=RAW"
	payload := map[string][][]string{"values": {{value}}}
	return s.call(ctx, http.MethodPut, endpoint, payload, nil)
}

// call performs one authenticated API round trip. Payloads go out as JSON;
// non-2xx responses become errors carrying the body's leading bytes.
func (s *Sheets) call(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := s.bearer(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sheets API call failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError("sheets API", resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sheets API response: %w", err)
	}
	return nil
}

// bearer returns the cached access token, exchanging a fresh RS256 JWT
// assertion when the cache is empty or close to expiry. The lock serializes
// refreshes so concurrent calls cannot stampede the token endpoint.
func (s *Sheets) bearer(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.tokenExp.Add(-tokenSlack)) {
		return s.token, nil
	}

	issued := s.now()
	claims := jwt.MapClaims{
		"iss":   s.cfg.SAEmail,
		"scope": sheetsScope,
		"aud":   s.tokenURL(),
		"iat":   issued.Unix(),
		"exp":   issued.Add(tokenLifetime).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign bearer grant: %w", err)
	}

	form := url.Values{
		"grant_type": {jwtGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError("token exchange", resp)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if grant.AccessToken == "" {
		return "", errors.New("token exchange returned no access token")
	}

	s.token = grant.AccessToken
	s.tokenExp = issued.Add(time.Duration(grant.ExpiresIn) * time.Second)
	s.log.Debug("Bearer token refreshed", zap.Time("expires", s.tokenExp))
	return s.token, nil
}

func (s *Sheets) tokenURL() string {
	return strings.TrimSuffix(s.cfg.BaseURL, "/") + "/token"
}

func (s *Sheets) valuesEndpoint(rng string) string {
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		strings.TrimSuffix(s.cfg.BaseURL, "/"),
		url.PathEscape(s.cfg.SpreadsheetID),
		url.PathEscape(rng))
}

// cell tolerates rows the API returns short when trailing columns are empty.
func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// columnLetter maps a zero-based column index to its sheet letter. The bug
// sheet stays well inside A-Z.
func columnLetter(i int) string {
	return string(rune('A' + i))
}

func apiError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Errorf("%s returned %s: %s", op, resp.Status, msg)
	}
	return fmt.Errorf("%s returned %s", op, resp.Status)
}
