package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budget/internal/core"
	ports "budget/internal/sheets"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultRetryMax = 4
	requestTimeout  = 60 * time.Second
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base sheet name without year (e.g. "Transactions"); rows go to "<year> <base>".
	sheetBase string
}

var _ ports.TransactionWriter = (*Client)(nil)

type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON []byte
	RetryMax        int
	Logger          *slog.Logger
}

// New creates a Sheets client authenticated with a service account key.
// Requests are retried on 429 and 5xx by a retryablehttp transport beneath
// the OAuth2 token transport.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(opts.CredentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}

	creds, err := googleoauth.CredentialsFromJSON(ctx, opts.CredentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, errors.Wrap(err, "parse service account credentials")
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(newHTTPClient(creds.TokenSource, opts)))
	if err != nil {
		return nil, errors.Wrap(err, "create sheets service")
	}

	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	slog.InfoContext(ctx, "Google Sheets client created", "sheet_base", sheet)

	return NewWithService(svc, opts.SpreadsheetID, sheet), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetBase}
}

func newHTTPClient(source oauth2.TokenSource, opts Options) *http.Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = defaultRetryMax
	if opts.RetryMax > 0 {
		retry.RetryMax = opts.RetryMax
	}
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 10 * time.Second
	retry.Logger = nil
	if opts.Logger != nil {
		retry.Logger = opts.Logger
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: source,
			Base:   retry.StandardClient().Transport,
		},
		Timeout: requestTimeout,
	}
}

// Append writes t to the sheet of its year and returns the updated range.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if t.ID == "" {
		return "", errors.Wrap(ports.ErrRejected, "transaction has no id")
	}

	sheet := yearPrefixedName(c.sheetBase, t.Date.Year())
	rng := fmt.Sprintf("%s!A:F", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{ports.Row(t)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(err, sheet)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// classify marks client errors other than throttling as rejected; the
// retryable ones have already been retried by the transport.
func classify(err error, sheet string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests {
		return errors.Wrapf(ports.ErrRejected, "append to %s: %d %s", sheet, gerr.Code, gerr.Message)
	}
	return errors.Wrapf(err, "append to %s", sheet)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
