package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"go.uber.org/zap"
)

const (
	darajaTokenPath       = "/oauth/v1/generate?grant_type=client_credentials"
	darajaSTKPushPath     = "/mpesa/stkpush/v1/processrequest"
	darajaRegisterURLPath = "/mpesa/c2b/v1/registerurl"

	darajaTimestampLayout = "20060102150405"
	// Daraja truncates longer values
	darajaMaxAccountReference = 12
	darajaMaxDescription      = 13
)

var (
	// ErrDarajaUnavailable is returned when the API cannot be reached
	ErrDarajaUnavailable = errors.New("daraja: gateway unavailable")
	// ErrDarajaRequestFailed is returned when the API answers with an error
	ErrDarajaRequestFailed = errors.New("daraja: request failed")
	// ErrInvalidPhoneNumber is returned for numbers that are not Kenyan mobiles
	ErrInvalidPhoneNumber = errors.New("daraja: invalid phone number")
)

// DarajaAdapter implements MobileMoneyGateway for Safaricom M-Pesa
type DarajaAdapter struct {
	config     *DarajaConfig
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewDarajaAdapter creates a new Daraja adapter
func NewDarajaAdapter(config *DarajaConfig, logger *zap.Logger) (*DarajaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &DarajaAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}, nil
}

// InitiateSTKPush sends a Lipa na M-Pesa Online request. Amounts are sent
// in whole shillings, rounded up.
func (a *DarajaAdapter) InitiateSTKPush(ctx context.Context, req appfinance.STKPushRequest) (*appfinance.STKPushResponse, error) {
	phone, err := NormalizePhoneNumber(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	amount := req.Amount.Ceil().IntPart()
	if amount <= 0 {
		return nil, fmt.Errorf("daraja: amount must be positive, got %s", req.Amount)
	}

	timestamp := a.now().Format(darajaTimestampLayout)
	body := darajaSTKPushRequest{
		BusinessShortCode: a.config.Shortcode,
		Password:          a.stkPassword(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            a.config.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       a.config.STKCallbackURL,
		AccountReference:  truncate(req.AccountReference, darajaMaxAccountReference),
		TransactionDesc:   truncate(req.Description, darajaMaxDescription),
	}

	respBody, err := a.doJSON(ctx, darajaSTKPushPath, body)
	if err != nil {
		return nil, err
	}

	var resp darajaSTKPushResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("daraja: failed to parse response: %w", err)
	}

	a.logger.Debug("STK push accepted",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("response_code", resp.ResponseCode))

	return &appfinance.STKPushResponse{
		MerchantRequestID:   resp.MerchantRequestID,
		CheckoutRequestID:   resp.CheckoutRequestID,
		ResponseCode:        resp.ResponseCode,
		ResponseDescription: resp.ResponseDescription,
		CustomerMessage:     resp.CustomerMessage,
	}, nil
}

// RegisterC2BURLs registers the paybill validation and confirmation URLs
func (a *DarajaAdapter) RegisterC2BURLs(ctx context.Context) error {
	if a.config.C2BConfirmationURL == "" || a.config.C2BValidationURL == "" {
		return errors.New("daraja: C2B URLs not configured")
	}
	_, err := a.doJSON(ctx, darajaRegisterURLPath, darajaRegisterURLRequest{
		ShortCode:       a.config.Shortcode,
		ResponseType:    "Completed",
		ConfirmationURL: a.config.C2BConfirmationURL,
		ValidationURL:   a.config.C2BValidationURL,
	})
	return err
}

func (a *DarajaAdapter) stkPassword(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(a.config.Shortcode + a.config.Passkey + timestamp))
}

// accessToken returns a cached OAuth token, refreshing it a minute early
func (a *DarajaAdapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.tokenExpiry) {
		return a.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.baseURL()+darajaTokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("daraja: failed to create token request: %w", err)
	}
	req.SetBasicAuth(a.config.ConsumerKey, a.config.ConsumerSecret)

	respBody, err := a.send(req)
	if err != nil {
		return "", err
	}

	var token darajaTokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return "", fmt.Errorf("daraja: failed to parse token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrDarajaRequestFailed)
	}

	lifetime, err := strconv.Atoi(token.ExpiresIn)
	if err != nil || lifetime <= 0 {
		lifetime = 3599
	}
	a.token = token.AccessToken
	a.tokenExpiry = a.now().Add(time.Duration(lifetime)*time.Second - time.Minute)
	return a.token, nil
}

func (a *DarajaAdapter) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("daraja: failed to marshal request: %w", err)
	}

	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.baseURL()+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("daraja: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	respBody, err := a.send(req)
	if errors.Is(err, errDarajaUnauthorized) {
		// Token revoked early; drop it so the next call refreshes
		a.mu.Lock()
		a.token = ""
		a.mu.Unlock()
	}
	return respBody, err
}

var errDarajaUnauthorized = fmt.Errorf("%w: unauthorized", ErrDarajaRequestFailed)

func (a *DarajaAdapter) send(req *http.Request) ([]byte, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDarajaUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("daraja: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errDarajaUnauthorized
	}
	if resp.StatusCode >= 400 {
		var errResp darajaErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.ErrorCode != "" {
			return nil, fmt.Errorf("%w: %s - %s", ErrDarajaRequestFailed, errResp.ErrorCode, errResp.ErrorMessage)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrDarajaRequestFailed, resp.StatusCode)
	}
	return respBody, nil
}

// NormalizePhoneNumber converts 07XXXXXXXX, 01XXXXXXXX, +2547XXXXXXXX and
// 2547XXXXXXXX into the 254XXXXXXXXX form Daraja expects
func NormalizePhoneNumber(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	p = strings.TrimPrefix(p, "+")
	switch {
	case len(p) == 10 && strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	case len(p) == 9 && (p[0] == '7' || p[0] == '1'):
		p = "254" + p
	}
	if len(p) != 12 || !strings.HasPrefix(p, "254") || (p[3] != '7' && p[3] != '1') {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, phone)
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, phone)
		}
	}
	return p, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ appfinance.MobileMoneyGateway = (*DarajaAdapter)(nil)
