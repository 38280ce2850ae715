package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"teambond/internal/domain"
)

// Default endpoint prefixes relative to the API base URL.
const (
	DefaultUsersPath = "/api/users"
	DefaultChatPath  = "/api/v1/personal_chat"
)

// maxKeyBody caps the public-key response size.
const maxKeyBody = 16 << 10

// ErrEmptyPublicKey is returned when the server has no key for a user.
var ErrEmptyPublicKey = errors.New("relay returned an empty public key")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay %s %s: %s", strings.ToLower(e.Method), e.Path, e.Status)
}

// Unwrap reports server-side failures as network errors so callers can
// treat them like an unreachable server.
func (e *StatusError) Unwrap() error {
	if e.Code >= 500 {
		return domain.ErrNetwork
	}
	return nil
}

// NotFound reports whether err is a 404 from the relay.
func NotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// HTTP talks to the platform REST API.
type HTTP struct {
	Base      string
	UsersPath string
	ChatPath  string
	HTTP      *http.Client
	Log       zerolog.Logger

	now func() time.Time
}

// NewHTTP returns a client for base using the default endpoint prefixes. A
// nil client falls back to http.DefaultClient.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{
		Base:      strings.TrimRight(base, "/"),
		UsersPath: DefaultUsersPath,
		ChatPath:  DefaultChatPath,
		HTTP:      client,
		Log:       zerolog.Nop(),
		now:       time.Now,
	}
}

// FetchPublicKey returns the base64 SPKI public key for username. The
// request carries a timestamp query parameter to defeat caches.
func (c *HTTP) FetchPublicKey(ctx context.Context, username domain.Username) (string, error) {
	path := c.UsersPath + "/public_key/" + url.PathEscape(username.String()) +
		"?t=" + strconv.FormatInt(c.now().UnixMilli(), 10)

	body, err := c.get(ctx, path, maxKeyBody)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(body))
	if strings.HasPrefix(key, `"`) {
		var s string
		if err := json.Unmarshal([]byte(key), &s); err == nil {
			key = s
		}
	}
	if key == "" {
		return "", ErrEmptyPublicKey
	}
	return key, nil
}

// UpdatePublicKey publishes our public key.
func (c *HTTP) UpdatePublicKey(ctx context.Context, update domain.PublicKeyUpdate) error {
	return c.post(ctx, c.UsersPath+"/update_public_key", update, nil)
}

// UpdatePrivateKeyBackup uploads the password-encrypted private key.
func (c *HTTP) UpdatePrivateKeyBackup(ctx context.Context, backup domain.EncryptedKeyBackup) error {
	return c.post(ctx, c.UsersPath+"/update_private_key", backup, nil)
}

// UpdateRecoveryBackup uploads the recovery-code-encrypted private key.
func (c *HTTP) UpdateRecoveryBackup(ctx context.Context, backup domain.RecoveryBackup) error {
	return c.post(ctx, c.UsersPath+"/update_recovery_key", backup, nil)
}

// FetchAccountBackups returns the key backups stored for username.
func (c *HTTP) FetchAccountBackups(
	ctx context.Context,
	username domain.Username,
) (domain.AccountBackups, error) {
	var out domain.AccountBackups
	if err := c.getJSON(ctx, c.UsersPath+"/backups/"+url.PathEscape(username.String()), &out); err != nil {
		return domain.AccountBackups{}, err
	}
	return out, nil
}

// FetchHistory returns every stored message of chat, oldest first. Records
// that cannot be decoded are logged and skipped.
func (c *HTTP) FetchHistory(ctx context.Context, chat domain.ChatID) ([]domain.WireMessage, error) {
	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.ChatPath+"/all_messages/"+escapeChatID(chat), &raw); err != nil {
		return nil, err
	}
	out := make([]domain.WireMessage, 0, len(raw))
	for i, r := range raw {
		var wm domain.WireMessage
		if err := json.Unmarshal(r, &wm); err != nil {
			c.Log.Warn().Err(err).Str("chat", chat.String()).Int("index", i).Msg("Skipping undecodable history record")
			continue
		}
		out = append(out, wm)
	}
	return out, nil
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTP) get(ctx context.Context, path string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// do sends req and converts transport failures and non-2xx statuses into
// errors. The caller closes the body on success.
func (c *HTTP) do(req *http.Request, path string) (*http.Response, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay %s %s: %w: %w",
			strings.ToLower(req.Method), path, domain.ErrNetwork, err)
	}
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, &StatusError{
			Method: req.Method,
			Path:   path,
			Code:   resp.StatusCode,
			Status: resp.Status,
		}
	}
	return resp, nil
}

// escapeChatID escapes each participant segment but keeps the separator, so
// the server sees /all_messages/{first}/{second}.
func escapeChatID(chat domain.ChatID) string {
	parts := strings.Split(chat.String(), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ domain.RelayClient = (*HTTP)(nil)
