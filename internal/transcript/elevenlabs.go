package transcript

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/interview"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	defaultTimeout = 10 * time.Second
	userAgent      = "spigell/hh-interviewer"
	maxBodySize    = 10 << 20
)

// ElevenLabs reads conversations from the ElevenLabs Conversational AI API.
type ElevenLabs struct {
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
}

func NewElevenLabs(apiKey string, logger *zap.Logger) *ElevenLabs {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ElevenLabs{
		apiKey:  strings.TrimSpace(apiKey),
		logger:  logger,
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		UserAgent: userAgent,
	}
}

type conversationResponse struct {
	Status     string `json:"status"`
	Transcript []any  `json:"transcript"`
}

// GetConversation fetches one conversation. Transport failures and non-2xx
// answers are reported as interview.ErrUpstream.
func (c *ElevenLabs) GetConversation(ctx context.Context, id interview.ConversationID) (*Conversation, error) {
	endpoint := fmt.Sprintf("%s/v1/convai/conversations/%s", strings.TrimRight(c.BaseURL, "/"), url.PathEscape(id.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build conversation request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: transcript source unreachable: %w", interview.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress conversation: %w", interview.ErrUpstream, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	var response conversationResponse
	if err := json.NewDecoder(io.LimitReader(reader, maxBodySize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: decode conversation: %w", interview.ErrUpstream, err)
	}

	var entries []RawEntry
	if err := mapstructure.Decode(response.Transcript, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode transcript entries: %w", interview.ErrUpstream, err)
	}

	return &Conversation{Status: response.Status, Entries: entries}, nil
}

func (c *ElevenLabs) setHeaders(req *http.Request) {
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
}
